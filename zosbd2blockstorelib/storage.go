// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

/* This module is the model of a blocked physical storage device. It's an array of 4k blocks
that lives in memory, you get copies out and you give copies in, nobody outside ever gets
a pointer into the array.
It is single owner, there are no locks in here, if you want to share it, wrap it. */

package zosbd2blockstorelib

import (
	"fmt"
	"syscall"

	"github.com/nixomose/nixomosegotools/tools"
)

// BLOCK_INDEX_OUT_OF_BOUNDS is the only error a storage read or write returns.
const BLOCK_INDEX_OUT_OF_BOUNDS int = -int(syscall.ENXIO)

type Storage struct {
	m_log    *tools.Nixomosetools_logger
	m_blocks []Block // length never changes after construction
}

/* New_storage makes a zeroed storage of size_in_bytes / BLOCK_SIZE blocks.
   Panics if size_in_bytes isn't a multiple of BLOCK_SIZE, a bad size is a configuration bug
   and we find out before any io happens. */
func New_storage(log *tools.Nixomosetools_logger, size_in_bytes uint64) *Storage {
	if size_in_bytes%BLOCK_SIZE != 0 {
		panic(fmt.Sprint("'size' ", size_in_bytes, " is not a multiple of 'BLOCK_SIZE' ", BLOCK_SIZE))
	}
	var s Storage
	s.m_log = log
	s.m_blocks = make([]Block, size_in_bytes/BLOCK_SIZE) // make zeroes it for us
	return &s
}

func (this *Storage) Get_block_count() uint64 {
	return uint64(len(this.m_blocks))
}

func (this *Storage) Get_size_in_bytes() uint64 {
	return this.Get_block_count() * BLOCK_SIZE
}

func (this *Storage) index_out_of_bounds(index uint64) tools.Ret {
	return tools.ErrorWithCode(this.m_log, BLOCK_INDEX_OUT_OF_BOUNDS, "block index ", index,
		" out of bounds, block count: ", len(this.m_blocks))
}

// Read_block returns a copy of the block at index.
func (this *Storage) Read_block(index uint64) (tools.Ret, Block) {
	if index >= this.Get_block_count() {
		return this.index_out_of_bounds(index), New_block()
	}
	return nil, this.m_blocks[index]
}

/* Read_blocks returns copies of the blocks at indices in the same order, repeats included.
   It's all or nothing, the first bad index fails the whole thing and you get nothing back. */
func (this *Storage) Read_blocks(indices []uint64) (tools.Ret, []Block) {
	var blocks = make([]Block, 0, len(indices))
	for _, index := range indices {
		var ret, b = this.Read_block(index)
		if ret != nil {
			return ret, nil
		}
		blocks = append(blocks, b)
	}
	return nil, blocks
}

// Write_block copies src over the block at index. a bad index changes nothing.
func (this *Storage) Write_block(index uint64, src *Block) tools.Ret {
	if index >= this.Get_block_count() {
		return this.index_out_of_bounds(index)
	}
	this.m_blocks[index] = *src
	return nil
}

/* Write_blocks writes srcs[i] to indices[i] in order.
   Panics if the lengths don't match, that's a caller bug.
   There is no rollback. If index n is bad, 0..n-1 are already written and stay written,
   n and after are untouched, and you still get the error. Read_blocks doesn't work this
   way, keep that in mind. */
func (this *Storage) Write_blocks(indices []uint64, srcs []Block) tools.Ret {
	if len(srcs) != len(indices) {
		panic(fmt.Sprint("length of 'srcs' ", len(srcs), " does not equal to length of 'indices' ", len(indices)))
	}
	for i := range srcs {
		var ret = this.Write_block(indices[i], &srcs[i])
		if ret != nil {
			return ret
		}
	}
	return nil
}

func Is_block_index_out_of_bounds(ret tools.Ret) bool {
	return ret != nil && ret.Get_errcode() == BLOCK_INDEX_OUT_OF_BOUNDS
}
