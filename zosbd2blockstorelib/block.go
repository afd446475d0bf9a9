// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package zosbd2blockstorelib

import (
	"fmt"
	"unsafe"
)

const BLOCK_SIZE = 4096 // all blocks are 4k. period.

// Block is one fixed size unit of storage. it's an array not a slice, so assigning
// a Block copies all 4k of it, nobody ever shares the bytes.
type Block struct {
	Data [BLOCK_SIZE]byte
}

func New_block() Block {
	var b Block
	return b
}

// Block_from_bytes copies exactly BLOCK_SIZE bytes into a new block.
func Block_from_bytes(data []byte) Block {
	if len(data) != BLOCK_SIZE {
		panic(fmt.Sprint("length of 'data' ", len(data), " is not 'BLOCK_SIZE' ", BLOCK_SIZE))
	}
	var b Block
	copy(b.Data[:], data)
	return b
}

/* Slice_from_bytes lays a []Block over the caller's buffer without copying anything.
   The blocks returned ARE the caller's bytes, write to one and the buffer changes.
   Block is just a byte array so it has an alignment of 1, any buffer address will do.
   Panics if the length of data is not a multiple of BLOCK_SIZE, that's a caller bug,
   not something to return. */
func Slice_from_bytes(data []byte) []Block {
	if len(data)%BLOCK_SIZE != 0 {
		panic(fmt.Sprint("length of 'data' ", len(data), " is not a multiple of 'BLOCK_SIZE' ", BLOCK_SIZE))
	}
	if len(data) == 0 {
		return []Block{}
	}
	return unsafe.Slice((*Block)(unsafe.Pointer(&data[0])), len(data)/BLOCK_SIZE)
}

func (this *Block) Fill(value byte) {
	for i := range this.Data {
		this.Data[i] = value
	}
}

func (this *Block) Is_zero() bool {
	for _, b := range this.Data {
		if b != 0 {
			return false
		}
	}
	return true
}
