// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package storage

import (
	"syscall"

	"github.com/nixomose/nixomosegotools/tools"
	"github.com/nixomose/zosbd2blockstore/zosbd2blockstorelib"
	"github.com/nixomose/zosbd2blockstore/zosbd2blockstorelib/zosbd2blockstoreinterfaces"
)

var _ zosbd2blockstoreinterfaces.Storage_mechanism = &Storage_mechanism{}
var _ zosbd2blockstoreinterfaces.Storage_mechanism = (*Storage_mechanism)(nil)

type Storage_mechanism struct {
	/* this turns byte positions and lengths into block index lists for the storage array.
	   the kernel always sends us 4k aligned requests, so we insist on that rather than
	   doing read-update-write for partial blocks. */

	m_log     *tools.Nixomosetools_logger
	m_storage *zosbd2blockstorelib.Storage
}

func New_storage_mechanism(log *tools.Nixomosetools_logger, storage *zosbd2blockstorelib.Storage) *Storage_mechanism {
	var ret Storage_mechanism
	ret.m_log = log
	ret.m_storage = storage
	return &ret
}

func (this *Storage_mechanism) Get_block_size() uint32 {
	return zosbd2blockstorelib.BLOCK_SIZE
}

func (this *Storage_mechanism) Get_size_in_bytes() uint64 {
	return this.m_storage.Get_size_in_bytes()
}

// validate_alignment checks the request lines up on blocks and hands back the first block and how many.
func (this *Storage_mechanism) validate_alignment(start_in_bytes uint64, length uint32) (tools.Ret, uint64, uint64) {
	if start_in_bytes%zosbd2blockstorelib.BLOCK_SIZE != 0 {
		return tools.ErrorWithCode(this.m_log, -int(syscall.EINVAL), "request start ", start_in_bytes,
			" is not aligned to block size ", zosbd2blockstorelib.BLOCK_SIZE), 0, 0
	}
	if length%zosbd2blockstorelib.BLOCK_SIZE != 0 {
		return tools.ErrorWithCode(this.m_log, -int(syscall.EINVAL), "request length ", length,
			" is not a multiple of block size ", zosbd2blockstorelib.BLOCK_SIZE), 0, 0
	}
	return nil, start_in_bytes / zosbd2blockstorelib.BLOCK_SIZE, uint64(length) / zosbd2blockstorelib.BLOCK_SIZE
}

// validate_request also checks the caller's buffer and makes the list of block indexes covered.
func (this *Storage_mechanism) validate_request(start_in_bytes uint64, length uint32, buffer_length int) (tools.Ret, []uint64) {
	var ret, first_block, number_of_blocks = this.validate_alignment(start_in_bytes, length)
	if ret != nil {
		return ret, nil
	}
	if buffer_length < int(length) {
		return tools.ErrorWithCode(this.m_log, -int(syscall.EINVAL), "invalid request, not enough storage supplied for ",
			length, " bytes, only got ", buffer_length), nil
	}

	var indices = make([]uint64, number_of_blocks)
	for i := range indices {
		indices[i] = first_block + uint64(i)
	}
	return nil, indices
}

func (this *Storage_mechanism) Read_block(start_in_bytes uint64, length uint32, dataout []byte) tools.Ret {
	var ret, indices = this.validate_request(start_in_bytes, length, len(dataout))
	if ret != nil {
		return ret
	}
	this.m_log.Debug("storage read from ", start_in_bytes, " to ", start_in_bytes+uint64(length))

	// read them all first, if any of them is out of range the caller's buffer doesn't get touched.
	var blocks []zosbd2blockstorelib.Block
	ret, blocks = this.m_storage.Read_blocks(indices)
	if ret != nil {
		return ret
	}

	var start_copy_location = 0
	for i := range blocks {
		copy(dataout[start_copy_location:start_copy_location+zosbd2blockstorelib.BLOCK_SIZE], blocks[i].Data[:])
		start_copy_location += zosbd2blockstorelib.BLOCK_SIZE
	}
	return nil
}

func (this *Storage_mechanism) Write_block(start_in_bytes uint64, length uint32, data []byte) tools.Ret {
	var ret, indices = this.validate_request(start_in_bytes, length, len(data))
	if ret != nil {
		return ret
	}
	this.m_log.Debug("storage write to ", start_in_bytes, " to ", start_in_bytes+uint64(length))

	/* no copy here, the storage copies each block in. if the range runs off the end
	   the blocks before the end are written and we still fail. */
	var srcs = zosbd2blockstorelib.Slice_from_bytes(data[:length])
	return this.m_storage.Write_blocks(indices, srcs)
}

func (this *Storage_mechanism) Discard_block(start_in_bytes uint64, length uint32) tools.Ret {
	/* we have no allocation to give back, so a discarded block reads back as zeroes.
	   discard ranges can be huge and there's no buffer behind them, so write one zero block
	   over and over. same as a write, blocks before the end get zeroed and then we fail. */
	this.m_log.Debug("got discard request for start: ", start_in_bytes, " length: ", length)

	var ret, first_block, number_of_blocks = this.validate_alignment(start_in_bytes, length)
	if ret != nil {
		return ret
	}
	var zero = zosbd2blockstorelib.New_block()
	for i := uint64(0); i < number_of_blocks; i++ {
		ret = this.m_storage.Write_block(first_block+i, &zero)
		if ret != nil {
			return ret
		}
	}
	return nil
}
