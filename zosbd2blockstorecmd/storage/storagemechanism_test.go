// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package storage

import (
	"bytes"
	"syscall"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nixomose/nixomosegotools/tools"
	"github.com/nixomose/zosbd2blockstore/zosbd2blockstorelib"
)

const bs = zosbd2blockstorelib.BLOCK_SIZE

func new_test_mechanism(t *testing.T, block_count uint64) (*Storage_mechanism, *zosbd2blockstorelib.Storage) {
	t.Helper()
	var log = tools.New_Nixomosetools_logger(tools.DEBUG)
	var s = zosbd2blockstorelib.New_storage(log, block_count*bs)
	return New_storage_mechanism(log, s), s
}

func TestMechanismSizes(t *testing.T) {
	var m, _ = new_test_mechanism(t, 5)
	if m.Get_block_size() != bs {
		t.Errorf("block size %d, want %d", m.Get_block_size(), bs)
	}
	if m.Get_size_in_bytes() != 5*bs {
		t.Errorf("size %d, want %d", m.Get_size_in_bytes(), 5*bs)
	}
}

func TestMechanismWriteReadMultiBlock(t *testing.T) {
	var m, s = new_test_mechanism(t, 8)

	var data = make([]byte, 3*bs)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if ret := m.Write_block(2*bs, uint32(len(data)), data); ret != nil {
		t.Fatalf("Write_block: %s", ret.Get_errmsg())
	}

	var out = make([]byte, 3*bs)
	if ret := m.Read_block(2*bs, uint32(len(out)), out); ret != nil {
		t.Fatalf("Read_block: %s", ret.Get_errmsg())
	}
	if d := cmp.Diff(data, out); d != "" {
		t.Errorf("read back (-want +got):\n%s", d)
	}

	// and it landed in the right blocks of the storage underneath.
	var _, b = s.Read_block(3)
	if d := cmp.Diff(data[bs:2*bs], b.Data[:]); d != "" {
		t.Errorf("storage block 3 (-want +got):\n%s", d)
	}
	_, b = s.Read_block(1)
	if !b.Is_zero() {
		t.Errorf("block 1 should not have been touched")
	}
}

func TestMechanismWriteCopiesCallerBuffer(t *testing.T) {
	var m, s = new_test_mechanism(t, 1)
	var data = bytes.Repeat([]byte{0x11}, bs)
	if ret := m.Write_block(0, bs, data); ret != nil {
		t.Fatalf("Write_block: %s", ret.Get_errmsg())
	}
	data[0] = 0x22
	var _, b = s.Read_block(0)
	if b.Data[0] != 0x11 {
		t.Errorf("storage shares memory with the write buffer")
	}
}

func TestMechanismZeroLength(t *testing.T) {
	var m, _ = new_test_mechanism(t, 1)
	if ret := m.Read_block(0, 0, nil); ret != nil {
		t.Errorf("zero length read: %s", ret.Get_errmsg())
	}
	if ret := m.Write_block(bs, 0, nil); ret != nil {
		t.Errorf("zero length write: %s", ret.Get_errmsg())
	}
	if ret := m.Discard_block(0, 0); ret != nil {
		t.Errorf("zero length discard: %s", ret.Get_errmsg())
	}
}

func TestMechanismRejectsBadRequests(t *testing.T) {
	var m, _ = new_test_mechanism(t, 4)
	var buf = make([]byte, 2*bs)

	var cases = []struct {
		name   string
		start  uint64
		length uint32
		buf    []byte
	}{
		{"unaligned start", 100, bs, buf},
		{"unaligned length", 0, bs + 1, buf},
		{"short buffer", 0, 2 * bs, buf[:bs]},
	}
	for _, c := range cases {
		if ret := m.Read_block(c.start, c.length, c.buf); ret == nil || ret.Get_errcode() != -int(syscall.EINVAL) {
			t.Errorf("%s: Read_block = %v, want EINVAL", c.name, ret)
		}
		if ret := m.Write_block(c.start, c.length, c.buf); ret == nil || ret.Get_errcode() != -int(syscall.EINVAL) {
			t.Errorf("%s: Write_block = %v, want EINVAL", c.name, ret)
		}
	}
	if ret := m.Discard_block(10, bs); ret == nil || ret.Get_errcode() != -int(syscall.EINVAL) {
		t.Errorf("unaligned discard = %v, want EINVAL", ret)
	}
}

func TestMechanismReadPastEndLeavesBufferAlone(t *testing.T) {
	var m, _ = new_test_mechanism(t, 2)
	var out = bytes.Repeat([]byte{0x5a}, 2*bs)
	var ret = m.Read_block(bs, 2*bs, out)
	if !zosbd2blockstorelib.Is_block_index_out_of_bounds(ret) {
		t.Fatalf("Read_block = %v, want out of bounds", ret)
	}
	if d := cmp.Diff(bytes.Repeat([]byte{0x5a}, 2*bs), out); d != "" {
		t.Errorf("buffer changed on failed read (-want +got):\n%s", d)
	}
}

func TestMechanismWritePastEndIsPartial(t *testing.T) {
	var m, s = new_test_mechanism(t, 2)
	var data = bytes.Repeat([]byte{0x77}, 2*bs)
	var ret = m.Write_block(bs, 2*bs, data)
	if !zosbd2blockstorelib.Is_block_index_out_of_bounds(ret) {
		t.Fatalf("Write_block = %v, want out of bounds", ret)
	}
	var _, b = s.Read_block(1)
	if d := cmp.Diff(data[:bs], b.Data[:]); d != "" {
		t.Errorf("block 1 should have been written before the failure (-want +got):\n%s", d)
	}
}

func TestMechanismDiscardZeroes(t *testing.T) {
	var m, s = new_test_mechanism(t, 4)
	var data = bytes.Repeat([]byte{0xcc}, 4*bs)
	if ret := m.Write_block(0, 4*bs, data); ret != nil {
		t.Fatalf("Write_block: %s", ret.Get_errmsg())
	}
	if ret := m.Discard_block(bs, 2*bs); ret != nil {
		t.Fatalf("Discard_block: %s", ret.Get_errmsg())
	}

	var want = []bool{false, true, true, false}
	for i := range want {
		var _, b = s.Read_block(uint64(i))
		if b.Is_zero() != want[i] {
			t.Errorf("block %d zero = %v, want %v", i, b.Is_zero(), want[i])
		}
	}
}

func TestMechanismDiscardPastEnd(t *testing.T) {
	var m, s = new_test_mechanism(t, 1)
	var data = bytes.Repeat([]byte{0x33}, bs)
	if ret := m.Write_block(0, bs, data); ret != nil {
		t.Fatalf("Write_block: %s", ret.Get_errmsg())
	}

	// a gig of discard against one block, no buffer behind it.
	var ret = m.Discard_block(0, 0x40000000)
	if !zosbd2blockstorelib.Is_block_index_out_of_bounds(ret) {
		t.Fatalf("Discard_block = %v, want out of bounds", ret)
	}
	var _, b = s.Read_block(0)
	if !b.Is_zero() {
		t.Errorf("block 0 should have been zeroed before the discard ran off the end")
	}
}

func TestMechanismDiscardStartingPastEnd(t *testing.T) {
	var m, s = new_test_mechanism(t, 2)
	var data = bytes.Repeat([]byte{0x44}, 2*bs)
	if ret := m.Write_block(0, 2*bs, data); ret != nil {
		t.Fatalf("Write_block: %s", ret.Get_errmsg())
	}
	var ret = m.Discard_block(2*bs, bs)
	if !zosbd2blockstorelib.Is_block_index_out_of_bounds(ret) {
		t.Fatalf("Discard_block = %v, want out of bounds", ret)
	}
	var _, blocks = s.Read_blocks([]uint64{0, 1})
	for i := range blocks {
		if d := cmp.Diff(data[:bs], blocks[i].Data[:]); d != "" {
			t.Errorf("block %d changed (-want +got):\n%s", i, d)
		}
	}
}
