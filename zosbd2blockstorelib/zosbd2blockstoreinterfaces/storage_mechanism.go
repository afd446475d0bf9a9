// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

// Package zosbd2blockstoreinterfaces has a package comment to make the linter happy
package zosbd2blockstoreinterfaces

import "github.com/nixomose/nixomosegotools/tools"

/* this is what a byte addressed caller (a kernel block device shuttle, a file system, whatever)
talks to. it doesn't know or care that there's an array of 4k blocks underneath. */
type Storage_mechanism interface {
	Read_block(start_in_bytes uint64, length uint32, data []byte) tools.Ret

	Write_block(start_in_bytes uint64, length uint32, data []byte) tools.Ret

	Discard_block(start_in_bytes uint64, length uint32) tools.Ret

	// this is the storage block size, requests must line up on it.
	Get_block_size() uint32

	Get_size_in_bytes() uint64
}
