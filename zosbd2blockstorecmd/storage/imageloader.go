// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package storage

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/ncw/directio"
	"github.com/nixomose/nixomosegotools/tools"
	"github.com/nixomose/zosbd2blockstore/zosbd2blockstorelib"
	"go.uber.org/multierr"
)

// stat_error_code turns a stat failure into the errno we hand back.
func stat_error_code(err error) int {
	if errors.Is(err, fs.ErrNotExist) {
		return -int(syscall.ENOENT)
	}
	if errors.Is(err, fs.ErrPermission) {
		return -int(syscall.EACCES)
	}
	return -int(syscall.EIO)
}

func read_into(f *os.File, buffer []byte) error {
	var _, err = io.ReadFull(f, buffer)
	return multierr.Append(err, f.Close())
}

func read_image(log *tools.Nixomosetools_logger, path string, buffer []byte) error {
	/* we'd rather not drag a whole disk image through the page cache just to copy it into memory
	   again, but tmpfs and friends won't do O_DIRECT, so fall back to a normal read for those. */
	var f, err = directio.OpenFile(path, os.O_RDONLY, 0)
	if err == nil {
		err = read_into(f, buffer)
		if err == nil {
			return nil
		}
	}
	log.Debug("unable to read ", path, " with O_DIRECT, falling back to buffered io. err: ", err)

	f, err = os.Open(path)
	if err != nil {
		return err
	}
	return read_into(f, buffer)
}

/* Load_image makes a storage the size of the image file and copies the image into it.
   unlike New_storage, a bad size here is data we were handed, not a bug, so it's an error
   and not a panic. */
func Load_image(log *tools.Nixomosetools_logger, path string) (tools.Ret, *zosbd2blockstorelib.Storage) {
	var fi, err = os.Stat(path)
	if err != nil {
		return tools.ErrorWithCode(log, stat_error_code(err), "unable to stat image file ", path, ", err: ", err), nil
	}
	var size = fi.Size()
	if size%zosbd2blockstorelib.BLOCK_SIZE != 0 {
		return tools.ErrorWithCode(log, -int(syscall.EINVAL), "image file ", path, " size ", size,
			" is not a multiple of block size ", zosbd2blockstorelib.BLOCK_SIZE), nil
	}

	var storage = zosbd2blockstorelib.New_storage(log, uint64(size))
	if size == 0 {
		return nil, storage
	}

	// O_DIRECT wants the buffer aligned, and it's a whole number of blocks so the length is fine too.
	var buffer = directio.AlignedBlock(int(size))
	err = read_image(log, path, buffer)
	if err != nil {
		return tools.ErrorWithCode(log, -int(syscall.EIO), "unable to read image file ", path, ", err: ", err), nil
	}

	var srcs = zosbd2blockstorelib.Slice_from_bytes(buffer)
	var indices = make([]uint64, len(srcs))
	for i := range indices {
		indices[i] = uint64(i)
	}
	var ret = storage.Write_blocks(indices, srcs)
	if ret != nil {
		return ret, nil
	}
	log.Info("loaded ", len(srcs), " blocks from ", path)
	return nil, storage
}
