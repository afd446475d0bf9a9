// SPDX-License-Identifier: LGPL-2.1
// Copyright (C) 2021-2022 stu mark

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/nixomose/nixomosegotools/tools"
	"github.com/nixomose/zosbd2blockstore/zosbd2blockstorecmd/storage"
	"github.com/nixomose/zosbd2blockstore/zosbd2blockstorelib"
	"github.com/spf13/cobra"
)

const DEFAULT_SIZE uint64 = 1048576

const MAX_SEGMENTS_PER_REQUEST = 256 // same as the zosbd2 kernel module, mkfs will send 1 meg at a time.
const MAX_REQUEST_SIZE uint64 = MAX_SEGMENTS_PER_REQUEST * zosbd2blockstorelib.BLOCK_SIZE

func main() {
	var log = tools.New_Nixomosetools_logger(tools.DEBUG)

	var root = &cobra.Command{
		Use:           "zosbd2blockstorecmd",
		Short:         "in memory 4k block storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(new_info_command(log), new_exercise_command(log), new_load_command(log))

	if err := root.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

// check_size is here so a bad flag gets a message instead of the panic New_storage would give.
func check_size(size uint64) error {
	if size%zosbd2blockstorelib.BLOCK_SIZE != 0 {
		return fmt.Errorf("size %d is not a multiple of %d", size, zosbd2blockstorelib.BLOCK_SIZE)
	}
	return nil
}

func ret_to_error(ret tools.Ret) error {
	if ret == nil {
		return nil
	}
	return fmt.Errorf("%s (code %d)", ret.Get_errmsg(), ret.Get_errcode())
}

func new_info_command(log *tools.Nixomosetools_logger) *cobra.Command {
	var size uint64
	var cmd = &cobra.Command{
		Use:   "info",
		Short: "show the block layout for a storage of a given size",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check_size(size); err != nil {
				return err
			}
			var s = zosbd2blockstorelib.New_storage(log, size)
			fmt.Fprintf(cmd.OutOrStdout(), "size: %s (%d bytes)\nblock size: %d\nblock count: %d\n",
				humanize.IBytes(s.Get_size_in_bytes()), s.Get_size_in_bytes(), zosbd2blockstorelib.BLOCK_SIZE, s.Get_block_count())
			return nil
		},
	}
	cmd.Flags().Uint64VarP(&size, "size", "s", DEFAULT_SIZE, "size in bytes must be multiple of 4k")
	return cmd
}

func new_exercise_command(log *tools.Nixomosetools_logger) *cobra.Command {
	var size uint64
	var pattern uint8
	var cmd = &cobra.Command{
		Use:   "exercise",
		Short: "write a pattern to every block, read it back and check it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check_size(size); err != nil {
				return err
			}
			var mismatches, err = exercise(log, size, pattern)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exercised %d blocks (%s), mismatches: %d\n",
				size/zosbd2blockstorelib.BLOCK_SIZE, humanize.IBytes(size), mismatches)
			if mismatches != 0 {
				return fmt.Errorf("%d blocks did not read back what was written", mismatches)
			}
			return nil
		},
	}
	cmd.Flags().Uint64VarP(&size, "size", "s", DEFAULT_SIZE, "size in bytes must be multiple of 4k")
	cmd.Flags().Uint8VarP(&pattern, "pattern", "p", 0xa5, "byte to seed the per block pattern with")
	return cmd
}

func exercise(log *tools.Nixomosetools_logger, size uint64, pattern uint8) (int, error) {
	var s = zosbd2blockstorelib.New_storage(log, size)
	var mech = storage.New_storage_mechanism(log, s)
	var block_count = s.Get_block_count()

	// block n gets pattern+n so a misplaced block shows up as a mismatch.
	var data = make([]byte, size)
	var blocks = zosbd2blockstorelib.Slice_from_bytes(data)
	for i := range blocks {
		blocks[i].Fill(pattern + uint8(i))
	}
	// hand it over in the same sized pieces the kernel would.
	for start := uint64(0); start < size; start += MAX_REQUEST_SIZE {
		var length = size - start
		if length > MAX_REQUEST_SIZE {
			length = MAX_REQUEST_SIZE
		}
		if err := ret_to_error(mech.Write_block(start, uint32(length), data[start:start+length])); err != nil {
			return 0, err
		}
	}

	// and read it all back through the mechanism in the same sized pieces.
	var mismatches = 0
	var out = make([]byte, MAX_REQUEST_SIZE)
	for start := uint64(0); start < size; start += MAX_REQUEST_SIZE {
		var length = size - start
		if length > MAX_REQUEST_SIZE {
			length = MAX_REQUEST_SIZE
		}
		if err := ret_to_error(mech.Read_block(start, uint32(length), out)); err != nil {
			return 0, err
		}
		for offset := uint64(0); offset < length; offset += zosbd2blockstorelib.BLOCK_SIZE {
			var block_num = (start + offset) / zosbd2blockstorelib.BLOCK_SIZE
			var got = zosbd2blockstorelib.Block_from_bytes(out[offset : offset+zosbd2blockstorelib.BLOCK_SIZE])
			var expected = zosbd2blockstorelib.New_block()
			expected.Fill(pattern + uint8(block_num))
			if got != expected {
				log.Error("block ", block_num, " does not match what was written")
				mismatches++
			}
		}
	}

	// one past the end should come back as an error, not a crash.
	var ret = mech.Read_block(size, zosbd2blockstorelib.BLOCK_SIZE, out)
	if !zosbd2blockstorelib.Is_block_index_out_of_bounds(ret) {
		return mismatches, fmt.Errorf("read of block %d past the end did not fail", block_count)
	}
	log.Info("read past the end failed as expected: ", ret.Get_errmsg())
	return mismatches, nil
}

func new_load_command(log *tools.Nixomosetools_logger) *cobra.Command {
	var image string
	var cmd = &cobra.Command{
		Use:   "load",
		Short: "load an image file into storage and report on it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if image == "" {
				return fmt.Errorf("--image is required")
			}
			var ret, s = storage.Load_image(log, image)
			if ret != nil {
				return ret_to_error(ret)
			}
			var used uint64 = 0
			for i := uint64(0); i < s.Get_block_count(); i++ {
				var _, b = s.Read_block(i)
				if !b.Is_zero() {
					used++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "image: %s\nsize: %s\nblock count: %d\nnon-zero blocks: %d\n",
				image, humanize.IBytes(s.Get_size_in_bytes()), s.Get_block_count(), used)
			return nil
		},
	}
	cmd.Flags().StringVarP(&image, "image", "i", "", "image file, size must be a multiple of 4k")
	return cmd
}
