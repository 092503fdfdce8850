//go:build linux || darwin

package mmap

import (
	"os"
	"syscall"
)

func mapFile(f *os.File, size int64) ([]byte, bool, error) {
	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	// Parquet readers seek to the footer first, then scan column chunks.
	_ = syscall.Madvise(data, syscall.MADV_WILLNEED)
	return data, true, nil
}

func unmap(b []byte) error {
	return syscall.Munmap(b)
}
