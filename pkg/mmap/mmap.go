// Package mmap maps finished Parquet files read-only into memory so the
// reader can decode them without copying the file into the heap.
package mmap

import (
	"os"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
)

// File is a read-only view of a file's contents.
type File struct {
	path   string
	data   []byte
	mapped bool
}

// Open maps path into memory. Empty files yield an empty view; on platforms
// without mmap the contents are read instead.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("path", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").
			WithDetail("path", path)
	}
	if st.Size() == 0 {
		return &File{path: path}, nil
	}

	data, mapped, err := mapFile(f, st.Size())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to map file").
			WithDetail("path", path)
	}
	return &File{path: path, data: data, mapped: mapped}, nil
}

// Bytes returns the contents. The slice is invalid after Close.
func (f *File) Bytes() []byte { return f.data }

// Len returns the size in bytes.
func (f *File) Len() int { return len(f.data) }

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Close releases the mapping. It is safe to call more than once.
func (f *File) Close() error {
	data := f.data
	f.data = nil
	if !f.mapped || data == nil {
		return nil
	}
	f.mapped = false
	if err := unmap(data); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to unmap file").
			WithDetail("path", f.path)
	}
	return nil
}

// ReadFile maps path, hands the contents to fn and unmaps it again. fn must
// not keep the slice.
func ReadFile(path string, fn func([]byte) error) (err error) {
	f, err := Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f.Bytes())
}
