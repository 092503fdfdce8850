package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("PAR1 body PAR1"), 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "PAR1 body PAR1", string(f.Bytes()))
	assert.Equal(t, 14, f.Len())
	assert.Equal(t, path, f.Path())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Nil(t, f.Bytes())
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.NoError(t, f.Close())
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	var got string
	require.NoError(t, ReadFile(path, func(b []byte) error {
		got = string(b)
		return nil
	}))
	assert.Equal(t, "abc", got)

	boom := errors.New(errors.ErrorTypeData, "boom")
	err := ReadFile(path, func([]byte) error { return boom })
	assert.ErrorIs(t, err, boom)
}
