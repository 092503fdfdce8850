package columnar

import (
	"context"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/mmap"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DatasetFile is one file of a dataset along with the partition values
// encoded in its directory.
type DatasetFile struct {
	Path       string
	Partitions map[string]interface{}
	*File
}

// ReadDataset decodes every Parquet file below root in lexical path order.
func ReadDataset(ctx context.Context, root string) ([]DatasetFile, error) {
	mem := memory.NewGoAllocator()

	var files []DatasetFile
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), FileExtension) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := ReadFile(ctx, p, mem)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		files = append(files, DatasetFile{Path: p, Partitions: ParsePartitions(rel), File: f})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ReadFile decodes a single Parquet file through a read-only mapping.
func ReadFile(ctx context.Context, path string, mem memory.Allocator) (*File, error) {
	var f *File
	err := mmap.ReadFile(path, func(data []byte) error {
		var err error
		f, err = Decode(ctx, data, mem)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet file").WithDetail("path", path)
	}
	return f, nil
}

// ReadDatasetRows returns the rows of every file below root with partition
// values merged back in as columns.
func ReadDatasetRows(ctx context.Context, root string) ([]map[string]interface{}, error) {
	files, err := ReadDataset(ctx, root)
	if err != nil {
		return nil, err
	}

	var rows []map[string]interface{}
	for _, f := range files {
		for _, row := range f.Rows {
			for k, v := range f.Partitions {
				row[k] = v
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ParsePartitions extracts col=value segments from a relative directory.
// Values come back as unescaped strings; the default partition reads back
// as nil.
func ParsePartitions(dir string) map[string]interface{} {
	out := make(map[string]interface{})
	for _, seg := range strings.Split(filepath.ToSlash(dir), "/") {
		key, value, ok := strings.Cut(seg, "=")
		if !ok || key == "" {
			continue
		}
		if value == HiveDefaultPartition {
			out[key] = nil
			continue
		}
		if u, err := url.PathUnescape(value); err == nil {
			value = u
		}
		out[key] = value
	}
	return out
}
