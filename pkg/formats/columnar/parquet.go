package columnar

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/schema"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Encode writes rec to w as a single Parquet file.
func Encode(w io.Writer, rec arrow.Record, codec Codec, mem memory.Allocator) error {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec.Compression),
		parquet.WithAllocator(mem),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(mem),
	)

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create parquet writer")
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record batch")
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close parquet writer")
	}
	return nil
}

// File is a decoded Parquet file.
type File struct {
	Schema      *schema.Schema
	Rows        []map[string]interface{}
	RowGroups   int
	Compression compress.Compression
}

// Decode reads a whole Parquet file into memory.
func Decode(ctx context.Context, data []byte, mem memory.Allocator) (*File, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open parquet file")
	}
	defer fr.Close()

	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create arrow reader")
	}
	as, err := ar.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read arrow schema")
	}

	out := &File{
		Schema:      SchemaFromArrow(as),
		Rows:        make([]map[string]interface{}, 0, fr.NumRows()),
		RowGroups:   fr.NumRowGroups(),
		Compression: compress.Codecs.Uncompressed,
	}
	if fr.NumRowGroups() > 0 && as.NumFields() > 0 {
		if cc, err := fr.MetaData().RowGroup(0).ColumnChunk(0); err == nil {
			out.Compression = cc.Compression()
		}
	}

	rr, err := ar.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create record reader")
	}
	defer rr.Release()

	for rr.Next() {
		rec := rr.Record()
		for row := 0; row < int(rec.NumRows()); row++ {
			values := make(map[string]interface{}, rec.NumCols())
			for i := 0; i < int(rec.NumCols()); i++ {
				values[rec.ColumnName(i)] = columnValue(rec.Column(i), row)
			}
			out.Rows = append(out.Rows, values)
		}
	}
	if err := rr.Err(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read record batch")
	}
	return out, nil
}

func columnValue(col arrow.Array, row int) interface{} {
	if col.IsNull(row) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(row)
	case *array.Int32:
		return int64(c.Value(row))
	case *array.Int64:
		return c.Value(row)
	case *array.Float32:
		return float64(c.Value(row))
	case *array.Float64:
		return c.Value(row)
	// Values outlive the source buffers, which may be a file mapping.
	case *array.String:
		return strings.Clone(c.Value(row))
	case *array.LargeString:
		return strings.Clone(c.Value(row))
	case *array.Binary:
		return string(c.Value(row))
	default:
		return col.ValueStr(row)
	}
}

// SchemaFromArrow maps an Arrow schema back onto column types. Types outside
// the columnar type system read back as strings.
func SchemaFromArrow(as *arrow.Schema) *schema.Schema {
	fields := make([]schema.Field, 0, as.NumFields())
	for _, f := range as.Fields() {
		fields = append(fields, schema.Field{
			Name:     f.Name,
			Type:     typeFromArrow(f.Type),
			Nullable: f.Nullable,
		})
	}
	return schema.New(fields...)
}

func typeFromArrow(t arrow.DataType) schema.Type {
	switch t.ID() {
	case arrow.BOOL:
		return schema.Bool
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return schema.Int64
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return schema.Float64
	default:
		return schema.String
	}
}
