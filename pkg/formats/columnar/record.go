package columnar

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/flatten"
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/schema"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// BuildRecord lays rows out as an Arrow record with one column per field of
// s. Values are cast to the column type on a best-effort basis; a row that
// lacks a column gets a null. The caller releases the record.
func BuildRecord(mem memory.Allocator, s *schema.Schema, rows []flatten.Row) (arrow.Record, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	b := array.NewRecordBuilder(mem, s.Arrow())
	defer b.Release()

	fields := s.Fields()
	for i := range fields {
		b.Field(i).Reserve(len(rows))
	}

	for r, row := range rows {
		for i, f := range fields {
			if err := appendValue(b.Field(i), f, row[f.Name]); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to cast value").
					WithDetail("column", f.Name).
					WithDetail("row", r)
			}
		}
	}
	return b.NewRecord(), nil
}

func appendValue(builder array.Builder, f schema.Field, v json.Value) error {
	if v.IsNull() {
		if !f.Nullable {
			return errors.New(errors.ErrorTypeData, "missing value for non-nullable column")
		}
		builder.AppendNull()
		return nil
	}

	switch b := builder.(type) {
	case *array.BooleanBuilder:
		x, err := castBool(v)
		if err != nil {
			return err
		}
		b.Append(x)

	case *array.Int64Builder:
		x, err := castInt(v)
		if err != nil {
			return err
		}
		b.Append(x)

	case *array.Float64Builder:
		x, err := castFloat(v)
		if err != nil {
			return err
		}
		b.Append(x)

	case *array.StringBuilder:
		b.Append(castString(v))

	default:
		return errors.Newf(errors.ErrorTypeInternal, "unsupported builder type: %T", builder)
	}
	return nil
}

func castBool(v json.Value) (bool, error) {
	switch v.Kind() {
	case json.KindBool:
		return v.Bool(), nil
	case json.KindNumber:
		f, err := v.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case json.KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.Text()))
		if err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeData, "cannot cast string to bool").
				WithDetail("value", v.Text())
		}
		return b, nil
	}
	return false, errors.Newf(errors.ErrorTypeData, "cannot cast %s to bool", v.Kind())
}

func castInt(v json.Value) (int64, error) {
	switch v.Kind() {
	case json.KindNumber:
		return v.Int64()
	case json.KindString:
		return json.ParseInt(strings.TrimSpace(v.Text()))
	case json.KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Newf(errors.ErrorTypeData, "cannot cast %s to int64", v.Kind())
}

func castFloat(v json.Value) (float64, error) {
	switch v.Kind() {
	case json.KindNumber:
		return v.Float64()
	case json.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err != nil {
			return 0, errors.Wrap(err, errors.ErrorTypeData, "cannot cast string to double").
				WithDetail("value", v.Text())
		}
		return f, nil
	case json.KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Newf(errors.ErrorTypeData, "cannot cast %s to double", v.Kind())
}

func castString(v json.Value) string {
	switch v.Kind() {
	case json.KindString, json.KindNumber:
		return v.Text()
	case json.KindBool:
		return strconv.FormatBool(v.Bool())
	}
	return json.Stringify(v)
}

// RecordSize returns the bytes held by the buffers of rec.
func RecordSize(rec arrow.Record) int64 {
	var size int64
	for _, col := range rec.Columns() {
		size += dataSize(col.Data())
	}
	return size
}

func dataSize(d arrow.ArrayData) int64 {
	var size int64
	for _, buf := range d.Buffers() {
		if buf != nil {
			size += int64(buf.Len())
		}
	}
	for _, child := range d.Children() {
		size += dataSize(child)
	}
	return size
}
