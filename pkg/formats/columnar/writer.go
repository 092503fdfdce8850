package columnar

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"strconv"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/flatten"
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/metrics"
	"github.com/ajitpratap0/target-parquet/pkg/observability"
	"github.com/ajitpratap0/target-parquet/pkg/schema"
	"github.com/ajitpratap0/target-parquet/pkg/storage"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// HiveDefaultPartition names the directory of rows whose partition value is
// null or empty.
const HiveDefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// Batch is one flush of a stream.
type Batch struct {
	Stream        string
	Schema        *schema.Schema
	Rows          []flatten.Row
	PartitionCols []string
	// Basename returns the file name stem of the given shard.
	Basename func(shard int) string
}

// Result describes the files produced by a write.
type Result struct {
	Files []string
	Rows  int
	Bytes int64
}

// Writer encodes batches and puts them into a store.
type Writer struct {
	store  storage.Store
	codec  Codec
	mem    memory.Allocator
	logger *zap.Logger
}

// NewWriter creates a writer for store.
func NewWriter(store storage.Store, codec Codec, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:  store,
		codec:  codec,
		mem:    memory.NewGoAllocator(),
		logger: logger,
	}
}

// Codec returns the codec used for new files.
func (w *Writer) Codec() Codec { return w.codec }

type partition struct {
	dir  string
	rows []flatten.Row
}

// Write persists b. Without partition columns the batch becomes a single
// file directly under the stream directory. Otherwise rows are grouped by
// their partition values in order of first appearance, each group becomes
// one file under <col>=<value> directories, and the partition columns are
// left out of the file itself.
func (w *Writer) Write(ctx context.Context, b Batch) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "columnar.write", b.Stream,
		attribute.Int("rows", len(b.Rows)),
		attribute.String("codec", w.codec.Name),
	)
	defer func() { observability.EndSpan(span, err) }()

	if len(b.Rows) == 0 {
		return Result{}, nil
	}

	groups, err := partitionRows(b)
	if err != nil {
		return Result{}, err
	}
	dataSchema := b.Schema.Without(b.PartitionCols...)

	buf := json.GetBuffer()
	defer json.PutBuffer(buf)

	for shard, g := range groups {
		buf.Reset()
		size, err := w.encode(buf, dataSchema, g.rows)
		if err != nil {
			return res, errors.Wrap(err, errors.ErrorTypeFile, "failed to encode parquet file").
				WithDetail("stream", b.Stream).
				WithDetail("shard", shard)
		}

		key := path.Join(b.Stream, g.dir, w.codec.FileName(b.Basename(shard)))
		if err := w.store.Put(ctx, key, buf.Bytes()); err != nil {
			return res, err
		}

		res.Files = append(res.Files, w.store.URI(key))
		res.Rows += len(g.rows)
		res.Bytes += int64(buf.Len())

		metrics.FilesWritten.WithLabelValues(b.Stream).Inc()
		metrics.BytesWritten.WithLabelValues(b.Stream).Add(float64(buf.Len()))
		metrics.RowsWritten.WithLabelValues(b.Stream).Add(float64(len(g.rows)))

		w.logger.Debug("parquet file written",
			zap.String("stream", b.Stream),
			zap.String("uri", w.store.URI(key)),
			zap.Int("rows", len(g.rows)),
			zap.Int("bytes", buf.Len()),
			zap.Int64("arrow_bytes", size))
	}

	span.SetAttributes(attribute.Int("files", len(res.Files)))
	return res, nil
}

func (w *Writer) encode(buf *bytes.Buffer, s *schema.Schema, rows []flatten.Row) (int64, error) {
	rec, err := BuildRecord(w.mem, s, rows)
	if err != nil {
		return 0, err
	}
	defer rec.Release()

	if err := Encode(buf, rec, w.codec, w.mem); err != nil {
		return 0, err
	}
	return RecordSize(rec), nil
}

func partitionRows(b Batch) ([]partition, error) {
	if len(b.PartitionCols) == 0 {
		return []partition{{rows: b.Rows}}, nil
	}

	fields := make([]schema.Field, len(b.PartitionCols))
	for i, name := range b.PartitionCols {
		f, ok := b.Schema.Field(name)
		if !ok {
			return nil, errors.New(errors.ErrorTypeConfig, "partition_cols must be in the schema").
				WithDetail("stream", b.Stream).
				WithDetail("column", name)
		}
		fields[i] = f
	}

	var groups []partition
	index := make(map[string]int)
	segments := make([]string, len(fields))
	for r, row := range b.Rows {
		for i, f := range fields {
			v, err := PartitionValue(f, row[f.Name])
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid partition value").
					WithDetail("stream", b.Stream).
					WithDetail("column", f.Name).
					WithDetail("row", r)
			}
			segments[i] = f.Name + "=" + v
		}
		dir := path.Join(segments...)

		i, ok := index[dir]
		if !ok {
			i = len(groups)
			index[dir] = i
			groups = append(groups, partition{dir: dir})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	return groups, nil
}

// PartitionValue renders v as a path segment after casting it to the
// column's type.
func PartitionValue(f schema.Field, v json.Value) (string, error) {
	if v.IsNull() {
		return HiveDefaultPartition, nil
	}

	var s string
	switch f.Type {
	case schema.Bool:
		b, err := castBool(v)
		if err != nil {
			return "", err
		}
		s = strconv.FormatBool(b)
	case schema.Int64:
		i, err := castInt(v)
		if err != nil {
			return "", err
		}
		s = strconv.FormatInt(i, 10)
	case schema.Float64:
		x, err := castFloat(v)
		if err != nil {
			return "", err
		}
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = castString(v)
	}

	if s == "" {
		return HiveDefaultPartition, nil
	}
	return url.PathEscape(s), nil
}
