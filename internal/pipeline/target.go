// Package pipeline runs a sync: it reads protocol messages one at a time,
// keeps each stream's schema and buffer in a registry, writes buffered rows
// to Parquet when a threshold is crossed and passes STATE messages through
// to the orchestrator.
//
// Processing is strictly sequential. Flushes run inline, so input is never
// read faster than it can be written, and the two buffer thresholds bound
// how much unflushed data is held in memory.
//
// # Basic Usage
//
//	store, _ := storage.New(ctx, cfg.DestinationPath, storage.Options{Logger: log})
//	target, err := pipeline.NewTarget(cfg, store, os.Stdout, log)
//	if err != nil {
//	    return err
//	}
//	err = target.Run(ctx, os.Stdin)
//
// Run flushes every non-empty buffer once the input is exhausted. A failed
// run leaves unflushed rows unwritten.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/ajitpratap0/target-parquet/pkg/config"
	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/formats/columnar"
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/logger"
	"github.com/ajitpratap0/target-parquet/pkg/message"
	"github.com/ajitpratap0/target-parquet/pkg/metrics"
	"github.com/ajitpratap0/target-parquet/pkg/observability"
	"github.com/ajitpratap0/target-parquet/pkg/storage"
	"github.com/ajitpratap0/target-parquet/pkg/stream"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Option customizes a Target.
type Option func(*Target)

// WithClock overrides the clock used for the sync start time.
func WithClock(now func() time.Time) Option {
	return func(t *Target) { t.now = now }
}

// WithSyncID sets the run id attached to logs and spans.
func WithSyncID(id string) Option {
	return func(t *Target) { t.syncID = id }
}

// Stats summarizes a run.
type Stats struct {
	Messages int64
	Records  int64
	States   int64
	Flushes  int64
	Files    int64
	Rows     int64
	Bytes    int64
}

// Target is the message dispatcher of a sync.
type Target struct {
	registry *stream.Registry
	writer   *columnar.Writer
	stateOut io.Writer
	logger   *zap.Logger

	now     func() time.Time
	syncID  string
	started time.Time
	stats   Stats
}

// NewTarget validates cfg and prepares an empty registry. Files go to store;
// STATE payloads are written to stateOut, one per line.
func NewTarget(cfg *config.Config, store storage.Store, stateOut io.Writer, log *zap.Logger, opts ...Option) (*Target, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get()
	}
	if stateOut == nil {
		stateOut = io.Discard
	}

	t := &Target{
		stateOut: stateOut,
		now:      time.Now,
		syncID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.started = t.now()
	t.logger = log.With(zap.String("component", "target"))

	streamOpts, err := stream.OptionsFromConfig(cfg, t.started)
	if err != nil {
		return nil, err
	}
	codec, err := columnar.LookupCodec(cfg.CompressionCodec())
	if err != nil {
		return nil, err
	}

	t.registry = stream.NewRegistry(streamOpts)
	t.writer = columnar.NewWriter(store, codec, t.logger.With(zap.String("sync_id", t.syncID)))
	return t, nil
}

// SyncID returns the run id.
func (t *Target) SyncID() string { return t.syncID }

// Registry exposes the stream registry.
func (t *Target) Registry() *stream.Registry { return t.registry }

// Stats returns the counters of the run so far.
func (t *Target) Stats() Stats { return t.stats }

// Run processes every message from r and performs the final flush. It stops
// at the first error; rows still buffered at that point are not written.
func (t *Target) Run(ctx context.Context, r io.Reader) (err error) {
	ctx = t.logContext(ctx)
	ctx, span := observability.StartSpan(ctx, "pipeline.run", "",
		attribute.String("sync_id", t.syncID))
	defer func() { observability.EndSpan(span, err) }()

	log := logger.WithContext(ctx)
	log.Info("starting sync", zap.Time("sync_started", t.started))

	reader := message.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeTimeout, "sync cancelled").
				WithDetail("line", reader.Line())
		}

		msg, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := t.Process(ctx, msg); err != nil {
			var e *errors.Error
			if errors.As(err, &e) {
				e.WithDetail("line", reader.Line())
			}
			return err
		}
	}

	if err := t.Close(ctx); err != nil {
		return err
	}

	duration := time.Since(t.started)
	log.Info("sync completed",
		zap.Int64("messages", t.stats.Messages),
		zap.Int64("records", t.stats.Records),
		zap.Int64("states", t.stats.States),
		zap.Int64("flushes", t.stats.Flushes),
		zap.Int64("files", t.stats.Files),
		zap.Int64("bytes", t.stats.Bytes),
		zap.Float64("encode_buffer_hit_rate", json.BufferStats().HitRate()),
		zap.Duration("duration", duration))
	return nil
}

// logContext makes ctx carry the target's logger and sync id unless it
// already does.
func (t *Target) logContext(ctx context.Context) context.Context {
	if id, ok := ctx.Value(logger.SyncIDKey).(string); ok && id == t.syncID {
		return ctx
	}
	ctx = logger.NewContext(ctx, t.logger)
	return context.WithValue(ctx, logger.SyncIDKey, t.syncID)
}

// Process handles one message.
func (t *Target) Process(ctx context.Context, msg message.Message) error {
	ctx = t.logContext(ctx)
	t.stats.Messages++

	switch m := msg.(type) {
	case *message.Schema:
		return t.processSchema(ctx, m)
	case *message.Record:
		return t.processRecord(ctx, m)
	case *message.State:
		return t.processState(m)
	case *message.ActivateVersion:
		logger.WithContext(ctx).Debug("ignoring activate version message",
			zap.String("stream", m.Stream),
			zap.Int64("version", m.Version))
		return nil
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unhandled message type %T", msg)
	}
}

func (t *Target) processSchema(ctx context.Context, m *message.Schema) error {
	c, err := t.registry.UpdateSchema(m.Stream, m.Schema, m.KeyProperties, func(c *stream.Context) error {
		logger.WithContext(ctx).Info("schema changed with buffered rows, flushing",
			zap.String("stream", c.Name),
			zap.Int("rows", c.Buffer.Len()))
		return t.flush(ctx, c, metrics.ReasonSchemaChange)
	})
	if err != nil {
		return err
	}

	logger.WithContext(ctx).Debug("schema registered",
		zap.String("stream", c.Name),
		zap.Strings("columns", c.Schema.Names()),
		zap.Strings("key_properties", c.KeyProperties))
	return nil
}

func (t *Target) processRecord(ctx context.Context, m *message.Record) error {
	c, ok := t.registry.Get(m.Stream)
	if !ok {
		return errors.Newf(errors.ErrorTypeOrdering,
			"A record for stream %s was encountered before a corresponding schema", m.Stream).
			WithDetail("stream", m.Stream)
	}

	c.Append(m.Record)
	t.stats.Records++
	metrics.RecordsProcessed.WithLabelValues(c.Name).Inc()
	metrics.BufferedRows.WithLabelValues(c.Name).Set(float64(c.Buffer.Len()))

	if c.Buffer.ShouldFlush() {
		return t.flush(ctx, c, metrics.ReasonThreshold)
	}
	return nil
}

func (t *Target) processState(m *message.State) error {
	line := make([]byte, 0, len(m.Value)+1)
	line = append(line, m.Value...)
	line = append(line, '\n')
	if _, err := t.stateOut.Write(line); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to forward state")
	}
	t.stats.States++
	metrics.StateMessages.Inc()
	return nil
}

// Close flushes every stream that still has buffered rows, in the order
// the streams were first seen, and releases each stream once it is empty.
// A stream whose flush fails stays registered with its rows.
func (t *Target) Close(ctx context.Context) error {
	ctx = t.logContext(ctx)
	for _, c := range t.registry.Streams() {
		if !c.Buffer.Empty() {
			if err := t.flush(ctx, c, metrics.ReasonFinal); err != nil {
				return err
			}
		}
		t.registry.Remove(c.Name)
		metrics.BufferedRows.DeleteLabelValues(c.Name)
	}
	return nil
}

// flush writes the buffer of c. The buffer is only cleared once the write
// succeeded; a failed write leaves the rows in place.
func (t *Target) flush(ctx context.Context, c *stream.Context, reason string) (err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.flush", c.Name,
		attribute.String("reason", reason),
		attribute.Int("files_saved", c.FilesSaved))
	defer func() { observability.EndSpan(span, err) }()

	ctx = context.WithValue(ctx, logger.StreamKey, c.Name)
	log := logger.WithContext(ctx)
	timer := metrics.NewTimer()
	rows := c.Buffer.Rows()
	estimated := c.Buffer.EstimatedBytes()

	res, err := t.writer.Write(ctx, columnar.Batch{
		Stream:        c.Name,
		Schema:        c.Schema,
		Rows:          rows,
		PartitionCols: c.PartitionCols,
		Basename:      c.Basename,
	})
	if err != nil {
		metrics.FlushErrors.WithLabelValues(c.Name).Inc()
		log.Error("flush failed",
			zap.String("reason", reason),
			zap.Int("rows", len(rows)),
			zap.Error(err))
		return err
	}

	c.FilesSaved++
	c.Buffer.Drain()
	elapsed := timer.Stop()

	t.stats.Flushes++
	t.stats.Files += int64(len(res.Files))
	t.stats.Rows += int64(res.Rows)
	t.stats.Bytes += res.Bytes

	metrics.FlushesTotal.WithLabelValues(c.Name, reason).Inc()
	metrics.FlushLatency.WithLabelValues(c.Name).Observe(elapsed.Seconds())
	metrics.BufferedRows.WithLabelValues(c.Name).Set(0)

	fields := []zap.Field{
		zap.String("reason", reason),
		zap.Int("rows", res.Rows),
		zap.Int("files", len(res.Files)),
		zap.Int64("bytes", res.Bytes),
		zap.Int64("estimated_bytes", estimated),
		zap.Duration("duration", elapsed),
	}
	if rss, err := metrics.UpdateProcessMemory(); err == nil {
		fields = append(fields, zap.Uint64("rss_bytes", rss))
	}
	log.Debug("flush details", zap.Strings("files", res.Files))
	log.Info("flushed stream", fields...)
	return nil
}
