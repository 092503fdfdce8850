// Package stream keeps the per-stream state of a sync: the schemas derived
// from the stream's latest SCHEMA message, the static columns merged into
// its rows, its partition columns and its buffer of pending rows.
package stream

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/target-parquet/pkg/batch"
	"github.com/ajitpratap0/target-parquet/pkg/config"
	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/flatten"
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/schema"
)

// TimestampLayout formats the sync start time in file names.
const TimestampLayout = "20060102_150405"

// Options apply to every stream of a sync.
type Options struct {
	MaxLevel      int
	Separator     string
	Extras        []config.ExtraField
	PartitionCols []string
	Limits        batch.Limits
	SyncStarted   time.Time
}

// OptionsFromConfig builds registry options from a validated config.
func OptionsFromConfig(cfg *config.Config, syncStarted time.Time) (Options, error) {
	extras, err := cfg.Extras()
	if err != nil {
		return Options{}, err
	}
	return Options{
		MaxLevel:      cfg.FlattenMaxLevel,
		Separator:     cfg.FlattenSeparator,
		Extras:        extras,
		PartitionCols: cfg.PartitionColumns(),
		Limits:        batch.Limits{MaxRows: cfg.MaxBatchSize, MaxMB: cfg.MaxTableSizeMB},
		SyncStarted:   syncStarted,
	}, nil
}

// Context is the state of one stream.
type Context struct {
	Name          string
	KeyProperties []string
	RawSchema     json.Value
	FlatSchema    *flatten.Schema
	Schema        *schema.Schema
	PartitionCols []string
	Buffer        *batch.Accumulator
	// FilesSaved counts write calls for this stream; it is part of every
	// file name so successive flushes never collide.
	FilesSaved int

	opts Options
}

// Flatten turns a record into a row against the current flattened schema
// and merges in the static extra fields.
func (c *Context) Flatten(record json.Value) flatten.Row {
	row := flatten.FlattenRecord(record, c.FlatSchema, c.opts.MaxLevel, c.opts.Separator)
	for _, f := range c.opts.Extras {
		row[f.Name] = json.String(f.Value)
	}
	return row
}

// Append flattens record and buffers it.
func (c *Context) Append(record json.Value) {
	c.Buffer.Append(c.Flatten(record), c.Schema)
}

// Basename returns the file name stem for one shard of the next write:
// <stream>-<sync start>-<files saved>-<shard>.
func (c *Context) Basename(shard int) string {
	return fmt.Sprintf("%s-%s-%d-%d", c.Name, c.opts.SyncStarted.UTC().Format(TimestampLayout), c.FilesSaved, shard)
}

// Registry owns the contexts of every stream seen in a sync.
type Registry struct {
	opts    Options
	streams map[string]*Context
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Separator == "" {
		opts.Separator = flatten.DefaultSeparator
	}
	return &Registry{
		opts:    opts,
		streams: make(map[string]*Context),
	}
}

// Get returns the context of a stream that has received a schema.
func (r *Registry) Get(name string) (*Context, bool) {
	c, ok := r.streams[name]
	return c, ok
}

// Streams returns every context in the order streams first appeared.
func (r *Registry) Streams() []*Context {
	out := make([]*Context, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.streams[name])
	}
	return out
}

// Len returns the number of registered streams.
func (r *Registry) Len() int { return len(r.order) }

// Remove drops a stream's context.
func (r *Registry) Remove(name string) {
	if _, ok := r.streams[name]; !ok {
		return
	}
	delete(r.streams, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// BeforeChange is called when a stream with buffered rows receives a schema
// that changes its columns, before the new schema is applied.
type BeforeChange func(c *Context) error

// UpdateSchema creates the stream's context on its first schema and
// re-derives the flattened and columnar schemas on every later one. The
// partition columns are checked against the new columns; an unknown
// partition column is a configuration error and leaves the context as it
// was.
func (r *Registry) UpdateSchema(name string, raw json.Value, keyProperties []string, before BeforeChange) (*Context, error) {
	flat := flatten.FlattenSchema(raw, r.opts.MaxLevel, r.opts.Separator)
	for _, f := range r.opts.Extras {
		flat.Set(f.Name, json.Object(json.Member{Key: "type", Value: json.Array(json.String(f.Type))}))
	}
	columns := schema.FromFlattened(flat)

	for _, col := range r.opts.PartitionCols {
		if !columns.Has(col) {
			return nil, errors.New(errors.ErrorTypeConfig, "partition_cols must be in the schema").
				WithDetail("stream", name).
				WithDetail("column", col)
		}
	}

	c, ok := r.streams[name]
	if !ok {
		c = &Context{
			Name:          name,
			PartitionCols: r.opts.PartitionCols,
			Buffer:        batch.New(r.opts.Limits),
			opts:          r.opts,
		}
		r.streams[name] = c
		r.order = append(r.order, name)
	} else if !c.Buffer.Empty() && !c.FlatSchema.Equal(flat) && before != nil {
		if err := before(c); err != nil {
			return nil, err
		}
	}

	c.KeyProperties = keyProperties
	c.RawSchema = raw
	c.FlatSchema = flat
	c.Schema = columns
	return c, nil
}
