// Package batch buffers flattened rows per stream and decides when they
// must be flushed.
package batch

import (
	"github.com/ajitpratap0/target-parquet/pkg/flatten"
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/schema"
)

const bytesPerMB = 1024 * 1024

// Limits are the flush thresholds.
type Limits struct {
	// MaxRows flushes once the buffer holds this many rows
	MaxRows int
	// MaxMB flushes once the estimated columnar size is above this
	MaxMB float64
}

// Accumulator holds the rows of one stream awaiting a write, together with
// a running estimate of their size once laid out as Arrow columns.
//
// The estimate follows Arrow's buffer layout: 8 bytes per int64 or float64
// slot, one bit per bool, a 4 byte offset plus the UTF-8 payload per string
// and one validity bit per slot of a nullable column.
type Accumulator struct {
	limits Limits
	rows   []flatten.Row
	bits   int64
}

// New returns an empty accumulator.
func New(limits Limits) *Accumulator {
	return &Accumulator{limits: limits}
}

// Append adds a row laid out against s.
func (a *Accumulator) Append(row flatten.Row, s *schema.Schema) {
	a.rows = append(a.rows, row)
	a.bits += RowBits(row, s)
}

// Len returns the number of buffered rows.
func (a *Accumulator) Len() int { return len(a.rows) }

// Empty reports whether nothing is buffered.
func (a *Accumulator) Empty() bool { return len(a.rows) == 0 }

// EstimatedBytes returns the estimated columnar size of the buffer.
func (a *Accumulator) EstimatedBytes() int64 { return (a.bits + 7) / 8 }

// EstimatedMB returns EstimatedBytes in megabytes.
func (a *Accumulator) EstimatedMB() float64 {
	return float64(a.EstimatedBytes()) / bytesPerMB
}

// ShouldFlush reports whether either threshold has been crossed.
func (a *Accumulator) ShouldFlush() bool {
	if len(a.rows) == 0 {
		return false
	}
	if a.limits.MaxRows > 0 && len(a.rows) >= a.limits.MaxRows {
		return true
	}
	return a.limits.MaxMB > 0 && a.EstimatedMB() > a.limits.MaxMB
}

// Rows returns the buffered rows without clearing them.
func (a *Accumulator) Rows() []flatten.Row { return a.rows }

// Drain returns the buffered rows and clears the buffer.
func (a *Accumulator) Drain() []flatten.Row {
	rows := a.rows
	a.rows = nil
	a.bits = 0
	return rows
}

// RowBits estimates the columnar footprint of a single row in bits.
func RowBits(row flatten.Row, s *schema.Schema) int64 {
	var bits int64
	for i := 0; i < s.Len(); i++ {
		f := s.At(i)
		if f.Nullable {
			bits++
		}
		switch f.Type {
		case schema.Bool:
			bits++
		case schema.Int64, schema.Float64:
			bits += 64
		default:
			bits += 32
			if v, ok := row[f.Name]; ok && !v.IsNull() {
				bits += 8 * int64(textLen(v))
			}
		}
	}
	return bits
}

func textLen(v json.Value) int {
	switch v.Kind() {
	case json.KindString, json.KindNumber:
		return len(v.Text())
	case json.KindBool:
		if v.Bool() {
			return 4
		}
		return 5
	default:
		return len(json.Stringify(v))
	}
}
