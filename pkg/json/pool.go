// Package json provides JSON handling for target-parquet: an ordered JSON
// value type used for schemas and records, the compact literal form used to
// store nested values in string columns, and pooled goccy/go-json encoders
// and decoders.
package json

import (
	"bytes"
	"io"

	"github.com/ajitpratap0/target-parquet/pkg/pool"
	gojson "github.com/goccy/go-json"
)

// Buffers above this capacity are not pooled.
const maxPooledBuffer = 1024 * 1024

var bufferPool = pool.New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
	pool.WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= maxPooledBuffer }),
)

// GetBuffer gets an empty pooled bytes.Buffer.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(buf *bytes.Buffer) {
	bufferPool.Put(buf)
}

// BufferStats reports the encode buffer pool counters.
func BufferStats() pool.Stats {
	return bufferPool.Stats()
}

// NewDecoder returns a decoder that keeps numbers as literals.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// NewLineEncoder returns an encoder writing one JSON document per line
// without HTML escaping.
func NewLineEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// Marshal is a drop-in replacement for json.Marshal backed by goccy/go-json
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal backed by goccy/go-json
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// RawMessage is a raw encoded JSON value kept verbatim.
type RawMessage = gojson.RawMessage
