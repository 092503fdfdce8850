package message

import (
	"bufio"
	"bytes"
	"io"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
)

// MaxLineSize bounds a single protocol line.
const MaxLineSize = 64 * 1024 * 1024

// Reader yields messages from a line-delimited stream. Blank lines are
// skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Reader{scanner: s}
}

// Next returns the next message, or io.EOF once the input is exhausted.
func (r *Reader) Next() (Message, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := Parse(line)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse message").
				WithDetail("line", r.line)
		}
		return msg, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to read input").
			WithDetail("line", r.line+1)
	}
	return nil, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int { return r.line }
