package json

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	gojson "github.com/goccy/go-json"
)

// frame is one open container on the decode stack.
type frame struct {
	object  bool
	key     string
	haveKey bool
	items   []Value
	members []Member
}

func (f *frame) close() Value {
	if f.object {
		return Object(f.members...)
	}
	return Array(f.items...)
}

// Decode parses a single JSON document into an ordered Value. Containers are
// tracked on an explicit stack so deeply nested input cannot exhaust the
// goroutine stack.
func Decode(data []byte) (Value, error) {
	dec := NewDecoder(bytes.NewReader(data))

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New(errors.ErrorTypeData, "unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *gojson.Decoder) (Value, error) {
	var stack []*frame

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Value{}, errors.Wrap(err, errors.ErrorTypeData, "invalid JSON")
		}

		var v Value

		switch t := tok.(type) {
		case gojson.Delim:
			switch t {
			case '{':
				stack = append(stack, &frame{object: true})
				continue
			case '[':
				stack = append(stack, &frame{})
				continue
			case '}', ']':
				if len(stack) == 0 {
					return Value{}, errors.Newf(errors.ErrorTypeData, "unexpected delimiter %q", rune(t))
				}
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				v = top.close()
			}
		case string:
			// Inside an object, a string with no pending key is the key itself.
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.object && !top.haveKey {
					top.key = t
					top.haveKey = true
					continue
				}
			}
			v = String(t)
		case bool:
			v = Bool(t)
		case nil:
			v = Null()
		case float64:
			v = Number(strconv.FormatFloat(t, 'g', -1, 64))
		case fmt.Stringer:
			// json.Number under UseNumber
			v = Number(t.String())
		default:
			return Value{}, errors.Newf(errors.ErrorTypeData, "unexpected JSON token %T", tok)
		}

		if len(stack) == 0 {
			return v, nil
		}
		top := stack[len(stack)-1]
		if top.object {
			top.members = append(top.members, Member{Key: top.key, Value: v})
			top.key, top.haveKey = "", false
		} else {
			top.items = append(top.items, v)
		}
	}
}
