// Package message decodes the line-delimited tap protocol consumed by
// target-parquet. Each line is one JSON object tagged by its "type" field.
package message

import (
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/json"
)

// Type is the tag of a protocol message.
type Type string

const (
	TypeSchema          Type = "SCHEMA"
	TypeRecord          Type = "RECORD"
	TypeState           Type = "STATE"
	TypeActivateVersion Type = "ACTIVATE_VERSION"
)

// Message is implemented by *Schema, *Record, *State and *ActivateVersion.
type Message interface {
	Type() Type
}

// Schema declares the shape of a stream's records.
type Schema struct {
	Stream        string
	Schema        json.Value
	KeyProperties []string
}

// Type implements Message.
func (*Schema) Type() Type { return TypeSchema }

// Record carries one data row for a stream.
type Record struct {
	Stream string
	Record json.Value
}

// Type implements Message.
func (*Record) Type() Type { return TypeRecord }

// State is a checkpoint marker. Value holds the payload exactly as it
// appeared on the wire.
type State struct {
	Value json.RawMessage
}

// Type implements Message.
func (*State) Type() Type { return TypeState }

// ActivateVersion is accepted for protocol compatibility and otherwise ignored.
type ActivateVersion struct {
	Stream  string
	Version int64
}

// Type implements Message.
func (*ActivateVersion) Type() Type { return TypeActivateVersion }

type envelope struct {
	Type          string          `json:"type"`
	Stream        string          `json:"stream"`
	Schema        *json.Value     `json:"schema"`
	Record        *json.Value     `json:"record"`
	KeyProperties []string        `json:"key_properties"`
	Value         json.RawMessage `json:"value"`
	Version       int64           `json:"version"`
}

// Parse decodes a single protocol line.
func Parse(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "invalid message")
	}

	switch Type(strings.ToUpper(env.Type)) {
	case TypeSchema:
		if env.Stream == "" {
			return nil, errors.New(errors.ErrorTypeData, "SCHEMA message without stream")
		}
		if env.Schema == nil || env.Schema.Kind() != json.KindObject {
			return nil, errors.New(errors.ErrorTypeData, "SCHEMA message without schema object").
				WithDetail("stream", env.Stream)
		}
		return &Schema{Stream: env.Stream, Schema: *env.Schema, KeyProperties: env.KeyProperties}, nil

	case TypeRecord:
		if env.Stream == "" {
			return nil, errors.New(errors.ErrorTypeData, "RECORD message without stream")
		}
		if env.Record == nil || env.Record.Kind() != json.KindObject {
			return nil, errors.New(errors.ErrorTypeData, "RECORD message without record object").
				WithDetail("stream", env.Stream)
		}
		return &Record{Stream: env.Stream, Record: *env.Record}, nil

	case TypeState:
		value := env.Value
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		return &State{Value: value}, nil

	case TypeActivateVersion:
		return &ActivateVersion{Stream: env.Stream, Version: env.Version}, nil

	case "":
		return nil, errors.New(errors.ErrorTypeData, "message without type")

	default:
		return nil, errors.Newf(errors.ErrorTypeData, "unknown message type %q", env.Type)
	}
}
