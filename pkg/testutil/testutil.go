// Package testutil provides helpers for tests that drive the target with
// message streams.
package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ajitpratap0/target-parquet/pkg/json"
	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

type schemaMessage struct {
	Type          string          `json:"type"`
	Stream        string          `json:"stream"`
	Schema        json.RawMessage `json:"schema"`
	KeyProperties []string        `json:"key_properties"`
}

type recordMessage struct {
	Type   string          `json:"type"`
	Stream string          `json:"stream"`
	Record json.RawMessage `json:"record"`
}

type stateMessage struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// SchemaLine renders a SCHEMA message. schema must be a JSON object.
func SchemaLine(t testing.TB, stream, schema string, keyProperties ...string) string {
	t.Helper()
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return marshalLine(t, schemaMessage{Type: "SCHEMA", Stream: stream, Schema: compact(t, schema), KeyProperties: keyProperties})
}

// RecordLine renders a RECORD message. record must be a JSON object.
func RecordLine(t testing.TB, stream, record string) string {
	t.Helper()
	return marshalLine(t, recordMessage{Type: "RECORD", Stream: stream, Record: compact(t, record)})
}

// StateLine renders a STATE message.
func StateLine(t testing.TB, value string) string {
	t.Helper()
	return marshalLine(t, stateMessage{Type: "STATE", Value: compact(t, value)})
}

// compact keeps multi-line literals from breaking the one-message-per-line
// framing.
func compact(t testing.TB, s string) json.RawMessage {
	t.Helper()
	buf := json.GetBuffer()
	defer json.PutBuffer(buf)
	require.NoError(t, gojson.Compact(buf, []byte(s)))
	return json.RawMessage(append([]byte(nil), buf.Bytes()...))
}

func marshalLine(t testing.TB, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

// Input joins lines into a newline terminated message stream.
func Input(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}
