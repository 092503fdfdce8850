package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults", func(t *testing.T) {
		l, err := New(Config{Level: "debug"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(-1))
	})
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	ctx := NewContext(context.Background(), zap.New(core))
	ctx = context.WithValue(ctx, SyncIDKey, "abc")
	ctx = context.WithValue(ctx, StreamKey, "users")
	WithContext(ctx).Info("flushed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "abc", fields["sync_id"])
	assert.Equal(t, "users", fields["stream"])
}

func TestWithContextFallsBackToGlobal(t *testing.T) {
	assert.Same(t, Get(), WithContext(context.Background()))
}
