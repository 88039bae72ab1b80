package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowrt/flowrt/internal/obs/logger"
)

func TestNewParsesLevel(t *testing.T) {
	l := logger.New("warn", "json")
	assert.False(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, l.Enabled(context.Background(), slog.LevelWarn))

	l = logger.New("debug", "json")
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	l = logger.New("unknown-level", "json")
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
}

func TestWithContextAttachesTraceID(t *testing.T) {
	l := logger.New("info", "json")

	withTrace := l.WithContext(context.WithValue(context.Background(), "trace_id", "abc-123"))
	assert.NotNil(t, withTrace)

	withoutTrace := l.WithContext(context.Background())
	assert.Same(t, l, withoutTrace)
}

func TestWithFieldsAndScopedHelpers(t *testing.T) {
	l := logger.New("info", "json")

	scoped := l.WithFields(map[string]any{"component": "executor"}).
		WithRunID("run-1").
		WithFlowID("flow-1").
		WithNodeID("node-1")

	assert.NotNil(t, scoped)
	assert.NotSame(t, l, scoped)
}
