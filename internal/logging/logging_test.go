package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSlogLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Info(context.Background(), "hello", "book", "b1")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"book":"b1"`)
}

func TestSlogLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil))).With("component", "cache")

	l.Warn(context.Background(), "stale")

	assert.Contains(t, buf.String(), `"component":"cache"`)
}

func TestZapLoggerSatisfiesInterface(t *testing.T) {
	var _ Logger = NewZapLogger(zap.NewNop())
	var _ Logger = NewNopLogger()
}
