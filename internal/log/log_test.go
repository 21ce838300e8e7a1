package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerTagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf}).WithComponent(ComponentLedger)
	l.Info("saved", FieldOwner, "u1")

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "component="))
	assert.Contains(t, line, "component=ledger")
	assert.Contains(t, line, "owner=u1")
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
	ctx := context.Background()

	sl.LogMutation(ctx, "Budget saved", OpUpsert, NewFields().WithOwner("u1").WithAmount(decimal.RequireFromString("12.5")))
	sl.LogRejected(ctx, "Bad amount", OpCreate, errors.New("invalid amount"), NewFields())

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "amount=12.50")
	assert.Contains(t, out, "operation=upsert")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "error_type=validation_error")
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())

	custom := New(DefaultConfig())
	ctx := context.WithValue(context.Background(), LoggerContextKey, custom)
	assert.Equal(t, ComponentApp, FromContext(ctx).Component())
}
