package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentRefresh, JSON: true, Output: &buf})

	l.Info("hello", "k", "v")
	l.WithComponent(ComponentHTTP).Debug("second")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "refresh", lines[0][FieldComponent])
	assert.Equal(t, "v", lines[0]["k"])
	assert.Equal(t, "http", lines[1][FieldComponent])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})

	l.Info("dropped")
	l.Warn("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, ComponentApp, lines[0][FieldComponent])
}

func TestLogRefreshLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, JSON: true, Output: &buf}))
	ctx := context.Background()

	sl.LogRefresh(ctx, "timer", false, "success", 2, 3, 15*time.Millisecond, nil)
	sl.LogRefresh(ctx, "timer", true, "error", 0, 0, time.Millisecond, errors.New("boom"))
	sl.LogRefresh(ctx, "manual", false, "error", 0, 0, time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.EqualValues(t, 2, lines[0][FieldIncome])
	assert.EqualValues(t, 15, lines[0][FieldDuration])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "boom", lines[1][FieldError])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, ComponentRefresh, lines[2][FieldComponent])
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard().WithComponent(ComponentTrace).With(FieldRequestID, "req-1")

	got := FromContext(NewContext(context.Background(), l))
	require.NotNil(t, got)
	assert.Same(t, l, got)
	assert.Equal(t, ComponentTrace, got.Component())
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}
