package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiolicense/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.Info("tier stored", slog.String("tier_id", "standard"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "tier stored", entries[0]["msg"])
	assert.Equal(t, "standard", entries[0]["tier_id"])
	assert.Equal(t, "INFO", entries[0]["level"])
}

func TestTraceIDInjection(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() context.Context
		wantID  string
		present bool
	}{
		{
			name:    "explicit trace id",
			ctx:     func() context.Context { return WithTraceID(context.Background(), "trace-123") },
			wantID:  "trace-123",
			present: true,
		},
		{
			name: "chi request id",
			ctx: func() context.Context {
				return context.WithValue(context.Background(), middleware.RequestIDKey, "req-9")
			},
			wantID:  "req-9",
			present: true,
		},
		{
			name:    "no trace id",
			ctx:     context.Background,
			present: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(config.LoggingConfig{Level: "debug"}, &buf).With(slog.String("component", "test"))

			logger.InfoContext(tt.ctx(), "message")

			entries := decodeLines(t, &buf)
			require.Len(t, entries, 1)
			assert.Equal(t, "test", entries[0]["component"])
			if tt.present {
				assert.Equal(t, tt.wantID, entries[0]["trace_id"])
			} else {
				assert.NotContains(t, entries[0], "trace_id")
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.level))
		})
	}

	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "warn"}, &buf)
	logger.Info("dropped")
	logger.Warn("kept")
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.NotEmpty(t, id)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing id is preserved")
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	first := InitializeLogger(config.LoggingConfig{Level: "info"})
	second := InitializeLogger(config.LoggingConfig{Level: "debug"})

	assert.Same(t, first, second)
	assert.Same(t, first, GetLogger())
}
