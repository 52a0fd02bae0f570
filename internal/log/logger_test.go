package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/helixml/damkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter_JSONLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, config.LogFormatJSON, "WARN")

	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("also shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var data map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &data))
	}
}

func TestContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, config.LogFormatJSON, "DEBUG")

	ctx := WithCorrelationID(context.Background(), "corr-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithPrincipal(ctx, "tenant-1", "user-1")
	logger.InfoContext(ctx, "folder created", "name", "Marketing")

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "corr-1", data["correlation_id"])
	assert.Equal(t, "req-1", data["request_id"])
	assert.Equal(t, "tenant-1", data["tenant_id"])
	assert.Equal(t, "user-1", data["user_id"])
	assert.Equal(t, "Marketing", data["name"])
	assert.Equal(t, "corr-1", CorrelationID(ctx))
}

func TestContextAttrs_SurviveWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, config.LogFormatJSON, "INFO").With("component", "worker")

	logger.InfoContext(WithCorrelationID(context.Background(), "c"), "tick")

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "worker", data["component"])
	assert.Equal(t, "c", data["correlation_id"])
}

func TestTerminalHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, config.LogFormatPretty, "DEBUG")

	logger.With("svc", "api").WithGroup("req").Debug("hello world", "path", "/a b")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "hello world")
	assert.Contains(t, out, "svc=")
	assert.Contains(t, out, "req.path=")
	assert.Contains(t, out, `"/a b"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
