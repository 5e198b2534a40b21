package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphmine/coocscan/pkg/observability"
)

func TestTracingHandler_ServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(observability.NewTracingHandler(inner, "coocscan", "lab"))

	logger.InfoContext(context.Background(), "scan started", "units", 12)

	out := buf.String()
	assert.Contains(t, out, "service=coocscan")
	assert.Contains(t, out, "env=lab")
	assert.Contains(t, out, "units=12")

	// No valid span in context: trace attributes are omitted.
	assert.NotContains(t, out, "trace_id")
}

func TestTracingHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(observability.NewTracingHandler(inner, "coocscan", ""))

	logger.WithGroup("unit").Info("completed", "id", "a/b.gz")

	out := buf.String()
	assert.Contains(t, out, "unit.id=a/b.gz")
	assert.Contains(t, out, "service=coocscan")
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelDebug, observability.ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, observability.ParseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, observability.ParseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, observability.ParseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, observability.ParseLogLevel("bogus"))
}

func TestInit_NoEndpoint_NoopProviders(t *testing.T) {
	providers, err := observability.Init(observability.Config{
		ServiceName: "coocscan",
		LogLevel:    slog.LevelInfo,
	})
	require.NoError(t, err)
	require.NotNil(t, providers.Logger)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestNewScanMetrics(t *testing.T) {
	providers, err := observability.Init(observability.Config{ServiceName: "coocscan"})
	require.NoError(t, err)

	sm, err := observability.NewScanMetrics(providers.Meter)
	require.NoError(t, err)
	require.NotNil(t, sm)

	// No-op meter: recording must not panic.
	sm.RecordUnit(context.Background(), "ok", 100, 2, 0)
	sm.RecordCheckpoint(context.Background(), 0)
	sm.RecordPairGrowth(context.Background(), 5)
}
