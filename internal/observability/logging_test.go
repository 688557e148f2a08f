package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:   "default config",
			config: DefaultLogConfig(),
		},
		{
			name:   "console format",
			config: LogConfig{Level: "debug", Format: "console", Output: "stdout"},
		},
		{
			name:   "stderr output",
			config: LogConfig{Level: "warn", Format: "json", Output: "stderr"},
		},
		{
			name:   "empty format falls back to json",
			config: LogConfig{Level: "info"},
		},
		{
			name:    "invalid level",
			config:  LogConfig{Level: "loud", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  LogConfig{Level: "info", Format: "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")

	logger.WithContext(ctx).Info("handled", String("route", "/api/search"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "/api/search", fields["route"])
}

func TestLogger_WithContext_Empty(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewLoggerFromZap(zap.New(core))

	same := logger.WithContext(context.Background())
	assert.Same(t, logger, same)

	same.Warn("no ids")
	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].ContextMap())
}

func TestContextIDs_Missing(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestGlobalLogger(t *testing.T) {
	// Not parallel: mutates the global logger.
	assert.NotNil(t, L())

	nop := NopLogger()
	SetGlobalLogger(nop)
	t.Cleanup(func() { SetGlobalLogger(nil) })

	assert.Same(t, nop, L())
}
