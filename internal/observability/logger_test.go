package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestFromContext_WithoutInit(t *testing.T) {
	logger = nil
	assert.NotNil(t, FromContext(context.Background()))
}

func TestFromContext_AttachesContextValues(t *testing.T) {
	InitLogger("info", "json")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "user-1")
	ctx = WithConnID(ctx, "conn-1")

	// The derived logger must be distinct from the bare one since it
	// carries attributes.
	assert.NotSame(t, logger, FromContext(ctx))
	assert.Same(t, logger, FromContext(context.Background()))
}
