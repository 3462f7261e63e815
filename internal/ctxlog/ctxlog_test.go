package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsEmbeddedLogger(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_PanicsWithoutLogger(t *testing.T) {
	t.Parallel()

	require.PanicsWithValue(t, "ctxlog: logger missing from context", func() {
		FromContext(context.Background())
	})
}

func TestWith_AddsAttributes(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	// --- Act ---
	ctx = With(ctx, "looper", "recommendation")
	FromContext(ctx).Info("hello")

	// --- Assert ---
	assert.Contains(t, buf.String(), "looper=recommendation")
	assert.Contains(t, buf.String(), "msg=hello")
}
