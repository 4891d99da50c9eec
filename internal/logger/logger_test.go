package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "json")

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	ctx = ContextWithUserID(ctx, 42)

	WithContext(ctx).Info("booking created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, float64(42), entry["user_id"])
	assert.Equal(t, "canchita", entry["service"])
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "text")

	Get().Info("hidden")
	assert.Zero(t, buf.Len())

	Get().Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRequestIDIsUnique(t *testing.T) {
	assert.NotEqual(t, NewRequestID(), NewRequestID())
}
