package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextFieldsAreAttached(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("debug", "json", &buf)
	t.Cleanup(func() { InitWithWriter("info", "json", &bytes.Buffer{}) })

	ctx := WithContext(context.Background(), StoryIDKey, "s1")
	ctx = WithContext(ctx, ImportIDKey, "job-1")
	Warn(ctx, "skipped reference", "stage", "relationships")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "s1", line["story_id"])
	assert.Equal(t, "job-1", line["import_id"])
	assert.Equal(t, "relationships", line["stage"])
	assert.NotContains(t, line, "request_id")
}

func TestFromContextBindsFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", "json", &buf)
	t.Cleanup(func() { InitWithWriter("info", "json", &bytes.Buffer{}) })

	ctx := WithContext(context.Background(), RequestIDKey, "r1")
	FromContext(ctx).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "r1", line["request_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
