package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoContext_AttachesRequestAttrs(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(New(&buf, "info"))

	ctx := WithClient(WithRequestID(context.Background(), "req-1"), "198.51.100.4")
	InfoContext(ctx, "reservation confirmed", "table", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "reservation confirmed", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "198.51.100.4", line["client"])
	assert.Equal(t, 7.0, line["table"])
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "WARN")
	l.Info("dropped")
	assert.Zero(t, buf.Len())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
