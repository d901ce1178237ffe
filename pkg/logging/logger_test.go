package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_WithoutContextLogger(t *testing.T) {
	ctx := context.Background()
	retrieved := G(ctx)
	assert.NotNil(t, retrieved)
	assert.Equal(t, L.Logger, retrieved.Logger)
}

func TestWithLogger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	custom := logrus.NewEntry(logrus.New()).WithField("component", "store")

	ctx = WithLogger(ctx, custom)
	retrieved := G(ctx)

	assert.Contains(t, retrieved.Data, "component")
	assert.Equal(t, "store", retrieved.Data["component"])
}

func TestWithOperation_TagsDownstreamLogger(t *testing.T) {
	ctx := WithOperation(context.Background(), "advance")
	assert.Equal(t, "advance", G(ctx).Data["operation"])

	// A logger derived from the tagged one and attached again keeps the
	// "operation" field set by WithOperation alongside its own fields.
	ctx = WithLogger(ctx, G(ctx).WithField("agent_id", "a1"))
	retrieved := G(ctx)
	assert.Equal(t, "advance", retrieved.Data["operation"])
	assert.Equal(t, "a1", retrieved.Data["agent_id"])
}

func TestConfigure_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	defer func() { require.NoError(t, Configure("info", "text", os.Stderr)) }()

	require.NoError(t, Configure("debug", "json", &buf))
	L.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "info", entry["logLevel"])
	_, err := time.Parse(time.RFC3339Nano, entry["timestamp"].(string))
	assert.NoError(t, err)
}

func TestConfigure_RejectsUnknownLevel(t *testing.T) {
	err := Configure("not-a-level", "text", nil)
	assert.Error(t, err)
}
