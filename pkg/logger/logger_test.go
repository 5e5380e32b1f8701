package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := newLogger()

	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger_WithoutContextLogger(t *testing.T) {
	retrieved := G(context.Background())
	assert.Equal(t, L.Logger, retrieved.Logger)
}

func TestGetLogger_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is tolerated on purpose
	assert.Equal(t, L, G(nil))
}

func TestWithCommand(t *testing.T) {
	ctx := WithCommand(context.Background(), "worktree")
	assert.Equal(t, "worktree", G(ctx).Data["command"])

	nested := WithLogger(ctx, G(ctx).WithField("branch", "feature/x"))
	assert.Equal(t, "worktree", G(nested).Data["command"])
	assert.Equal(t, "feature/x", G(nested).Data["branch"])
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	setLoggerFormat(l, "json")

	ctx := WithLogger(context.Background(), logrus.NewEntry(l))
	G(ctx).Info("test message")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["logLevel"])
	assert.Equal(t, "test message", entry["message"])

	ts, ok := entry["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, ts)
	assert.NoError(t, err)
}

func TestConfigure(t *testing.T) {
	original := L.Logger.GetLevel()
	defer L.Logger.SetLevel(original)

	require.NoError(t, Configure("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, L.Logger.Formatter)

	err := Configure("chatty", "fmt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "chatty"`)

	SetLogFormat("fmt")
}
