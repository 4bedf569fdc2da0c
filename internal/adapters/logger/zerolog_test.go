package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerEmitsStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, LevelDebug)

	l.Info(context.Background(), "order placed", map[string]interface{}{
		"user_id":  "user1",
		"quantity": 2.5,
	})

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "order placed", record["message"])
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "user1", record["user_id"])
	assert.Equal(t, 2.5, record["quantity"])
	assert.Contains(t, record, "time")
}

func TestZerologLoggerErrorIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, LevelDebug)

	l.Error(context.Background(), errors.New("boom"), "order failed")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "error", record["level"])
}

func TestZerologLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerTo(&buf, LevelWarn)

	l.Debug(context.Background(), "noise")
	l.Info(context.Background(), "noise")
	assert.Zero(t, buf.Len())

	l.Warn(context.Background(), "signal")
	assert.NotZero(t, buf.Len())
}
