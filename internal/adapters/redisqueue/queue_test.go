package redisqueue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyTradeEngine/internal/domain"
)

func TestEncodeTaskAssignsIDAndTimestamp(t *testing.T) {
	payload := &domain.ExecuteStrategyPayload{
		StrategyRef: "ma_crossover",
		Settings:    &domain.Settings{Pair: "ETHUSDT", Resolution: "1m"},
		Subscribers: []*domain.Subscriber{{UserID: "u1", Capital: 1000}},
	}

	id, body, err := encodeTask(domain.TaskExecuteStrategy, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var task domain.Task
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, id, task.ID)
	assert.Equal(t, domain.TaskExecuteStrategy, task.Type)
	assert.False(t, task.EnqueuedAt.IsZero())

	var decoded domain.ExecuteStrategyPayload
	require.NoError(t, json.Unmarshal(task.Payload, &decoded))
	assert.Equal(t, "ma_crossover", decoded.StrategyRef)
	require.Len(t, decoded.Subscribers, 1)
	assert.Equal(t, "u1", decoded.Subscribers[0].UserID)
}

func TestEncodeTaskDistinctIDs(t *testing.T) {
	id1, _, err := encodeTask(domain.TaskRunBacktest, map[string]string{})
	require.NoError(t, err)
	id2, _, err := encodeTask(domain.TaskRunBacktest, map[string]string{})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestDecodeTaskRoundTrip(t *testing.T) {
	_, body, err := encodeTask(domain.TaskRunBacktest, &domain.BacktestPayload{StrategyRef: "x"})
	require.NoError(t, err)

	task, err := decodeTask(body)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRunBacktest, task.Type)
}

func TestDecodeTaskRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"missing id", `{"type":"RUN_BACKTEST","payload":{}}`},
		{"missing type", `{"id":"abc","payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeTask([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNewRequiresQueueNameAndLogger(t *testing.T) {
	_, err := New(Config{Addr: "localhost:6379"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Addr: "localhost:6379", QueueName: "tasks"}, nil)
	assert.Error(t, err)
}
