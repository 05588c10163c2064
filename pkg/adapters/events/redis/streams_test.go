package redis

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/batchflow/pkg/domain"
)

func TestGetStreamKey(t *testing.T) {
	assert.Equal(t, "batchflow:events:job.events", getStreamKey(domain.TopicJobEvents))
}

func TestDecodeEvent(t *testing.T) {
	ev := domain.Event{
		ID:        "e1",
		Type:      domain.EventTypeBatchMerged,
		JobID:     "j1",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Data:      map[string]any{"batch": float64(2)},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := decodeEvent(string(data))
	require.NoError(t, err)
	assert.Equal(t, ev.Type, got.Type)
	assert.Equal(t, ev.JobID, got.JobID)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, float64(2), got.Data["batch"])

	_, err = decodeEvent("{")
	assert.Error(t, err)
}

func TestNewStreamsEventBus_RequiresClient(t *testing.T) {
	_, err := NewStreamsEventBus(nil, "g", "c", 0, nil)
	assert.Error(t, err)
}
