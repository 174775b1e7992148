package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"join_project","data":{"projectId":"p1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoinProject, event.Type)
	assert.Equal(t, "p1", event.DataString("projectId"))
}

func TestDecodeEvent_InvalidJSON(t *testing.T) {
	_, err := DecodeEvent([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidEventPayload)
}

func TestDecodeEvent_MissingType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"data":{"projectId":"p1"}}`))
	assert.ErrorIs(t, err, ErrMissingEventType)
}

func TestDataString(t *testing.T) {
	event := &Event{Data: map[string]any{"projectId": "p1", "count": 3}}

	assert.Equal(t, "p1", event.DataString("projectId"))
	assert.Equal(t, "", event.DataString("missing"))
	assert.Equal(t, "", event.DataString("count"), "non-string values read as empty")

	var empty Event
	assert.Equal(t, "", empty.DataString("projectId"))
}

func TestErrorEvent(t *testing.T) {
	event := ErrorEvent(CodeRateLimitExceeded, "Rate limit exceeded")

	assert.Equal(t, EventError, event.Type)
	assert.Equal(t, CodeRateLimitExceeded, event.Data["code"])
	assert.Equal(t, "Rate limit exceeded", event.Data["message"])
	assert.False(t, event.Timestamp.IsZero())
}

func TestIsClientEvent(t *testing.T) {
	for _, eventType := range []string{EventJoinProject, EventLeaveProject, EventTypingStart, EventTypingStop, EventPing} {
		assert.True(t, IsClientEvent(eventType), eventType)
	}

	assert.False(t, IsClientEvent(EventJoinedProject))
	assert.False(t, IsClientEvent(EventStoryUploaded))
	assert.False(t, IsClientEvent(""))
}

func TestIsDomainEvent(t *testing.T) {
	for _, eventType := range []string{EventStoryUploaded, EventInteractionAdded, EventTranscriptUpdated, EventExportReady} {
		assert.True(t, IsDomainEvent(eventType), eventType)
	}

	assert.False(t, IsDomainEvent(EventPing))
	assert.False(t, IsDomainEvent(EventServerShutdown))
}
