package types

import (
	"encoding/json"
	"time"
)

// Client-originated event types.
const (
	EventJoinProject  = "join_project"
	EventLeaveProject = "leave_project"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventPing         = "ping"
)

// Server-originated event types.
const (
	EventJoinedProject  = "joined_project"
	EventLeftProject    = "left_project"
	EventPong           = "pong"
	EventError          = "error"
	EventServerShutdown = "server_shutdown"
)

// Domain event types published by the REST backend and fanned out to
// project rooms or user devices.
const (
	EventStoryUploaded     = "story_uploaded"
	EventInteractionAdded  = "interaction_added"
	EventTranscriptUpdated = "transcript_updated"
	EventExportReady       = "export_ready"
)

// Error codes carried in error event payloads.
const (
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeProjectAccessDenied = "PROJECT_ACCESS_DENIED"
	CodeJoinProjectError    = "JOIN_PROJECT_ERROR"
	CodeLeaveProjectError   = "LEAVE_PROJECT_ERROR"
)

// Event is the wire envelope for both directions of the WebSocket
// protocol. Data keys use camelCase to match the web and mobile clients.
type Event struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitzero"`
}

// DecodeEvent parses an inbound client frame.
func DecodeEvent(raw []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, ErrInvalidEventPayload
	}
	if event.Type == "" {
		return nil, ErrMissingEventType
	}
	return &event, nil
}

// DataString extracts a string field from the event payload, returning
// "" when the field is absent or not a string.
func (e *Event) DataString(key string) string {
	if e.Data == nil {
		return ""
	}
	value, _ := e.Data[key].(string)
	return value
}

// ErrorEvent builds an error event with the given code and message.
func ErrorEvent(code, message string) *Event {
	return &Event{
		Type: EventError,
		Data: map[string]any{
			"code":    code,
			"message": message,
		},
		Timestamp: time.Now(),
	}
}

// IsClientEvent reports whether the type is one a client may send.
func IsClientEvent(eventType string) bool {
	switch eventType {
	case EventJoinProject, EventLeaveProject, EventTypingStart, EventTypingStop, EventPing:
		return true
	}
	return false
}

// IsDomainEvent reports whether the type is a server-originated domain
// event accepted on the internal publish surface.
func IsDomainEvent(eventType string) bool {
	switch eventType {
	case EventStoryUploaded, EventInteractionAdded, EventTranscriptUpdated, EventExportReady:
		return true
	}
	return false
}
