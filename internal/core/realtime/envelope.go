package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// Inbound event names.
const (
	EventJoinChat                = "join-chat"
	EventLeaveChat               = "leave-chat"
	EventSendMessage             = "send-message"
	EventApplicationStatusUpdate = "application-status-update"
	EventScheduleInterview       = "schedule-interview"
	EventNewInternshipMatch      = "new-internship-match"
	EventTypingStart             = "typing-start"
	EventTypingStop              = "typing-stop"
)

// Outbound event names.
const (
	EventNewMessage               = "new-message"
	EventApplicationStatusChanged = "application-status-changed"
	EventInterviewScheduled       = "interview-scheduled"
	EventUserTyping               = "user-typing"
	EventError                    = "error"
	EventConnectError             = "connect_error"
)

// Envelope is the wire frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is the body of error and connect_error frames.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode marshals payload into a frame for event.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses an inbound frame. A frame without an event name is invalid.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed frame", domain.ErrValidation)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: frame has no event name", domain.ErrValidation)
	}
	return env, nil
}
