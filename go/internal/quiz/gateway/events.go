package gateway

import (
	"encoding/json"
	"time"

	"github.com/brainbuzz/brainbuzz/go/internal/quiz/events"
)

// SessionEvent is the wire format pushed to WebSocket clients.
type SessionEvent struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Type      events.EventType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Data      json.RawMessage  `json:"data"`
}

// ParseEventPayload parses event data into the matching payload struct.
// Unknown event types return nil so clients can ignore future additions.
func ParseEventPayload(event *SessionEvent) (any, error) {
	switch event.Type {
	case events.EventTypeSessionCreated:
		var payload events.SessionCreatedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeAnswerRecorded:
		var payload events.AnswerRecordedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeCountdownTick:
		var payload events.CountdownTickPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.EventTypeSessionFinalized:
		var payload events.SessionFinalizedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil
	}
}
