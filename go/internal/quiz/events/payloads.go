package events

import (
	"time"
)

// Event payload types shared between the coordinator and the gateway.

// EventType identifies a session lifecycle event.
type EventType string

const (
	EventTypeSessionCreated   EventType = "SessionCreated"
	EventTypeAnswerRecorded   EventType = "AnswerRecorded"
	EventTypeCountdownTick    EventType = "CountdownTick"
	EventTypeSessionFinalized EventType = "SessionFinalized"
)

// SessionCreatedPayload is the payload for a SessionCreated event.
type SessionCreatedPayload struct {
	SessionID    string    `json:"session_id"`
	QuizType     string    `json:"quiz_type"`
	Question     string    `json:"question"`
	Options      []string  `json:"options"`
	CreatorLabel string    `json:"creator_label"`
	CreatedAt    time.Time `json:"created_at"`
	EndsAt       time.Time `json:"ends_at"`
	DurationSec  int       `json:"duration_sec"`
}

// AnswerRecordedPayload is the payload for an AnswerRecorded event. It never
// carries correctness; that stays between the participant and the engine.
type AnswerRecordedPayload struct {
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	AnsweredAt    time.Time `json:"answered_at"`
	TotalAnswered int       `json:"total_answered"`
}

// CountdownTickPayload is the payload for a CountdownTick event.
type CountdownTickPayload struct {
	SessionID        string    `json:"session_id"`
	TimeRemainingSec int       `json:"time_remaining_sec"`
	TickedAt         time.Time `json:"ticked_at"`
}

// SessionFinalizedPayload is the payload for a SessionFinalized event.
type SessionFinalizedPayload struct {
	SessionID    string    `json:"session_id"`
	Participants int       `json:"participants"`
	RankedCount  int       `json:"ranked_count"`
	FinalizedAt  time.Time `json:"finalized_at"`
}
