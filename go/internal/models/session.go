package models

import (
	"time"

	"github.com/google/uuid"
)

// QuizType defines the category of a quiz.
type QuizType string

const (
	QuizTypeHistorical QuizType = "HISTORICAL"
	QuizTypeIcebreaker QuizType = "ICEBREAKER"
	QuizTypeMovieQuote QuizType = "MOVIE_QUOTE"
)

// SessionState defines the lifecycle state of a quiz session.
type SessionState string

const (
	SessionStateOpen       SessionState = "OPEN"
	SessionStateFinalizing SessionState = "FINALIZING"
	SessionStateClosed     SessionState = "CLOSED"
)

// DestinationKind distinguishes channel-like targets from direct messages.
type DestinationKind string

const (
	DestinationChannel DestinationKind = "CHANNEL"
	DestinationDirect  DestinationKind = "DIRECT"
)

// Destination is an opaque notification target. The coordinator never
// interprets it beyond passing it to the notifier.
type Destination struct {
	Kind DestinationKind `json:"kind"`
	ID   string          `json:"id"`
}

// Valid reports whether the destination is fully specified.
func (d Destination) Valid() bool {
	return (d.Kind == DestinationChannel || d.Kind == DestinationDirect) && d.ID != ""
}

// QuizContent is the payload returned by the quiz engine for a session.
// Immutable once fetched.
type QuizContent struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Session is one timed quiz instance. EndsAt is fixed at creation and is the
// only deadline authority; it is never recomputed.
type Session struct {
	ID           uuid.UUID            `json:"id"`
	QuizType     QuizType             `json:"quiz_type"`
	Content      QuizContent          `json:"content"`
	CreatedAt    time.Time            `json:"created_at"`
	EndsAt       time.Time            `json:"ends_at"`
	Destination  Destination          `json:"destination"`
	Scope        string               `json:"scope"`
	CreatorLabel string               `json:"creator_label"`
	State        SessionState         `json:"state"`
	Answered     map[string]time.Time `json:"answered"`
}

// ParticipantCount returns the size of the answer ledger.
func (s *Session) ParticipantCount() int {
	return len(s.Answered)
}
