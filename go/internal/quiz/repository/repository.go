package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
)

// Repository is the in-memory session store. It is the single source of truth
// for session state and the only shared mutable resource in the coordinator;
// every method is one short critical section. Sessions live for the process
// lifetime only.
type Repository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session

	// scope -> session id index for the one-session-per-scope policy.
	scopes         map[string]uuid.UUID
	scopeExclusive bool
}

// NewRepository creates an empty session store. When scopeExclusive is set,
// CreateSession rejects a second session for a scope that already holds one.
func NewRepository(scopeExclusive bool) *Repository {
	return &Repository{
		sessions:       make(map[uuid.UUID]*models.Session),
		scopes:         make(map[string]uuid.UUID),
		scopeExclusive: scopeExclusive,
	}
}

type CreateSessionRequest struct {
	ID           uuid.UUID          `json:"id"`
	QuizType     models.QuizType    `json:"quiz_type"`
	Content      models.QuizContent `json:"content"`
	Destination  models.Destination `json:"destination"`
	Scope        string             `json:"scope"`
	CreatorLabel string             `json:"creator_label"`
	CreatedAt    time.Time          `json:"created_at"`
	EndsAt       time.Time          `json:"ends_at"`
}

// CreateSession inserts a new Open session. Returns ErrScopeBusy when the
// scope policy is enabled and the scope already holds a live session.
func (r *Repository) CreateSession(req CreateSessionRequest) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[req.ID]; exists {
		return nil, ErrSessionExists
	}
	if r.scopeExclusive && req.Scope != "" {
		if busyID, busy := r.scopes[req.Scope]; busy {
			log.Debug().
				Str("scope", req.Scope).
				Str("session_id", busyID.String()).
				Msg("scope already holds a session")
			return nil, ErrScopeBusy
		}
	}

	session := &models.Session{
		ID:           req.ID,
		QuizType:     req.QuizType,
		Content:      req.Content,
		CreatedAt:    req.CreatedAt,
		EndsAt:       req.EndsAt,
		Destination:  req.Destination,
		Scope:        req.Scope,
		CreatorLabel: req.CreatorLabel,
		State:        models.SessionStateOpen,
		Answered:     make(map[string]time.Time),
	}
	r.sessions[req.ID] = session
	if req.Scope != "" {
		r.scopes[req.Scope] = req.ID
	}

	return snapshot(session), nil
}

// GetSession returns a point-in-time copy of the session, or ErrNotFound.
func (r *Repository) GetSession(id uuid.UUID) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(session), nil
}

// RecordAnswer appends a participant to the answer ledger and returns the
// ledger size after the append. The check against the ledger, the state, and
// the deadline happens atomically, so two concurrent submissions from the
// same participant cannot both succeed and every accepted answer observes a
// distinct total.
func (r *Repository) RecordAnswer(id uuid.UUID, participantID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	if session.State != models.SessionStateOpen {
		return 0, ErrSessionClosed
	}
	// The deadline itself is the authoritative cutoff, not the state
	// transition that eventually follows it.
	if now.After(session.EndsAt) {
		return 0, ErrSessionExpired
	}
	if _, answered := session.Answered[participantID]; answered {
		return 0, ErrAlreadyAnswered
	}

	session.Answered[participantID] = now
	return len(session.Answered), nil
}

// Transition moves a session from one state to another. A request whose from
// state does not match the current state returns ErrConflict and changes
// nothing; this is what makes finalization single-winner.
func (r *Repository) Transition(id uuid.UUID, from, to models.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if session.State != from {
		return ErrConflict
	}

	session.State = to
	log.Debug().
		Str("session_id", id.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("session state transition")
	return nil
}

// RemoveSession deletes the session and frees its scope. Removing a session
// that is already gone is a no-op.
func (r *Repository) RemoveSession(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return
	}
	if session.Scope != "" && r.scopes[session.Scope] == id {
		delete(r.scopes, session.Scope)
	}
	delete(r.sessions, id)
}

// snapshot copies a session, including its answer ledger, so callers never
// observe concurrent mutations.
func snapshot(s *models.Session) *models.Session {
	copied := *s
	copied.Answered = make(map[string]time.Time, len(s.Answered))
	for participant, at := range s.Answered {
		copied.Answered[participant] = at
	}
	return &copied
}
