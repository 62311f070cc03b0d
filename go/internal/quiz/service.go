package quiz

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/repository"
)

// CatalogEntry is one selectable quiz category.
type CatalogEntry struct {
	Value models.QuizType `json:"value" yaml:"value"`
	Label string          `json:"label" yaml:"label"`
}

// Service is the HTTP JSON surface for the UI layer: session setup, answer
// submission, snapshots, and force-close.
type Service struct {
	app     *App
	catalog []CatalogEntry
}

// NewService creates the HTTP service layer. The catalog constrains which
// quiz types setup requests may ask for; an empty catalog disables the check.
func NewService(app *App, catalog []CatalogEntry) *Service {
	return &Service{app: app, catalog: catalog}
}

// RegisterRoutes attaches the service endpoints to the router.
func (s *Service) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/catalog", s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/answers", s.handleSubmitAnswer).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/close", s.handleCloseSession).Methods(http.MethodPost)
}

type createSessionRequest struct {
	QuizType     models.QuizType    `json:"quiz_type"`
	Duration     string             `json:"duration"`
	Destination  models.Destination `json:"destination"`
	Scope        string             `json:"scope,omitempty"`
	CreatorLabel string             `json:"creator_label"`
}

type createSessionResponse struct {
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	EndsAt    time.Time `json:"ends_at"`
}

func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	durationSec, err := ParseDuration(req.Duration)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration, use mm:ss or seconds")
		return
	}
	if !s.knownQuizType(req.QuizType) {
		writeError(w, http.StatusBadRequest, "unknown quiz type")
		return
	}

	session, err := s.app.CreateSession(r.Context(), CreateSessionRequest{
		QuizType:     req.QuizType,
		DurationSec:  durationSec,
		Destination:  req.Destination,
		Scope:        req.Scope,
		CreatorLabel: req.CreatorLabel,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingDestination), errors.Is(err, ErrInvalidDuration), errors.Is(err, ErrUnknownQuizType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrScopeBusy):
			writeError(w, http.StatusConflict, "a quiz is already active in this scope")
		case errors.Is(err, ErrContentUnavailable), errors.Is(err, ErrNotifierUnavailable):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			log.Error().Err(err).Msg("create session failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID.String(),
		Question:  session.Content.Question,
		Options:   session.Content.Options,
		EndsAt:    session.EndsAt,
	})
}

// sessionSnapshot is the public view of a session. The correct answer never
// leaves the coordinator through this endpoint.
type sessionSnapshot struct {
	ID            string              `json:"id"`
	QuizType      models.QuizType     `json:"quiz_type"`
	State         models.SessionState `json:"state"`
	Question      string              `json:"question"`
	Options       []string            `json:"options"`
	CreatedAt     time.Time           `json:"created_at"`
	EndsAt        time.Time           `json:"ends_at"`
	AnsweredCount int                 `json:"answered_count"`
	CreatorLabel  string              `json:"creator_label"`
}

func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	session, err := s.app.GetSession(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, sessionSnapshot{
		ID:            session.ID.String(),
		QuizType:      session.QuizType,
		State:         session.State,
		Question:      session.Content.Question,
		Options:       session.Content.Options,
		CreatedAt:     session.CreatedAt,
		EndsAt:        session.EndsAt,
		AnsweredCount: session.ParticipantCount(),
		CreatorLabel:  session.CreatorLabel,
	})
}

func (s *Service) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.app.SubmitAnswer(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, ErrMissingParticipant) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("session_id", id.String()).Msg("submit answer failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if result.Outcome == SubmitNotFound {
		status = http.StatusNotFound
	}
	writeJSON(w, status, result)
}

func (s *Service) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := s.app.CloseSession(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		log.Error().Err(err).Str("session_id", id.String()).Msg("close session failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "finalized"})
}

func (s *Service) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]CatalogEntry{"categories": s.catalog})
}

func (s *Service) knownQuizType(t models.QuizType) bool {
	if len(s.catalog) == 0 {
		return t != ""
	}
	for _, entry := range s.catalog {
		if entry.Value == t {
			return true
		}
	}
	return false
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
