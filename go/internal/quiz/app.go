package quiz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/events"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/repository"
)

// SessionRepository defines what the coordinator needs from the session store.
type SessionRepository interface {
	CreateSession(req repository.CreateSessionRequest) (*models.Session, error)
	GetSession(id uuid.UUID) (*models.Session, error)
	RecordAnswer(id uuid.UUID, participantID string, now time.Time) (int, error)
	Transition(id uuid.UUID, from, to models.SessionState) error
	RemoveSession(id uuid.UUID)
}

// QuizEngine defines what the coordinator needs from the scoring/content
// collaborator. Calls have no contractual retry; a failure is surfaced once.
type QuizEngine interface {
	FetchQuiz(ctx context.Context, quizType models.QuizType, durationSec int) (*models.QuizContent, error)
	ReportAnswer(ctx context.Context, sessionID uuid.UUID, report models.AnswerReport) error
	FetchResults(ctx context.Context, sessionID uuid.UUID) (*models.QuizResults, error)
}

// AppConfig tunes the coordinator. Zero values fall back to defaults.
type AppConfig struct {
	// Clock drives the countdown and the finalize schedule. Defaults to
	// the real clock; tests inject a clockwork.FakeClock.
	Clock clockwork.Clock

	// TickInterval is the countdown re-render period. Defaults to 1s.
	TickInterval time.Duration

	// CallTimeout bounds each collaborator call made from a timer
	// goroutine. Defaults to 10s.
	CallTimeout time.Duration
}

// App is the session lifecycle and timeout coordinator. It owns session
// creation, the answer window, and the handoff between the countdown
// broadcaster and the finalizer. Each session gets one countdown task and
// exactly one scheduled finalize; the store's guarded transition makes
// finalization single-winner no matter how many triggers race.
type App struct {
	repo      SessionRepository
	engine    QuizEngine
	notifier  notify.Notifier
	publisher events.Publisher

	clock        clockwork.Clock
	tickInterval time.Duration
	callTimeout  time.Duration

	// One pending finalize timer per open session.
	activeTimers   map[uuid.UUID]*sessionTimer
	activeTimersMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewApp creates a new session coordinator.
func NewApp(repo SessionRepository, engine QuizEngine, notifier notify.Notifier, publisher events.Publisher, cfg AppConfig) *App {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &App{
		repo:         repo,
		engine:       engine,
		notifier:     notifier,
		publisher:    publisher,
		clock:        cfg.Clock,
		tickInterval: cfg.TickInterval,
		callTimeout:  cfg.CallTimeout,
		activeTimers: make(map[uuid.UUID]*sessionTimer),
		done:         make(chan struct{}),
	}
}

// CreateSessionRequest is a validated setup request from the UI layer.
type CreateSessionRequest struct {
	QuizType     models.QuizType    `json:"quiz_type"`
	DurationSec  int                `json:"duration_sec"`
	Destination  models.Destination `json:"destination"`
	Scope        string             `json:"scope"`
	CreatorLabel string             `json:"creator_label"`
}

// CreateSession fetches content, opens the session, announces it, and starts
// the countdown task plus the one-shot finalize timer. EndsAt is computed
// here, once, and never again.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	if !req.Destination.Valid() {
		return nil, ErrMissingDestination
	}
	if req.DurationSec <= 0 {
		return nil, ErrInvalidDuration
	}
	if req.QuizType == "" {
		return nil, ErrUnknownQuizType
	}

	content, err := a.engine.FetchQuiz(ctx, req.QuizType, req.DurationSec)
	if err != nil {
		log.Error().Err(err).Str("quiz_type", string(req.QuizType)).Msg("failed to fetch quiz content")
		return nil, ErrContentUnavailable
	}

	scope := req.Scope
	if scope == "" {
		scope = req.Destination.ID
	}

	now := a.clock.Now()
	session, err := a.repo.CreateSession(repository.CreateSessionRequest{
		ID:           uuid.New(),
		QuizType:     req.QuizType,
		Content:      *content,
		Destination:  req.Destination,
		Scope:        scope,
		CreatorLabel: req.CreatorLabel,
		CreatedAt:    now,
		EndsAt:       now.Add(time.Duration(req.DurationSec) * time.Second),
	})
	if err != nil {
		return nil, err
	}

	handle, err := a.notifier.Send(ctx, session.Destination, questionRenderable(session, req.DurationSec))
	if err != nil {
		// Partial-setup cancellation: no countdown or timer exists yet,
		// so removing the session is the whole rollback.
		a.repo.RemoveSession(session.ID)
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to announce session, rolled back")
		return nil, ErrNotifierUnavailable
	}

	a.publish(session.ID, events.EventTypeSessionCreated, events.SessionCreatedPayload{
		SessionID:    session.ID.String(),
		QuizType:     string(session.QuizType),
		Question:     session.Content.Question,
		Options:      session.Content.Options,
		CreatorLabel: session.CreatorLabel,
		CreatedAt:    session.CreatedAt,
		EndsAt:       session.EndsAt,
		DurationSec:  req.DurationSec,
	})

	// The ticker is created here, not inside the goroutine, so the
	// countdown is registered with the clock before CreateSession returns.
	ticker := a.clock.NewTicker(a.tickInterval)
	a.wg.Add(1)
	go a.runCountdown(session.ID, handle, ticker)

	a.scheduleFinalize(session.ID, session.EndsAt)

	log.Info().
		Str("session_id", session.ID.String()).
		Str("quiz_type", string(session.QuizType)).
		Str("scope", session.Scope).
		Time("ends_at", session.EndsAt).
		Msg("session created")

	return session, nil
}

// SubmitOutcome is the result variant of an answer submission.
type SubmitOutcome string

const (
	SubmitCorrect         SubmitOutcome = "CORRECT"
	SubmitIncorrect       SubmitOutcome = "INCORRECT"
	SubmitAlreadyAnswered SubmitOutcome = "ALREADY_ANSWERED"
	SubmitExpired         SubmitOutcome = "EXPIRED"
	SubmitNotFound        SubmitOutcome = "NOT_FOUND"
)

// SubmitRequest is one participant's answer.
type SubmitRequest struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Answer        string `json:"answer"`
}

// SubmitResult carries the outcome plus the session facts the UI layer needs
// to compose its reply. CorrectAnswer is only revealed for incorrect answers.
type SubmitResult struct {
	Outcome       SubmitOutcome   `json:"outcome"`
	Question      string          `json:"question,omitempty"`
	QuizType      models.QuizType `json:"quiz_type,omitempty"`
	CreatorLabel  string          `json:"creator_label,omitempty"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
}

// SubmitAnswer records one answer for a participant. The ledger append is
// atomic in the store, so concurrent duplicates resolve to exactly one
// Correct/Incorrect and the rest AlreadyAnswered. The deadline value itself
// is the cutoff: a submission after EndsAt is Expired even if the finalizer
// has not run yet.
func (a *App) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, req SubmitRequest) (SubmitResult, error) {
	if req.ParticipantID == "" {
		return SubmitResult{}, ErrMissingParticipant
	}

	session, err := a.repo.GetSession(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SubmitResult{Outcome: SubmitNotFound}, nil
		}
		return SubmitResult{}, err
	}

	total, err := a.repo.RecordAnswer(sessionID, req.ParticipantID, a.clock.Now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyAnswered):
			return SubmitResult{Outcome: SubmitAlreadyAnswered}, nil
		case errors.Is(err, repository.ErrSessionClosed), errors.Is(err, repository.ErrSessionExpired):
			return SubmitResult{Outcome: SubmitExpired}, nil
		case errors.Is(err, repository.ErrNotFound):
			return SubmitResult{Outcome: SubmitNotFound}, nil
		default:
			return SubmitResult{}, err
		}
	}

	correct := strings.EqualFold(strings.TrimSpace(req.Answer), strings.TrimSpace(session.Content.Answer))

	// The engine needs the answer to rank participants later; a failed
	// report costs this participant a placement, not the session.
	if err := a.engine.ReportAnswer(ctx, sessionID, models.AnswerReport{
		ParticipantID: req.ParticipantID,
		DisplayName:   req.DisplayName,
		AvatarURL:     req.AvatarURL,
		Correct:       correct,
	}); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Str("participant_id", req.ParticipantID).
			Msg("failed to report answer to quiz engine")
	}

	a.publish(sessionID, events.EventTypeAnswerRecorded, events.AnswerRecordedPayload{
		SessionID:     sessionID.String(),
		ParticipantID: req.ParticipantID,
		AnsweredAt:    a.clock.Now(),
		TotalAnswered: total,
	})

	result := SubmitResult{
		Outcome:      SubmitIncorrect,
		Question:     session.Content.Question,
		QuizType:     session.QuizType,
		CreatorLabel: session.CreatorLabel,
	}
	if correct {
		result.Outcome = SubmitCorrect
	} else {
		result.CorrectAnswer = session.Content.Answer
	}
	return result, nil
}

// GetSession returns a point-in-time snapshot of a session.
func (a *App) GetSession(id uuid.UUID) (*models.Session, error) {
	return a.repo.GetSession(id)
}

// CloseSession finalizes a session ahead of its deadline. The pending timer
// is cancelled first; if it already fired, the guarded transition inside
// finalize keeps the two triggers from both winning.
func (a *App) CloseSession(ctx context.Context, id uuid.UUID) error {
	if _, err := a.repo.GetSession(id); err != nil {
		return err
	}
	a.cancelTimer(id)
	return a.finalize(ctx, id)
}

// Shutdown stops all countdown tasks and pending finalize timers and waits
// for them to exit. Open sessions are simply abandoned; they only ever lived
// in memory.
func (a *App) Shutdown() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}

// sessionTimer pairs a pending finalize timer with the channel that releases
// its goroutine when the timer is cancelled before firing.
type sessionTimer struct {
	timer  clockwork.Timer
	cancel chan struct{}
}

// scheduleFinalize arms the one-shot finalize timer for a session. The timer
// fires no earlier than endsAt; a late fire is fine because finalize is
// idempotent.
func (a *App) scheduleFinalize(id uuid.UUID, endsAt time.Time) {
	wait := endsAt.Sub(a.clock.Now())
	if wait < 0 {
		wait = 0
	}

	st := &sessionTimer{
		timer:  a.clock.NewTimer(wait),
		cancel: make(chan struct{}),
	}
	a.replaceTimer(id, st)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-st.timer.Chan():
			a.removeTimer(id)
			log.Debug().Str("session_id", id.String()).Msg("deadline timer fired")
			if err := a.finalize(context.Background(), id); err != nil {
				log.Error().Err(err).Str("session_id", id.String()).Msg("finalization failed")
			}
		case <-st.cancel:
			// cancelTimer already stopped the timer and dropped the map
			// entry; nothing left to do but exit.
		case <-a.done:
			stopAndDrainTimer(st.timer)
			a.removeTimer(id)
			log.Debug().Str("session_id", id.String()).Msg("deadline timer cancelled on shutdown")
		}
	}()
}

// replaceTimer atomically replaces the pending timer for a session,
// cancelling any existing one so two timers never race for the same deadline.
func (a *App) replaceTimer(id uuid.UUID, newTimer *sessionTimer) {
	a.activeTimersMu.Lock()
	defer a.activeTimersMu.Unlock()

	if existing, ok := a.activeTimers[id]; ok {
		stopAndDrainTimer(existing.timer)
		close(existing.cancel)
		log.Debug().Str("session_id", id.String()).Msg("replaced existing deadline timer")
	}
	a.activeTimers[id] = newTimer
}

// cancelTimer stops and removes the pending timer for a session, if any,
// releasing the goroutine waiting on it.
func (a *App) cancelTimer(id uuid.UUID) {
	a.activeTimersMu.Lock()
	defer a.activeTimersMu.Unlock()

	if st, ok := a.activeTimers[id]; ok {
		stopAndDrainTimer(st.timer)
		close(st.cancel)
		delete(a.activeTimers, id)
		log.Debug().Str("session_id", id.String()).Msg("cancelled deadline timer")
	}
}

func (a *App) removeTimer(id uuid.UUID) {
	a.activeTimersMu.Lock()
	defer a.activeTimersMu.Unlock()
	delete(a.activeTimers, id)
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// publish emits a session event, best-effort.
func (a *App) publish(sessionID uuid.UUID, eventType events.EventType, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), a.callTimeout)
	defer cancel()
	if err := a.publisher.Publish(ctx, sessionID, eventType, payload); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Str("event_type", string(eventType)).
			Msg("failed to publish event")
	}
}
