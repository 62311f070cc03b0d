package quiz

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/events"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/repository"
)

type fakeEngine struct {
	mu         sync.Mutex
	content    models.QuizContent
	fetchErr   error
	reports    []models.AnswerReport
	reportErr  error
	results    models.QuizResults
	resultsErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		content: models.QuizContent{
			Question: "In which year did the Berlin Wall fall?",
			Options:  []string{"1987", "1989", "1991"},
			Answer:   "1989",
		},
	}
}

func (e *fakeEngine) FetchQuiz(ctx context.Context, quizType models.QuizType, durationSec int) (*models.QuizContent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fetchErr != nil {
		return nil, e.fetchErr
	}
	content := e.content
	return &content, nil
}

func (e *fakeEngine) ReportAnswer(ctx context.Context, sessionID uuid.UUID, report models.AnswerReport) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = append(e.reports, report)
	return e.reportErr
}

func (e *fakeEngine) FetchResults(ctx context.Context, sessionID uuid.UUID) (*models.QuizResults, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resultsErr != nil {
		return nil, e.resultsErr
	}
	results := e.results
	return &results, nil
}

func (e *fakeEngine) reportCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.reports)
}

type sentMessage struct {
	dest models.Destination
	msg  notify.Renderable
}

type fakeNotifier struct {
	mu      sync.Mutex
	sends   []sentMessage
	edits   []notify.Renderable
	sendErr error
	editErr error
	nextID  int
}

func (n *fakeNotifier) Send(ctx context.Context, dest models.Destination, msg notify.Renderable) (notify.MessageHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return notify.MessageHandle{}, n.sendErr
	}
	n.nextID++
	n.sends = append(n.sends, sentMessage{dest: dest, msg: msg})
	return notify.MessageHandle{Destination: dest, MessageID: fmt.Sprintf("msg-%d", n.nextID)}, nil
}

func (n *fakeNotifier) Edit(ctx context.Context, handle notify.MessageHandle, msg notify.Renderable) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.editErr != nil {
		return n.editErr
	}
	n.edits = append(n.edits, msg)
	return nil
}

func (n *fakeNotifier) sendsTo(kind models.DestinationKind) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, s := range n.sends {
		if s.dest.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (n *fakeNotifier) lastEdit() (notify.Renderable, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.edits) == 0 {
		return notify.Renderable{}, false
	}
	return n.edits[len(n.edits)-1], true
}

type publishedEvent struct {
	sessionID uuid.UUID
	eventType events.EventType
	payload   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, sessionID uuid.UUID, eventType events.EventType, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{sessionID: sessionID, eventType: eventType, payload: payload})
	return nil
}

func (p *fakePublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.eventType)
	}
	return out
}

func (p *fakePublisher) answerTotals() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int
	for _, e := range p.events {
		if payload, ok := e.payload.(events.AnswerRecordedPayload); ok {
			out = append(out, payload.TotalAnswered)
		}
	}
	return out
}

type testHarness struct {
	app       *App
	repo      *repository.Repository
	clock     *clockwork.FakeClock
	engine    *fakeEngine
	notifier  *fakeNotifier
	publisher *fakePublisher
}

func newTestHarness(t *testing.T, tick time.Duration) *testHarness {
	t.Helper()
	h := &testHarness{
		repo:      repository.NewRepository(true),
		clock:     clockwork.NewFakeClock(),
		engine:    newFakeEngine(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	h.app = NewApp(h.repo, h.engine, h.notifier, h.publisher, AppConfig{
		Clock:        h.clock,
		TickInterval: tick,
	})
	t.Cleanup(h.app.Shutdown)
	return h
}

func (h *testHarness) createSession(t *testing.T, durationSec int) *models.Session {
	t.Helper()
	session, err := h.app.CreateSession(context.Background(), CreateSessionRequest{
		QuizType:     models.QuizTypeHistorical,
		DurationSec:  durationSec,
		Destination:  models.Destination{Kind: models.DestinationChannel, ID: "general"},
		CreatorLabel: "alex",
	})
	require.NoError(t, err)
	return session
}

// untilRetired waits for the finalizer to remove the session.
func (h *testHarness) untilRetired(t *testing.T, id uuid.UUID) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := h.app.GetSession(id)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond, "session was never retired")
}

func TestCreateSessionAnnouncesWithDeadline(t *testing.T) {
	h := newTestHarness(t, time.Second)
	start := h.clock.Now()

	session := h.createSession(t, 10)

	assert.Equal(t, start.Add(10*time.Second), session.EndsAt)
	assert.Equal(t, models.SessionStateOpen, session.State)
	assert.Equal(t, "general", session.Scope)

	sends := h.notifier.sendsTo(models.DestinationChannel)
	require.Len(t, sends, 1)
	assert.True(t, sends[0].msg.Interactive)
	assert.Contains(t, sends[0].msg.Text, "Berlin Wall")
	assert.Contains(t, sends[0].msg.Text, "Time remaining: 10s")

	assert.Contains(t, h.publisher.types(), events.EventTypeSessionCreated)
}

func TestCreateSessionValidation(t *testing.T) {
	h := newTestHarness(t, time.Second)
	ctx := context.Background()
	dest := models.Destination{Kind: models.DestinationChannel, ID: "general"}

	_, err := h.app.CreateSession(ctx, CreateSessionRequest{QuizType: models.QuizTypeHistorical, DurationSec: 60})
	assert.ErrorIs(t, err, ErrMissingDestination)

	_, err = h.app.CreateSession(ctx, CreateSessionRequest{QuizType: models.QuizTypeHistorical, Destination: dest})
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = h.app.CreateSession(ctx, CreateSessionRequest{DurationSec: 60, Destination: dest})
	assert.ErrorIs(t, err, ErrUnknownQuizType)
}

func TestCreateSessionContentUnavailable(t *testing.T) {
	h := newTestHarness(t, time.Second)
	h.engine.fetchErr = fmt.Errorf("engine down")

	_, err := h.app.CreateSession(context.Background(), CreateSessionRequest{
		QuizType:    models.QuizTypeHistorical,
		DurationSec: 60,
		Destination: models.Destination{Kind: models.DestinationChannel, ID: "general"},
	})
	assert.ErrorIs(t, err, ErrContentUnavailable)
	assert.Empty(t, h.notifier.sendsTo(models.DestinationChannel))
}

func TestCreateSessionAnnounceFailureRollsBack(t *testing.T) {
	h := newTestHarness(t, time.Second)
	h.notifier.sendErr = fmt.Errorf("relay down")

	req := CreateSessionRequest{
		QuizType:    models.QuizTypeHistorical,
		DurationSec: 60,
		Destination: models.Destination{Kind: models.DestinationChannel, ID: "general"},
	}
	_, err := h.app.CreateSession(context.Background(), req)
	require.ErrorIs(t, err, ErrNotifierUnavailable)

	// The failed session must not leave its scope occupied.
	h.notifier.mu.Lock()
	h.notifier.sendErr = nil
	h.notifier.mu.Unlock()
	_, err = h.app.CreateSession(context.Background(), req)
	assert.NoError(t, err)
}

func TestSubmitAnswerOutcomes(t *testing.T) {
	h := newTestHarness(t, time.Second)
	session := h.createSession(t, 60)
	ctx := context.Background()

	result, err := h.app.SubmitAnswer(ctx, session.ID, SubmitRequest{
		ParticipantID: "alice", DisplayName: "Alice", Answer: " 1989 ",
	})
	require.NoError(t, err)
	assert.Equal(t, SubmitCorrect, result.Outcome)
	assert.Empty(t, result.CorrectAnswer)
	assert.Equal(t, session.Content.Question, result.Question)

	result, err = h.app.SubmitAnswer(ctx, session.ID, SubmitRequest{
		ParticipantID: "bob", DisplayName: "Bob", Answer: "1991",
	})
	require.NoError(t, err)
	assert.Equal(t, SubmitIncorrect, result.Outcome)
	assert.Equal(t, "1989", result.CorrectAnswer)

	result, err = h.app.SubmitAnswer(ctx, session.ID, SubmitRequest{
		ParticipantID: "alice", Answer: "1987",
	})
	require.NoError(t, err)
	assert.Equal(t, SubmitAlreadyAnswered, result.Outcome)

	result, err = h.app.SubmitAnswer(ctx, uuid.New(), SubmitRequest{
		ParticipantID: "alice", Answer: "1989",
	})
	require.NoError(t, err)
	assert.Equal(t, SubmitNotFound, result.Outcome)

	_, err = h.app.SubmitAnswer(ctx, session.ID, SubmitRequest{Answer: "1989"})
	assert.ErrorIs(t, err, ErrMissingParticipant)

	// Only the two accepted answers reached the engine.
	require.Equal(t, 2, h.engine.reportCount())
	assert.True(t, h.engine.reports[0].Correct)
	assert.False(t, h.engine.reports[1].Correct)
}

func TestSubmitAnswerEngineReportFailureIsNonFatal(t *testing.T) {
	h := newTestHarness(t, time.Second)
	h.engine.reportErr = fmt.Errorf("engine down")
	session := h.createSession(t, 60)

	result, err := h.app.SubmitAnswer(context.Background(), session.ID, SubmitRequest{
		ParticipantID: "alice", Answer: "1989",
	})
	require.NoError(t, err)
	assert.Equal(t, SubmitCorrect, result.Outcome)
}

func TestCountdownRecomputesRemainingFromDeadline(t *testing.T) {
	h := newTestHarness(t, time.Second)
	h.createSession(t, 5)

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		edit, ok := h.notifier.lastEdit()
		return ok && edit.Interactive && strings.Contains(edit.Text, "Time remaining: 4s")
	}, 2*time.Second, 10*time.Millisecond)

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		edit, ok := h.notifier.lastEdit()
		return ok && strings.Contains(edit.Text, "Time remaining: 3s")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCountdownRendersTimesUp(t *testing.T) {
	// Sub-second ticks put the final render strictly before the deadline
	// timer fires.
	h := newTestHarness(t, 500*time.Millisecond)
	session := h.createSession(t, 1)

	h.clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		edit, ok := h.notifier.lastEdit()
		return ok && !edit.Interactive && strings.Contains(edit.Text, "Time's up!")
	}, 2*time.Second, 10*time.Millisecond)

	// The countdown never closes the session itself.
	got, err := h.app.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStateOpen, got.State)

	h.clock.Advance(500 * time.Millisecond)
	h.untilRetired(t, session.ID)
}

func TestDeadlineFinalizesWithoutParticipants(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	session := h.createSession(t, 2)

	h.clock.Advance(2 * time.Second)
	h.untilRetired(t, session.ID)

	sends := h.notifier.sendsTo(models.DestinationChannel)
	require.Len(t, sends, 2)
	assert.Contains(t, sends[1].msg.Text, "The quiz is over!")
	assert.Contains(t, sends[1].msg.Text, "No one participated in the quiz.")
	assert.Empty(t, h.notifier.sendsTo(models.DestinationDirect))

	assert.Contains(t, h.publisher.types(), events.EventTypeSessionFinalized)
}

func TestDeadlineFinalizesWithRankedResults(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	h.engine.results = models.QuizResults{
		Ranked: []models.RankedParticipant{
			{ParticipantID: "alice", DisplayName: "Alice", Placement: 1, RewardImageURL: "https://cdn.example.com/gold.png"},
			{ParticipantID: "bob", DisplayName: "Bob", Placement: 2},
		},
		Others: []models.RankedParticipant{
			{ParticipantID: "carol", DisplayName: "Carol"},
		},
	}
	session := h.createSession(t, 2)

	ctx := context.Background()
	for _, p := range []struct{ id, answer string }{
		{"alice", "1989"}, {"bob", "1989"}, {"carol", "1991"},
	} {
		_, err := h.app.SubmitAnswer(ctx, session.ID, SubmitRequest{ParticipantID: p.id, Answer: p.answer})
		require.NoError(t, err)
	}

	h.clock.Advance(2 * time.Second)
	h.untilRetired(t, session.ID)

	sends := h.notifier.sendsTo(models.DestinationChannel)
	require.Len(t, sends, 2)
	summary := sends[1].msg
	assert.Contains(t, summary.Text, "1st place: Alice")
	assert.Contains(t, summary.Text, "2nd place: Bob")
	assert.Contains(t, summary.Text, "A total of 3 users participated")
	require.Len(t, summary.Images, 1)
	assert.Equal(t, "https://cdn.example.com/gold.png", summary.Images[0].URL)

	directs := h.notifier.sendsTo(models.DestinationDirect)
	require.Len(t, directs, 3)
	byRecipient := make(map[string]string, len(directs))
	for _, d := range directs {
		byRecipient[d.dest.ID] = d.msg.Text
	}
	assert.Contains(t, byRecipient["alice"], "You came 1st")
	assert.Contains(t, byRecipient["bob"], "You came 2nd")
	assert.Contains(t, byRecipient["carol"], "didn't earn a reward")
}

func TestDeadlineFinalizesDespiteResultsFailure(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	h.engine.resultsErr = fmt.Errorf("engine down")
	session := h.createSession(t, 2)

	_, err := h.app.SubmitAnswer(context.Background(), session.ID, SubmitRequest{ParticipantID: "alice", Answer: "1989"})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Second)
	h.untilRetired(t, session.ID)

	sends := h.notifier.sendsTo(models.DestinationChannel)
	require.Len(t, sends, 2)
	assert.Contains(t, sends[1].msg.Text, "Results are unavailable right now. 1 participant answered.")
	assert.Empty(t, h.notifier.sendsTo(models.DestinationDirect))
}

func TestCloseSessionFinalizesEarly(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	session := h.createSession(t, 3600)

	require.NoError(t, h.app.CloseSession(context.Background(), session.ID))
	h.untilRetired(t, session.ID)

	sends := h.notifier.sendsTo(models.DestinationChannel)
	require.Len(t, sends, 2)

	// A second close finds nothing left to do.
	err := h.app.CloseSession(context.Background(), session.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCloseSessionReleasesTimerGoroutines(t *testing.T) {
	h := newTestHarness(t, time.Second)
	ctx := context.Background()

	before := runtime.NumGoroutine()

	const sessions = 25
	for i := 0; i < sessions; i++ {
		session, err := h.app.CreateSession(ctx, CreateSessionRequest{
			QuizType:    models.QuizTypeHistorical,
			DurationSec: 3600,
			Destination: models.Destination{Kind: models.DestinationChannel, ID: fmt.Sprintf("room-%d", i)},
		})
		require.NoError(t, err)
		require.NoError(t, h.app.CloseSession(ctx, session.ID))
	}

	// Wake the countdown loops so they observe the retired sessions and exit;
	// the timer goroutines must already have been released by the close.
	h.clock.Advance(time.Second)

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 10*time.Millisecond, "goroutines were not released after close")
}

func TestSubmitAnswerPublishesLedgerTotals(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	session := h.createSession(t, 60)

	const participants = 20
	var wg sync.WaitGroup
	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.app.SubmitAnswer(context.Background(), session.ID, SubmitRequest{
				ParticipantID: fmt.Sprintf("p%d", i), Answer: "1989",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Each accepted answer publishes the ledger size it produced, so the
	// totals are exactly 1..N with no duplicates.
	totals := h.publisher.answerTotals()
	require.Len(t, totals, participants)
	seen := make(map[int]bool)
	for _, n := range totals {
		assert.False(t, seen[n], "total %d published twice", n)
		seen[n] = true
	}
	for i := 1; i <= participants; i++ {
		assert.True(t, seen[i], "missing total %d", i)
	}
}

func TestCountdownRendersTimesUpWhenFinalizerWins(t *testing.T) {
	h := newTestHarness(t, time.Second)
	session := h.createSession(t, 1)

	// The finalizing transition lands before the deadline tick is processed.
	require.NoError(t, h.repo.Transition(session.ID, models.SessionStateOpen, models.SessionStateFinalizing))

	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		edit, ok := h.notifier.lastEdit()
		return ok && !edit.Interactive && strings.Contains(edit.Text, "Time's up!")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentFinalizeProducesOneSummary(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	session := h.createSession(t, 3600)

	const racers = 10
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.app.finalize(context.Background(), session.ID)
		}()
	}
	wg.Wait()

	_, err := h.app.GetSession(session.ID)
	assert.Error(t, err)

	// Announcement plus exactly one summary, no matter how many triggers raced.
	assert.Len(t, h.notifier.sendsTo(models.DestinationChannel), 2)
}

func TestSubmitAfterDeadlineIsRejected(t *testing.T) {
	h := newTestHarness(t, time.Hour)
	session := h.createSession(t, 2)

	h.clock.Advance(3 * time.Second)

	// The finalizer may or may not have removed the session yet; either way
	// the answer is not accepted.
	result, err := h.app.SubmitAnswer(context.Background(), session.ID, SubmitRequest{
		ParticipantID: "alice", Answer: "1989",
	})
	require.NoError(t, err)
	assert.Contains(t, []SubmitOutcome{SubmitExpired, SubmitNotFound}, result.Outcome)
	h.untilRetired(t, session.ID)
}

func TestShutdownAbandonsOpenSessions(t *testing.T) {
	h := newTestHarness(t, time.Second)
	h.createSession(t, 3600)

	done := make(chan struct{})
	go func() {
		h.app.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	// No summary was posted; only the announcement went out.
	assert.Len(t, h.notifier.sendsTo(models.DestinationChannel), 1)
}
