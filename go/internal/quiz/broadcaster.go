package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/events"
)

// runCountdown republishes the remaining time for an open session until the
// deadline passes or the session leaves Open. Remaining time is recomputed
// from EndsAt on every tick, never decremented, so missed ticks cannot drift
// the display away from the real deadline. The loop is presentation only; it
// never closes the session.
func (a *App) runCountdown(id uuid.UUID, handle notify.MessageHandle, ticker clockwork.Ticker) {
	defer a.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.Chan():
		}

		session, err := a.repo.GetSession(id)
		if err != nil {
			log.Debug().Str("session_id", id.String()).Msg("countdown stopping, session gone")
			return
		}

		now := a.clock.Now()
		remaining := session.EndsAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		remainingSec := int(remaining / time.Second)

		if session.State != models.SessionStateOpen {
			// The finalizer beat this tick to the deadline. The terminal
			// render still belongs to the countdown, so the announcement
			// does not stay interactive.
			if remainingSec <= 0 {
				a.renderTimesUp(id, handle, session)
			}
			log.Debug().
				Str("session_id", id.String()).
				Str("state", string(session.State)).
				Msg("countdown stopping, session left open state")
			return
		}

		a.publish(id, events.EventTypeCountdownTick, events.CountdownTickPayload{
			SessionID:        id.String(),
			TimeRemainingSec: remainingSec,
			TickedAt:         now,
		})

		if remainingSec <= 0 {
			// One final render with answering disabled; closing the
			// session is the finalizer's job.
			a.renderTimesUp(id, handle, session)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.callTimeout)

		err = a.notifier.Edit(ctx, handle, countdownRenderable(session, remainingSec))
		cancel()
		if err != nil {
			if errors.Is(err, notify.ErrGone) {
				log.Warn().Str("session_id", id.String()).Msg("countdown target gone, stopping")
				return
			}
			// Transient notifier failure; the next tick recomputes from
			// EndsAt anyway.
			log.Warn().Err(err).Str("session_id", id.String()).Msg("countdown render failed")
		}
	}
}

// renderTimesUp flips the announcement to its terminal, non-interactive form.
func (a *App) renderTimesUp(id uuid.UUID, handle notify.MessageHandle, session *models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), a.callTimeout)
	defer cancel()
	if err := a.notifier.Edit(ctx, handle, timesUpRenderable(session)); err != nil {
		log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to render time's up")
	}
}
