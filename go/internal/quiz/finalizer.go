package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/events"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/repository"
)

// finalize retires a session: guarded transition out of Open, results from
// the engine, reward fan-out, summary post, then unconditional removal. Any
// number of triggers may call it; only the first wins the Open->Finalizing
// transition and everyone else returns immediately.
func (a *App) finalize(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.Transition(id, models.SessionStateOpen, models.SessionStateFinalizing); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			log.Debug().Str("session_id", id.String()).Msg("finalization already in progress, skipping")
			return nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("transition to finalizing: %w", err)
	}

	session, err := a.repo.GetSession(id)
	if err != nil {
		return fmt.Errorf("load finalizing session: %w", err)
	}

	log.Info().
		Str("session_id", id.String()).
		Int("participants", session.ParticipantCount()).
		Msg("finalizing session")

	var results models.QuizResults
	rctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	fetched, resultsErr := a.engine.FetchResults(rctx, id)
	cancel()
	if resultsErr != nil {
		// Scoring failure must not leave the session stuck; finish the
		// retirement with empty results.
		log.Error().Err(resultsErr).Str("session_id", id.String()).Msg("failed to fetch results, proceeding without")
	} else if fetched != nil {
		results = *fetched
	}

	a.sendRewards(ctx, id, results)
	a.sendSummary(ctx, session, results, resultsErr != nil)

	if err := a.repo.Transition(id, models.SessionStateFinalizing, models.SessionStateClosed); err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to close session state")
	}
	a.repo.RemoveSession(id)

	a.publish(id, events.EventTypeSessionFinalized, events.SessionFinalizedPayload{
		SessionID:    id.String(),
		Participants: session.ParticipantCount(),
		RankedCount:  len(results.Ranked),
		FinalizedAt:  a.clock.Now(),
	})

	log.Info().Str("session_id", id.String()).Msg("session retired")
	return nil
}

// sendRewards delivers reward notifications to ranked participants and
// consolations to the rest. Each dispatch is isolated; one failed recipient
// never blocks the others.
func (a *App) sendRewards(ctx context.Context, sessionID uuid.UUID, results models.QuizResults) {
	for i, winner := range results.Ranked {
		placement := winner.Placement
		if placement <= 0 {
			placement = i + 1
		}
		name := winner.DisplayName
		if name == "" {
			name = winner.ParticipantID
		}

		msg := notify.Renderable{
			Text: fmt.Sprintf("🎉 Congrats %s! You came %s in the quiz!", name, ordinal(placement)),
		}
		if winner.RewardImageURL != "" {
			msg.Images = []notify.Image{{Title: "Your Reward", URL: winner.RewardImageURL}}
		}
		a.sendDirect(ctx, sessionID, winner.ParticipantID, msg)
	}

	for _, other := range results.Others {
		name := other.DisplayName
		if name == "" {
			name = other.ParticipantID
		}
		text := fmt.Sprintf("😢 Hey %s, you didn't earn a reward this time. Better luck next quiz!", name)
		if other.Placement > 0 {
			text = fmt.Sprintf("😢 Hey %s, you finished %s and didn't earn a reward this time. Better luck next quiz!", name, ordinal(other.Placement))
		}
		a.sendDirect(ctx, sessionID, other.ParticipantID, notify.Renderable{Text: text})
	}
}

func (a *App) sendDirect(ctx context.Context, sessionID uuid.UUID, participantID string, msg notify.Renderable) {
	sctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	dest := models.Destination{Kind: models.DestinationDirect, ID: participantID}
	if _, err := a.notifier.Send(sctx, dest, msg); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Str("participant_id", participantID).
			Msg("failed to deliver participant notification")
	}
}

// sendSummary posts the closing report to the session's destination.
func (a *App) sendSummary(ctx context.Context, session *models.Session, results models.QuizResults, degraded bool) {
	summary := summaryRenderable(session, results, degraded)

	sctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()
	if _, err := a.notifier.Send(sctx, session.Destination, summary); err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to post session summary")
	}
}

// summaryRenderable composes the closing report: placements when anyone
// ranked, otherwise a distinct no-participants or no-correct-answers message.
// When the scoring collaborator was unavailable the summary says so instead
// of implying nobody won.
func summaryRenderable(session *models.Session, results models.QuizResults, degraded bool) notify.Renderable {
	total := session.ParticipantCount()

	var b strings.Builder
	b.WriteString("🏁 The quiz is over!\n")

	if len(results.Ranked) == 0 {
		switch {
		case degraded:
			fmt.Fprintf(&b, "Results are unavailable right now. %d %s answered.", total, pluralize(total, "participant", "participants"))
		case total == 0:
			b.WriteString("No one participated in the quiz.")
		default:
			fmt.Fprintf(&b, "No one answered correctly, but %d %s tried!", total, pluralize(total, "participant", "participants"))
		}
		return notify.Renderable{Text: b.String()}
	}

	topCount := len(results.Ranked)
	if topCount > 3 {
		topCount = 3
	}
	for i := 0; i < topCount; i++ {
		winner := results.Ranked[i]
		placement := winner.Placement
		if placement <= 0 {
			placement = i + 1
		}
		name := winner.DisplayName
		if name == "" {
			name = winner.ParticipantID
		}
		fmt.Fprintf(&b, "\n%s place: %s", ordinal(placement), name)
	}
	fmt.Fprintf(&b, "\n\n🎉 A total of %d %s participated in the quiz.", total, pluralize(total, "user", "users"))

	var images []notify.Image
	for _, winner := range results.Ranked {
		if winner.RewardImageURL == "" {
			continue
		}
		name := winner.DisplayName
		if name == "" {
			name = winner.ParticipantID
		}
		images = append(images, notify.Image{
			Title: fmt.Sprintf("%s's reward", name),
			URL:   winner.RewardImageURL,
		})
	}

	return notify.Renderable{Text: b.String(), Images: images}
}

// ordinal returns the English ordinal form of n (1st, 2nd, 3rd, 4th, ...).
func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
