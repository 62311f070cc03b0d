package quiz

import (
	"fmt"
	"strings"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
)

// questionRenderable is the initial session announcement: the question, the
// numbered options, and the full time budget.
func questionRenderable(session *models.Session, durationSec int) notify.Renderable {
	r := notify.Renderable{
		Text:        questionText(session.Content) + fmt.Sprintf("\n\n⏳ Time remaining: %ds", durationSec),
		Interactive: true,
	}
	if session.Content.ImageURL != "" {
		r.Images = []notify.Image{{URL: session.Content.ImageURL}}
	}
	return r
}

// countdownRenderable is the periodic re-render of an open session.
func countdownRenderable(session *models.Session, remainingSec int) notify.Renderable {
	return notify.Renderable{
		Text:        questionText(session.Content) + fmt.Sprintf("\n\n⏳ Time remaining: %ds", remainingSec),
		Interactive: true,
	}
}

// timesUpRenderable is the terminal render with answering disabled.
func timesUpRenderable(session *models.Session) notify.Renderable {
	return notify.Renderable{
		Text:        questionText(session.Content) + "\n\n⏳ Time's up!",
		Interactive: false,
	}
}

func questionText(content models.QuizContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", content.Question)
	for i, option := range content.Options {
		fmt.Fprintf(&b, "\n**%d.** %s", i+1, option)
	}
	return b.String()
}
