package notify

import (
	"context"
	"errors"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
)

// ErrGone is the terminal notifier failure: the destination or message no
// longer exists. Callers stop retrying or editing when they see it; every
// other notifier error is treated as transient.
var ErrGone = errors.New("notification target gone")

// Image is an attachment rendered alongside a message.
type Image struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
}

// Renderable is the platform-agnostic content of a notification. Interactive
// tells the chat layer whether answer affordances should still be enabled.
type Renderable struct {
	Text        string  `json:"text"`
	Images      []Image `json:"images,omitempty"`
	Interactive bool    `json:"interactive"`
}

// MessageHandle identifies a previously sent message so it can be edited.
type MessageHandle struct {
	Destination models.Destination `json:"destination"`
	MessageID   string             `json:"message_id"`
}

// Notifier is the abstract capability the coordinator needs from the chat
// platform: deliver a renderable to a destination and edit it later.
type Notifier interface {
	Send(ctx context.Context, dest models.Destination, msg Renderable) (MessageHandle, error)
	Edit(ctx context.Context, handle MessageHandle, msg Renderable) error
}
