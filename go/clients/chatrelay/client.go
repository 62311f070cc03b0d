// Package chatrelay is the HTTP client for the chat relay service, the
// transport that actually renders messages on the chat platform. It
// implements the coordinator's notifier capability: send a renderable to a
// channel or a user's direct messages, and edit it later.
package chatrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
)

// Client talks to the chat relay REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a chat relay client. The token is sent as a bearer
// credential on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

var _ notify.Notifier = (*Client)(nil)

type messageResponse struct {
	MessageID string `json:"message_id"`
}

// Send delivers a renderable to a destination and returns a handle for edits.
func (c *Client) Send(ctx context.Context, dest models.Destination, msg notify.Renderable) (notify.MessageHandle, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return notify.MessageHandle{}, fmt.Errorf("marshal renderable: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, destinationPath(dest)+"/messages", payload)
	if err != nil {
		return notify.MessageHandle{}, fmt.Errorf("send message: %w", err)
	}

	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return notify.MessageHandle{}, fmt.Errorf("decode send response: %w", err)
	}

	return notify.MessageHandle{Destination: dest, MessageID: resp.MessageID}, nil
}

// Edit replaces the content of a previously sent message.
func (c *Client) Edit(ctx context.Context, handle notify.MessageHandle, msg notify.Renderable) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal renderable: %w", err)
	}

	path := fmt.Sprintf("%s/messages/%s", destinationPath(handle.Destination), handle.MessageID)
	if _, err := c.doRequest(ctx, http.MethodPatch, path, payload); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func destinationPath(dest models.Destination) string {
	if dest.Kind == models.DestinationDirect {
		return "/v1/users/" + dest.ID
	}
	return "/v1/channels/" + dest.ID
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// A vanished destination or message is terminal for the caller.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, notify.ErrGone
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chat relay returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}
	return responseBody, nil
}
