package chatrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainbuzz/brainbuzz/go/internal/models"
	"github.com/brainbuzz/brainbuzz/go/internal/notify"
)

func TestSendToChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/channels/general/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var msg notify.Renderable
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "hello", msg.Text)
		assert.True(t, msg.Interactive)

		json.NewEncoder(w).Encode(map[string]string{"message_id": "m-42"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	handle, err := client.Send(context.Background(), models.Destination{
		Kind: models.DestinationChannel, ID: "general",
	}, notify.Renderable{Text: "hello", Interactive: true})
	require.NoError(t, err)
	assert.Equal(t, "m-42", handle.MessageID)
	assert.Equal(t, "general", handle.Destination.ID)
}

func TestSendToUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/alice/messages", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"message_id": "m-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Send(context.Background(), models.Destination{
		Kind: models.DestinationDirect, ID: "alice",
	}, notify.Renderable{Text: "congrats"})
	require.NoError(t, err)
}

func TestEdit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/channels/general/messages/m-42", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	err := client.Edit(context.Background(), notify.MessageHandle{
		Destination: models.Destination{Kind: models.DestinationChannel, ID: "general"},
		MessageID:   "m-42",
	}, notify.Renderable{Text: "updated"})
	require.NoError(t, err)
}

func TestGoneTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")

	_, err := client.Send(context.Background(), models.Destination{
		Kind: models.DestinationChannel, ID: "deleted",
	}, notify.Renderable{Text: "hello"})
	assert.ErrorIs(t, err, notify.ErrGone)

	err = client.Edit(context.Background(), notify.MessageHandle{
		Destination: models.Destination{Kind: models.DestinationChannel, ID: "deleted"},
		MessageID:   "m-1",
	}, notify.Renderable{Text: "updated"})
	assert.ErrorIs(t, err, notify.ErrGone)
}

func TestServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	_, err := client.Send(context.Background(), models.Destination{
		Kind: models.DestinationChannel, ID: "general",
	}, notify.Renderable{Text: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, notify.ErrGone)
	assert.ErrorContains(t, err, "429")
}
