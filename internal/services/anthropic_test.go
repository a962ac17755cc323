package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasboom/portfolio/internal/models"
	"github.com/thomasboom/portfolio/internal/services"
)

func anthropicEvent(typ, data string) string {
	return "event: " + typ + "\ndata: " + data + "\n\n"
}

func TestAnthropicChat(t *testing.T) {
	var got struct {
		System    string           `json:"system"`
		Messages  []models.Message `json:"messages"`
		MaxTokens int              `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			anthropicEvent("message_start", `{"type":"message_start"}`) +
				anthropicEvent("content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi "}}`) +
				anthropicEvent("ping", `{"type":"ping"}`) +
				anthropicEvent("content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"there"}}`) +
				anthropicEvent("message_stop", `{"type":"message_stop"}`),
		))
	}))
	defer srv.Close()

	a := services.NewAnthropic("test-key", "claude", services.LLMParameters{}, discardLogger()).WithBaseURL(srv.URL)
	stream, err := a.Chat(context.Background(), transcript())
	require.NoError(t, err)

	fragments, err := collect(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi ", "there"}, fragments)

	assert.Equal(t, "persona", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, models.RoleUser, got.Messages[0].Role)
	assert.Positive(t, got.MaxTokens)
}

func TestAnthropicChatErrors(t *testing.T) {
	t.Run("request failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		}))
		defer srv.Close()

		a := services.NewAnthropic("bad", "claude", services.LLMParameters{}, discardLogger()).WithBaseURL(srv.URL)
		_, err := a.Chat(context.Background(), transcript())

		var reqErr *models.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
		assert.Equal(t, "invalid x-api-key", reqErr.Message)
	})

	t.Run("error event mid stream", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(
				anthropicEvent("content_block_delta", `{"type":"content_block_delta","delta":{"text":"partial"}}`) +
					anthropicEvent("error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
			))
		}))
		defer srv.Close()

		a := services.NewAnthropic("key", "claude", services.LLMParameters{}, discardLogger()).WithBaseURL(srv.URL)
		stream, err := a.Chat(context.Background(), transcript())
		require.NoError(t, err)

		fragments, err := collect(t, stream)
		assert.Equal(t, []string{"partial"}, fragments)

		var streamErr *models.StreamError
		require.ErrorAs(t, err, &streamErr)
		assert.Equal(t, "partial", streamErr.Partial)
		assert.Contains(t, streamErr.Error(), "Overloaded")
	})
}
