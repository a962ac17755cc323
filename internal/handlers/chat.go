package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thomasboom/portfolio/internal/chat"
	"github.com/thomasboom/portfolio/internal/models"
	"github.com/tmaxmax/go-sse"
)

type message struct {
	Index     int
	Role      string
	Content   template.HTML
	Timestamp time.Time

	StreamingState string
}

type statePayload struct {
	State  string `json:"state"`
	Busy   bool   `json:"busy"`
	Typing bool   `json:"typing"`
}

// SSE event types for real-time updates.
var (
	messagesSSEType = sse.Type("messages")
	stateSSEType    = sse.Type("state")
	resetSSEType    = sse.Type("reset")
)

// HandleChat accepts a visitor message through the "message" form field and starts the exchange in the
// background. Fragments of the reply are pushed through the session's SSE topic as they arrive.
//
// It answers 400 for a blank message and 409 while an earlier answer is still being generated. Script
// clients, which send X-Requested-With, get 202; a plain form post is redirected back to the home page.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session := m.session(w, r)

	err := m.orchestrator.Start(session, r.FormValue("message"))
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	case errors.Is(err, chat.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		m.logger.Error("Failed to start chat exchange",
			slog.String("session", session.ID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// The exchange outlives the request; it is cancelled through the session instead.
	go m.orchestrator.Run(context.Background(), session)

	m.respond(w, r, http.StatusAccepted)
}

// HandleNewChat discards the visitor's conversation, cancelling an answer that is still streaming.
func (m Main) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.session(w, r).Reset()
	m.respond(w, r, http.StatusNoContent)
}

func (m Main) respond(w http.ResponseWriter, r *http.Request, status int) {
	if r.Header.Get("X-Requested-With") != "" {
		w.WriteHeader(status)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// watch publishes every change of the session to its SSE topic.
func (m Main) watch(s *chat.Session) {
	topic := sessionTopic(s.ID)

	s.Transcript.OnChange(func(c models.Change) {
		if c.Kind == models.ChangeReset {
			msg := sse.Message{Type: resetSSEType}
			msg.AppendData("reset")
			m.publish(topic, &msg)
			return
		}
		if c.Message.Role == models.RoleSystem {
			return
		}

		state := models.StreamingStateEnded
		if c.Message.Role == models.RoleAssistant && s.Busy() {
			state = models.StreamingStateStreaming
		}
		html, err := m.messageHTML(c.Index, c.Message, state)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("session", s.ID),
				slog.Int("index", c.Index),
				slog.String(errLoggerKey, err.Error()))
			return
		}
		msg := sse.Message{Type: messagesSSEType}
		msg.AppendData(html)
		m.publish(topic, &msg)
	})

	s.OnStateChange(func(c chat.StateChange) {
		data, err := json.Marshal(statePayload{
			State:  c.State.String(),
			Busy:   c.State != chat.StateIdle,
			Typing: c.Typing,
		})
		if err != nil {
			m.logger.Error("Failed to marshal state", slog.String(errLoggerKey, err.Error()))
			return
		}
		msg := sse.Message{Type: stateSSEType}
		msg.AppendData(string(data))
		m.publish(topic, &msg)
	})
}

func (m Main) publish(topic string, msg *sse.Message) {
	if err := m.sseSrv.Publish(msg, topic); err != nil {
		m.logger.Error("Failed to publish event",
			slog.String("topic", topic),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) messageView(index int, msg models.Message, streamingState string) (message, error) {
	content, err := models.RenderMarkdown(msg.Content)
	if err != nil {
		return message{}, fmt.Errorf("failed to render message %d: %w", index, err)
	}
	return message{
		Index:          index,
		Role:           string(msg.Role),
		Content:        content,
		Timestamp:      msg.Timestamp,
		StreamingState: streamingState,
	}, nil
}

func (m Main) messageHTML(index int, msg models.Message, streamingState string) (string, error) {
	view, err := m.messageView(index, msg, streamingState)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "chat_message", view); err != nil {
		return "", fmt.Errorf("failed to execute chat_message template: %w", err)
	}
	return sb.String(), nil
}
