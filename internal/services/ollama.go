package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ollama/ollama/api"
	"github.com/thomasboom/portfolio/internal/models"
)

// Ollama provides an implementation of the LLM interface for interacting with Ollama's language models.
// It manages connections to an Ollama server instance and handles streaming chat completions.
type Ollama struct {
	host   string
	model  string
	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

type ollamaEvent struct {
	text string
	err  error
}

// ollamaStream adapts the callback based Ollama client to a pull based models.Stream. The request runs
// in its own goroutine and hands each response over an unbuffered channel.
type ollamaStream struct {
	events chan ollamaEvent
	first  *ollamaEvent
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model string, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return Ollama{
		host:   host,
		model:  model,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{}
	if o.params.MaxTokens > 0 {
		opts["num_predict"] = o.params.MaxTokens
	}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.Stop != nil {
		opts["stop"] = o.params.Stop
	}
	return opts
}

// Chat streams responses from the Ollama model. It blocks until the server has either accepted the
// request, returning the stream, or rejected it, returning a *models.RequestError.
func (o Ollama) Chat(ctx context.Context, messages []models.Message) (models.Stream, error) {
	msgs := make([]api.Message, len(messages))
	for i, msg := range messages {
		msgs[i] = api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	t := true
	req := api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &t,
		Options:  o.options(),
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &ollamaStream{
		events: make(chan ollamaEvent),
		cancel: cancel,
	}

	go func() {
		defer close(s.events)

		err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			select {
			case s.events <- ollamaEvent{text: res.Message.Content}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			select {
			case s.events <- ollamaEvent{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	first, ok := <-s.events
	if !ok {
		return s, nil
	}
	if first.err != nil {
		cancel()
		var statusErr api.StatusError
		if errors.As(first.err, &statusErr) {
			return nil, &models.RequestError{
				StatusCode: statusErr.StatusCode,
				Message:    statusErr.ErrorMessage,
			}
		}
		return nil, fmt.Errorf("error sending request: %w", first.err)
	}
	s.first = &first

	return s, nil
}

func (s *ollamaStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		var partial strings.Builder
		emit := func(ev ollamaEvent) bool {
			if ev.err != nil {
				yield("", &models.StreamError{Err: ev.err, Partial: partial.String()})
				return false
			}
			if ev.text == "" {
				return true
			}
			partial.WriteString(ev.text)
			return yield(ev.text, nil)
		}

		if s.first != nil {
			ev := *s.first
			s.first = nil
			if !emit(ev) {
				return
			}
		}
		for ev := range s.events {
			if !emit(ev) {
				return
			}
		}
	}
}

func (s *ollamaStream) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}
