package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/thomasboom/portfolio/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic provides an interface to the Anthropic API for large language model interactions. It implements
// the LLM interface and handles streaming chat completions using Claude models.
type Anthropic struct {
	apiKey  string
	model   string
	baseURL string
	params  LLMParameters

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
	Stop        []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicStream struct {
	body io.ReadCloser

	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

const (
	// AnthropicAPIEndpoint is the default base URL.
	AnthropicAPIEndpoint = "https://api.anthropic.com/v1"

	anthropicDefaultMaxTokens = 1024
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name and parameters.
// The messages API requires max_tokens, so a default is used when params leaves it unset.
func NewAnthropic(apiKey, model string, params LLMParameters, logger *slog.Logger) Anthropic {
	if params.MaxTokens == 0 {
		params.MaxTokens = anthropicDefaultMaxTokens
	}
	return Anthropic{
		apiKey:  apiKey,
		model:   model,
		baseURL: AnthropicAPIEndpoint,
		params:  params,
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "anthropic")),
	}
}

// WithBaseURL returns a copy of a that sends requests to baseURL.
func (a Anthropic) WithBaseURL(baseURL string) Anthropic {
	a.baseURL = strings.TrimSuffix(baseURL, "/")
	return a
}

// extractSystemMessage splits the persona off the transcript, since the messages API takes it as a
// separate field.
func extractSystemMessage(messages []models.Message) (string, []models.Message) {
	if len(messages) == 0 {
		return "", messages
	}

	if messages[0].Role == models.RoleSystem {
		return messages[0].Content, messages[1:]
	}

	return "", messages
}

// Chat streams responses from the Anthropic API for a given sequence of messages. It processes the system
// message separately. Failure statuses are returned as *models.RequestError.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) (models.Stream, error) {
	systemMessage, ms := extractSystemMessage(messages)

	msgs := make([]anthropicMessage, len(ms))
	for i, msg := range ms {
		msgs[i] = anthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	reqBody := anthropicChatRequest{
		Model:       a.model,
		Messages:    msgs,
		Stream:      true,
		System:      systemMessage,
		MaxTokens:   a.params.MaxTokens,
		Temperature: a.params.Temperature,
		TopP:        a.params.TopP,
		Stop:        a.params.Stop,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, &models.RequestError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
		}
	}

	return &anthropicStream{body: resp.Body, logger: a.logger}, nil
}

func (s *anthropicStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		var partial strings.Builder
		for ev, err := range sse.Read(s.body, nil) {
			if err != nil {
				yield("", &models.StreamError{Err: err, Partial: partial.String()})
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", &models.StreamError{Err: fmt.Errorf("%w: %w", models.ErrMalformedRecord, err), Partial: partial.String()})
					return
				}
				yield("", &models.StreamError{
					Err:     fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message),
					Partial: partial.String(),
				})
				return
			case "message_stop":
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					s.logger.Warn("Skipping stream record",
						slog.String("record", ev.Data),
						slog.String(errLoggerKey, err.Error()))
					continue
				}
				if res.Delta.Text == "" {
					continue
				}
				partial.WriteString(res.Delta.Text)
				if !yield(res.Delta.Text, nil) {
					return
				}
			default:
				continue
			}
		}
	}
}

func (s *anthropicStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
