package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thomasboom/portfolio/internal/models"
)

// OpenRouter provides an implementation of the LLM interface for OpenRouter, or any other endpoint
// speaking the OpenAI chat completion protocol.
type OpenRouter struct {
	apiKey  string
	model   string
	baseURL string
	stream  bool

	referer string
	title   string

	params LLMParameters

	client *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float32            `json:"temperature,omitempty"`
	TopP        *float32            `json:"top_p,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	Stream      bool                `json:"stream"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	Choices []openRouterChoice `json:"choices"`
}

type openRouterChoice struct {
	Message openRouterMessage `json:"message"`
}

const (
	// OpenRouterAPIEndpoint is the default base URL.
	OpenRouterAPIEndpoint = "https://openrouter.ai/api/v1"
)

// NewOpenRouter creates a new OpenRouter instance with the specified API key, model name and generation
// parameters. Responses are streamed unless disabled with WithStreaming.
func NewOpenRouter(apiKey, model string, params LLMParameters, logger *slog.Logger) OpenRouter {
	return OpenRouter{
		apiKey:  apiKey,
		model:   model,
		baseURL: OpenRouterAPIEndpoint,
		stream:  true,
		params:  params,
		client:  &http.Client{},
		logger:  logger.With(slog.String("module", "openrouter")),
	}
}

// WithBaseURL returns a copy of o that sends requests to baseURL instead of OpenRouter.
func (o OpenRouter) WithBaseURL(baseURL string) OpenRouter {
	o.baseURL = strings.TrimSuffix(baseURL, "/")
	return o
}

// WithStreaming returns a copy of o that requests streamed (true) or complete (false) responses.
func (o OpenRouter) WithStreaming(stream bool) OpenRouter {
	o.stream = stream
	return o
}

// WithAttribution returns a copy of o that identifies the site to OpenRouter via the HTTP-Referer and
// X-Title headers.
func (o OpenRouter) WithAttribution(referer, title string) OpenRouter {
	o.referer = referer
	o.title = title
	return o
}

// Chat sends the whole transcript to the chat completion endpoint. It returns a *models.RequestError
// when the endpoint answers with a non-2xx status, and otherwise a stream of the reply's fragments. The
// context can be used to cancel the request and the stream.
func (o OpenRouter) Chat(ctx context.Context, messages []models.Message) (models.Stream, error) {
	resp, err := o.doRequest(ctx, messages)
	if err != nil {
		return nil, err
	}

	if o.stream {
		return NewEventStream(resp.Body, o.logger), nil
	}
	defer resp.Body.Close()

	var res openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if len(res.Choices) == 0 {
		return nil, errors.New("no choices found")
	}

	return TextStream(res.Choices[0].Message.Content), nil
}

func (o OpenRouter) doRequest(ctx context.Context, messages []models.Message) (*http.Response, error) {
	msgs := make([]openRouterMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = openRouterMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	reqBody := openRouterChatRequest{
		Model:       o.model,
		Messages:    msgs,
		MaxTokens:   o.params.MaxTokens,
		Temperature: o.params.Temperature,
		TopP:        o.params.TopP,
		Stop:        o.params.Stop,
		Stream:      o.stream,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.referer != "" {
		req.Header.Set("HTTP-Referer", o.referer)
	}
	if o.title != "" {
		req.Header.Set("X-Title", o.title)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		o.logger.Error("API error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)))
		return nil, &models.RequestError{
			StatusCode: resp.StatusCode,
			Message:    apiErrorMessage(body),
		}
	}

	return resp, nil
}
