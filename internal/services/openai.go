package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/thomasboom/portfolio/internal/models"
)

// OpenAI provides an implementation of the LLM interface for interacting with OpenAI's language models.
type OpenAI struct {
	model  string
	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

type openAIStream struct {
	stream *goopenai.ChatCompletionStream
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewOpenAI creates a new OpenAI instance with the specified API key, model name and parameters. An
// empty baseURL keeps the client's default endpoint.
func NewOpenAI(apiKey, baseURL, model string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return OpenAI{
		model:  model,
		params: params,
		client: goopenai.NewClientWithConfig(cfg),
		logger: logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(messages []models.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = goopenai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return msgs
}

// Chat is a wrapper around the OpenAI streaming chat completion API. Failure statuses reported when the
// stream is opened are returned as *models.RequestError.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) (models.Stream, error) {
	req := o.chatRequest(openAIMessages(messages))

	reqJSON, err := json.Marshal(req)
	if err == nil {
		o.logger.Debug("Request", slog.String("req", string(reqJSON)))
	}

	ctx, cancel := context.WithCancel(ctx)

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		cancel()
		return nil, openAIRequestError(err)
	}

	return &openAIStream{stream: stream, cancel: cancel}, nil
}

func openAIRequestError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &models.RequestError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &models.RequestError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
		}
	}
	return fmt.Errorf("error sending request: %w", err)
}

func (s *openAIStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		var partial strings.Builder
		for {
			response, err := s.stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield("", &models.StreamError{Err: err, Partial: partial.String()})
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			content := response.Choices[0].Delta.Content
			if content == "" {
				continue
			}
			partial.WriteString(content)
			if !yield(content, nil) {
				return
			}
		}
	}
}

func (s *openAIStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.stream.Close()
	})
	return nil
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: o.params.MaxTokens,
		Stream:    true,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}

	return req
}
