package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thomasboom/portfolio/internal/models"
)

// LLM represents a large language model that answers a transcript with a stream of text fragments.
//
// Chat returns once the response headers are known. A non-2xx answer is reported as *models.RequestError so
// it can be told apart from a failure of the stream itself, which surfaces through the stream as
// *models.StreamError.
type LLM interface {
	Chat(ctx context.Context, messages []models.Message) (models.Stream, error)
}

// Orchestrator drives the Idle -> Sending -> Streaming -> Idle cycle of a session.
type Orchestrator struct {
	llm LLM

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewOrchestrator creates an orchestrator that answers through llm.
func NewOrchestrator(llm LLM, logger *slog.Logger) Orchestrator {
	return Orchestrator{
		llm:    llm,
		logger: logger.With(slog.String("module", "chat")),
	}
}

// Start appends the user turn to the session transcript and moves it to StateSending. It returns
// models.ErrInvalidInput for a blank text and ErrBusy while an earlier exchange is in flight; in both cases
// nothing is changed. Run must be called afterwards to perform the exchange.
func (o Orchestrator) Start(session *Session, text string) error {
	if strings.TrimSpace(text) == "" {
		return models.ErrInvalidInput
	}

	gen, err := session.begin()
	if err != nil {
		return err
	}

	var appendErr error
	session.apply(gen, func() {
		_, appendErr = session.Transcript.AppendUser(text)
	})
	if appendErr != nil {
		session.transition(gen, StateIdle, false)
		return appendErr
	}
	return nil
}

// Run performs the exchange prepared by Start and blocks until it ends. Fragments are folded into the
// transcript as they arrive; the first one also clears the typing indicator. A request or stream failure
// leaves the partial reply, if any, in place and appends one explanatory assistant message. When ctx is
// cancelled, or the session is reset or aborted, Run returns without touching the session again.
func (o Orchestrator) Run(ctx context.Context, session *Session) {
	ctx, gen, ok := session.attach(ctx)
	if !ok {
		return
	}
	defer session.transition(gen, StateIdle, false)

	stream, err := o.llm.Chat(ctx, session.Transcript.Snapshot())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(session, gen, err)
		return
	}
	defer stream.Close()

	session.transition(gen, StateStreaming, true)

	first := true
	for fragment, err := range stream.Fragments() {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			o.fail(session, gen, err)
			return
		}
		if fragment == "" {
			continue
		}

		isFirst := first
		if !session.apply(gen, func() {
			session.Transcript.AppendOrUpdateAssistant(fragment, isFirst)
		}) {
			return
		}
		if first {
			session.transition(gen, StateStreaming, false)
			first = false
		}
	}
}

// Submit is Start followed by Run.
func (o Orchestrator) Submit(ctx context.Context, session *Session, text string) error {
	if err := o.Start(session, text); err != nil {
		return err
	}
	o.Run(ctx, session)
	return nil
}

func (o Orchestrator) fail(session *Session, gen uint64, err error) {
	o.logger.Error("Chat exchange failed",
		slog.String("session", session.ID),
		slog.String(errLoggerKey, err.Error()))

	session.transition(gen, StateFailed, false)
	session.apply(gen, func() {
		session.Transcript.AppendOrUpdateAssistant(ErrorReply(err), true)
	})
}

// ErrorReply is the assistant message shown in place of, or after, an answer that could not be completed.
func ErrorReply(err error) string {
	var reqErr *models.RequestError
	var streamErr *models.StreamError
	switch {
	case errors.As(err, &reqErr):
		return fmt.Sprintf("Sorry, there was an error processing your request (%s). Please try again.", reqErr.Error())
	case errors.As(err, &streamErr):
		return "Sorry, the response was interrupted. Please try again."
	default:
		return "Sorry, there was an error processing your request. Please try again."
	}
}
