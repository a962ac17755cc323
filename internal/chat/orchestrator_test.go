package chat_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thomasboom/portfolio/internal/chat"
	"github.com/thomasboom/portfolio/internal/models"
	"github.com/thomasboom/portfolio/internal/services"
)

type mockLLM struct {
	chat func(ctx context.Context, messages []models.Message) (models.Stream, error)

	mu       sync.Mutex
	requests [][]models.Message
}

func (m *mockLLM) Chat(ctx context.Context, messages []models.Message) (models.Stream, error) {
	m.mu.Lock()
	m.requests = append(m.requests, messages)
	m.mu.Unlock()
	return m.chat(ctx, messages)
}

// chunkReader hands out one chunk per Read, then err or io.EOF.
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

// blockingStream yields its fragments, then blocks until ctx is done.
type blockingStream struct {
	ctx       context.Context
	fragments []string
	yielded   chan struct{}
}

func (s *blockingStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range s.fragments {
			if !yield(f, nil) {
				return
			}
		}
		close(s.yielded)
		<-s.ctx.Done()
		yield("", &models.StreamError{Err: s.ctx.Err()})
	}
}

func (s *blockingStream) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventStream(chunks []string, err error) models.Stream {
	return services.NewEventStream(&chunkReader{chunks: chunks, err: err}, discardLogger())
}

func TestSubmitAssemblesStreamedReply(t *testing.T) {
	llm := &mockLLM{chat: func(context.Context, []models.Message) (models.Stream, error) {
		return eventStream([]string{
			`data: {"choices":[{"delta":{"content":"He"}}]}` + "\n",
			`data: {"choices":[{"delta":{"content":"llo"}}]}` + "\n\ndata: [DONE]\n",
		}, nil), nil
	}}
	o := chat.NewOrchestrator(llm, discardLogger())
	session := chat.NewSession("s1", "persona")

	var changes []chat.StateChange
	session.OnStateChange(func(c chat.StateChange) { changes = append(changes, c) })

	var kinds []models.ChangeKind
	session.Transcript.OnChange(func(c models.Change) { kinds = append(kinds, c.Kind) })

	require.NoError(t, o.Submit(context.Background(), session, "  Hi there  "))

	msgs := session.Transcript.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, "Hi there", msgs[1].Content)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "Hello", msgs[2].Content)

	assert.Equal(t, []models.ChangeKind{models.ChangeAppended, models.ChangeAppended, models.ChangeUpdated}, kinds)

	assert.Equal(t, chat.StateIdle, session.State())
	assert.False(t, session.Typing())
	assert.Equal(t, []chat.StateChange{
		{State: chat.StateSending, Typing: true},
		{State: chat.StateStreaming, Typing: true},
		{State: chat.StateStreaming, Typing: false},
		{State: chat.StateIdle, Typing: false},
	}, changes)

	require.Len(t, llm.requests, 1)
	require.Len(t, llm.requests[0], 2)
	assert.Equal(t, "Hi there", llm.requests[0][1].Content)
}

func TestSubmitRequestFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantReply string
	}{
		{
			name:      "api error with message",
			err:       &models.RequestError{StatusCode: 401, Message: "No auth credentials found"},
			wantReply: "Sorry, there was an error processing your request (API request failed: 401 - No auth credentials found). Please try again.",
		},
		{
			name:      "api error without message",
			err:       &models.RequestError{StatusCode: 500},
			wantReply: "Sorry, there was an error processing your request (API request failed: 500 - Unknown error). Please try again.",
		},
		{
			name:      "transport error",
			err:       errors.New("dial tcp: connection refused"),
			wantReply: "Sorry, there was an error processing your request. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &mockLLM{chat: func(context.Context, []models.Message) (models.Stream, error) {
				return nil, tt.err
			}}
			o := chat.NewOrchestrator(llm, discardLogger())
			session := chat.NewSession("s1", "persona")

			var states []chat.State
			session.OnStateChange(func(c chat.StateChange) { states = append(states, c.State) })

			require.NoError(t, o.Submit(context.Background(), session, "hello"))

			msgs := session.Transcript.Snapshot()
			require.Len(t, msgs, 3)
			assert.Equal(t, "hello", msgs[1].Content)
			assert.Equal(t, models.RoleAssistant, msgs[2].Role)
			assert.Equal(t, tt.wantReply, msgs[2].Content)

			assert.Equal(t, []chat.State{chat.StateSending, chat.StateFailed, chat.StateIdle}, states)
			assert.False(t, session.Typing())
		})
	}
}

func TestSubmitStreamFailureKeepsPartial(t *testing.T) {
	llm := &mockLLM{chat: func(context.Context, []models.Message) (models.Stream, error) {
		return eventStream([]string{`data: {"choices":[{"delta":{"content":"Hel"}}]}` + "\n"},
			errors.New("connection reset by peer")), nil
	}}
	o := chat.NewOrchestrator(llm, discardLogger())
	session := chat.NewSession("s1", "persona")

	require.NoError(t, o.Submit(context.Background(), session, "hello"))

	msgs := session.Transcript.Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Hel", msgs[2].Content)
	assert.Equal(t, "Sorry, the response was interrupted. Please try again.", msgs[3].Content)
	assert.Equal(t, chat.StateIdle, session.State())
}

func TestStartRejectsBlankInput(t *testing.T) {
	llm := &mockLLM{chat: func(context.Context, []models.Message) (models.Stream, error) {
		t.Fatal("no request expected")
		return nil, nil
	}}
	o := chat.NewOrchestrator(llm, discardLogger())
	session := chat.NewSession("s1", "persona")

	for _, text := range []string{"", "   ", "\n\t"} {
		err := o.Submit(context.Background(), session, text)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	}
	assert.Equal(t, 1, session.Transcript.Len())
	assert.Equal(t, chat.StateIdle, session.State())
}

func TestStartWhileBusy(t *testing.T) {
	yielded := make(chan struct{})
	llm := &mockLLM{chat: func(ctx context.Context, _ []models.Message) (models.Stream, error) {
		return &blockingStream{ctx: ctx, fragments: []string{"partial"}, yielded: yielded}, nil
	}}
	o := chat.NewOrchestrator(llm, discardLogger())
	session := chat.NewSession("s1", "persona")

	require.NoError(t, o.Start(session, "first"))
	done := make(chan struct{})
	go func() {
		o.Run(context.Background(), session)
		close(done)
	}()
	<-yielded

	assert.ErrorIs(t, o.Start(session, "second"), chat.ErrBusy)
	assert.True(t, session.Busy())
	assert.Equal(t, 3, session.Transcript.Len())

	session.Abort()
	<-done

	msgs := session.Transcript.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, "partial", msgs[2].Content)
	assert.Equal(t, chat.StateIdle, session.State())
}

func TestResetCancelsExchange(t *testing.T) {
	yielded := make(chan struct{})
	llm := &mockLLM{chat: func(ctx context.Context, _ []models.Message) (models.Stream, error) {
		return &blockingStream{ctx: ctx, fragments: []string{"Hel"}, yielded: yielded}, nil
	}}
	o := chat.NewOrchestrator(llm, discardLogger())
	session := chat.NewSession("s1", "persona")

	require.NoError(t, o.Start(session, "hello"))
	done := make(chan struct{})
	go func() {
		o.Run(context.Background(), session)
		close(done)
	}()
	<-yielded

	var lateChanges int
	session.Reset()
	session.Transcript.OnChange(func(models.Change) { lateChanges++ })
	<-done

	assert.Equal(t, 0, lateChanges, "cancelled exchange must not touch the transcript")
	require.Equal(t, 1, session.Transcript.Len())
	assert.Equal(t, "persona", session.Transcript.Snapshot()[0].Content)
	assert.Equal(t, chat.StateIdle, session.State())

	// The session accepts a new submission afterwards.
	require.NoError(t, o.Start(session, "again"))
	assert.Equal(t, chat.StateSending, session.State())
}

func TestRunContextCancelledIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &mockLLM{chat: func(ctx context.Context, _ []models.Message) (models.Stream, error) {
		cancel()
		return nil, ctx.Err()
	}}
	o := chat.NewOrchestrator(llm, discardLogger())
	session := chat.NewSession("s1", "persona")

	require.NoError(t, o.Submit(ctx, session, "hello"))
	assert.Equal(t, 2, session.Transcript.Len())
	assert.Equal(t, chat.StateIdle, session.State())
}

func TestErrorReply(t *testing.T) {
	wrapped := errors.Join(errors.New("ctx"), &models.StreamError{Err: io.ErrUnexpectedEOF})
	assert.Equal(t, "Sorry, the response was interrupted. Please try again.", chat.ErrorReply(wrapped))
	assert.True(t, strings.Contains(chat.ErrorReply(&models.RequestError{StatusCode: 429, Message: "Rate limited"}), "429 - Rate limited"))
}

func TestRegistry(t *testing.T) {
	r := chat.NewRegistry("persona")

	s, created := r.GetOrCreate("")
	require.True(t, created)
	require.NotEmpty(t, s.ID)

	again, created := r.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Get("unknown")
	assert.False(t, ok)

	named, created := r.GetOrCreate("visitor")
	assert.True(t, created)
	assert.Equal(t, "visitor", named.ID)
	assert.Equal(t, 2, r.Len())

	assert.Equal(t, 0, r.Prune(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, r.Prune(time.Millisecond))
	assert.Equal(t, 0, r.Len())
}
