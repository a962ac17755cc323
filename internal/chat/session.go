package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thomasboom/portfolio/internal/models"
)

// ErrBusy is returned by Start while the session still has an exchange in flight.
var ErrBusy = errors.New("an answer is still being generated")

// State is the orchestrator state of one session.
type State int

const (
	// StateIdle waits for user input.
	StateIdle State = iota
	// StateSending has appended the user turn and is waiting for the response headers.
	StateSending
	// StateStreaming is folding response fragments into the transcript.
	StateStreaming
	// StateFailed is appending the synthetic error reply. It is left for StateIdle immediately.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is delivered to state observers.
type StateChange struct {
	State State
	// Typing is true from submission until the first fragment, or the failure, arrives.
	Typing bool
}

// Session is the explicit per-visitor conversation state: the transcript plus the bookkeeping of the
// exchange currently in flight. Every exchange is tagged with a generation; Reset and Abort bump it, so
// a cancelled exchange can no longer touch the transcript or the state.
type Session struct {
	ID         string
	Transcript *models.Transcript

	// applyMu serializes transcript mutations made on behalf of an exchange with Reset and Abort.
	applyMu sync.Mutex

	mu         sync.Mutex
	state      State
	typing     bool
	generation uint64
	cancel     context.CancelFunc
	lastSeen   time.Time
	observers  []func(StateChange)
}

// NewSession creates an idle session whose transcript holds only the persona message.
func NewSession(id, persona string) *Session {
	return &Session{
		ID:         id,
		Transcript: models.NewTranscript(persona),
		lastSeen:   time.Now(),
	}
}

// OnStateChange registers fn to be called after every state or typing indicator change.
func (s *Session) OnStateChange(fn func(StateChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns the current orchestrator state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Typing reports whether the typing indicator should be shown.
func (s *Session) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Busy reports whether an exchange is in flight, in which case input should stay disabled.
func (s *Session) Busy() bool {
	return s.State() != StateIdle
}

// Reset starts a new chat: any exchange in flight is cancelled and the transcript is cut back to the
// persona message.
func (s *Session) Reset() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	changed := s.stop()
	s.Transcript.Reset()
	if changed {
		s.notify(StateChange{State: StateIdle})
	}
}

// Abort cancels the exchange in flight, if any. Fragments already applied stay in the transcript.
func (s *Session) Abort() {
	s.applyMu.Lock()
	changed := s.stop()
	s.applyMu.Unlock()

	if changed {
		s.notify(StateChange{State: StateIdle})
	}
}

func (s *Session) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	changed := s.state != StateIdle || s.typing
	s.state = StateIdle
	s.typing = false
	return changed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// begin moves an idle session to StateSending and returns the new exchange generation.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return 0, ErrBusy
	}
	s.generation++
	gen := s.generation
	s.state = StateSending
	s.typing = true
	s.mu.Unlock()

	s.notify(StateChange{State: StateSending, Typing: true})
	return gen, nil
}

// attach derives the cancellable context of the exchange started by begin. It reports false when there
// is no such exchange, for instance because the session was reset in between.
func (s *Session) attach(ctx context.Context) (context.Context, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSending || s.cancel != nil {
		return nil, 0, false
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return ctx, s.generation, true
}

// apply runs fn unless the exchange gen has been superseded.
func (s *Session) apply(gen uint64, fn func()) bool {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	current := s.generation == gen
	s.mu.Unlock()
	if !current {
		return false
	}

	fn()
	return true
}

func (s *Session) transition(gen uint64, state State, typing bool) {
	s.mu.Lock()
	if s.generation != gen || (s.state == state && s.typing == typing) {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.typing = typing
	if state == StateIdle && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.notify(StateChange{State: state, Typing: typing})
}

func (s *Session) notify(c StateChange) {
	s.mu.Lock()
	observers := make([]func(StateChange), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(c)
	}
}
