package models

import (
	"strings"
	"sync"
	"time"
)

// Transcript is the ordered history of one conversation. The first message is always the single system
// message carrying the persona; every request to the remote model sends the whole transcript.
//
// A Transcript is safe for concurrent use, so renderers may read snapshots while an exchange is
// streaming into it.
type Transcript struct {
	mu        sync.RWMutex
	persona   string
	messages  []Message
	observers []func(Change)

	now func() time.Time
}

// ChangeKind describes how a transcript was mutated.
type ChangeKind int

const (
	// ChangeAppended means a new message was added at Index.
	ChangeAppended ChangeKind = iota
	// ChangeUpdated means the message at Index received another fragment.
	ChangeUpdated
	// ChangeReset means the transcript was replaced by the persona message alone.
	ChangeReset
)

// Change is delivered to observers after every mutation.
type Change struct {
	Kind    ChangeKind
	Index   int
	Message Message
}

// NewTranscript creates a transcript holding only the system message for persona.
func NewTranscript(persona string) *Transcript {
	t := &Transcript{
		persona: persona,
		now:     time.Now,
	}
	t.messages = []Message{t.systemMessage()}
	return t
}

func (t *Transcript) systemMessage() Message {
	return Message{
		Role:      RoleSystem,
		Content:   t.persona,
		Timestamp: t.now(),
	}
}

// OnChange registers fn to be called after every mutation. Observers run outside the transcript lock, in
// the goroutine that performed the mutation.
func (t *Transcript) OnChange(fn func(Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Reset replaces the transcript with exactly one system message. Calling it repeatedly is equivalent to
// calling it once.
func (t *Transcript) Reset() {
	t.mu.Lock()
	sys := t.systemMessage()
	t.messages = []Message{sys}
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeReset, Index: 0, Message: sys})
}

// AppendUser appends a user message holding the trimmed text and returns a snapshot of the transcript.
// It returns ErrInvalidInput, leaving the transcript untouched, when text is blank.
func (t *Transcript) AppendUser(text string) ([]Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidInput
	}

	msg := Message{
		Role:      RoleUser,
		Content:   text,
		Timestamp: t.now(),
	}

	t.mu.Lock()
	t.messages = append(t.messages, msg)
	idx := len(t.messages) - 1
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(Change{Kind: ChangeAppended, Index: idx, Message: msg})
	return snapshot, nil
}

// AppendOrUpdateAssistant folds a streamed fragment into the transcript. With isFirst it appends a new
// assistant message whose content is fragment; otherwise fragment is concatenated onto the last
// message, which is the in-progress assistant turn. If the last message is not an assistant message a
// new one is started instead.
func (t *Transcript) AppendOrUpdateAssistant(fragment string, isFirst bool) {
	t.mu.Lock()
	last := len(t.messages) - 1
	kind := ChangeUpdated
	if isFirst || t.messages[last].Role != RoleAssistant {
		t.messages = append(t.messages, Message{
			Role:      RoleAssistant,
			Content:   fragment,
			Timestamp: t.now(),
		})
		last++
		kind = ChangeAppended
	} else {
		t.messages[last].Content += fragment
	}
	msg := t.messages[last]
	t.mu.Unlock()

	t.notify(Change{Kind: kind, Index: last, Message: msg})
}

// Snapshot returns a copy of the messages in conversational order.
func (t *Transcript) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Transcript) snapshotLocked() []Message {
	msgs := make([]Message, len(t.messages))
	copy(msgs, t.messages)
	return msgs
}

// Len returns the number of messages, the system message included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message.
func (t *Transcript) Last() Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.messages[len(t.messages)-1]
}

// Persona returns the system message text the transcript is reset to.
func (t *Transcript) Persona() string {
	return t.persona
}

func (t *Transcript) notify(c Change) {
	t.mu.RLock()
	observers := make([]func(Change), len(t.observers))
	copy(observers, t.observers)
	t.mu.RUnlock()

	for _, fn := range observers {
		fn(c)
	}
}
