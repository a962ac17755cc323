package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/thomasboom/portfolio/internal/models"
)

const (
	recordPrefix = "data: "
	doneSentinel = "[DONE]"

	readChunkSize = 4096
)

// completionChunk is one streamed chat completion record. Only the incremental text is read.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Assembler turns the data-line framed body of a streaming chat completion into text fragments. It
// tolerates arbitrary chunk boundaries: any incomplete trailing line is kept until the next chunk
// arrives. Splitting happens only on the newline byte, so multi-byte UTF-8 sequences split across chunks
// are reassembled untouched.
//
// An Assembler holds the state of a single response and is not safe for concurrent use.
type Assembler struct {
	buf         []byte
	accumulated strings.Builder
	done        bool
	flushed     bool

	logger *slog.Logger
}

// NewAssembler creates an Assembler that reports skipped records to logger.
func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Feed appends chunk to the buffer and returns the non-empty fragments of every complete line in it.
// Once the [DONE] sentinel has been seen Feed returns nothing.
func (a *Assembler) Feed(chunk []byte) []string {
	if a.done {
		return nil
	}
	a.buf = append(a.buf, chunk...)

	var fragments []string
	for !a.done {
		idx := bytes.IndexByte(a.buf, '\n')
		if idx < 0 {
			break
		}
		line := a.buf[:idx]
		a.buf = a.buf[idx+1:]
		if f := a.line(line); f != "" {
			fragments = append(fragments, f)
		}
	}
	if a.done {
		a.buf = nil
	}
	return fragments
}

// Flush processes whatever is left in the buffer as a final line. Only the first call has any effect.
func (a *Assembler) Flush() []string {
	if a.flushed || a.done {
		a.flushed = true
		return nil
	}
	a.flushed = true

	line := a.buf
	a.buf = nil
	if f := a.line(line); f != "" {
		return []string{f}
	}
	return nil
}

// Done reports whether the end-of-stream sentinel has been received.
func (a *Assembler) Done() bool {
	return a.done
}

// Accumulated returns the concatenation of every fragment emitted so far.
func (a *Assembler) Accumulated() string {
	return a.accumulated.String()
}

func (a *Assembler) line(raw []byte) string {
	line := string(bytes.TrimSuffix(raw, []byte("\r")))
	payload, ok := strings.CutPrefix(line, recordPrefix)
	if !ok {
		return ""
	}
	if strings.TrimSpace(payload) == doneSentinel {
		a.done = true
		return ""
	}

	fragment, err := parseRecord(payload)
	if err != nil {
		a.logger.Warn("Skipping stream record",
			slog.String("record", payload),
			slog.String(errLoggerKey, err.Error()))
		return ""
	}
	a.accumulated.WriteString(fragment)
	return fragment
}

func parseRecord(payload string) (string, error) {
	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrMalformedRecord, err)
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}

// EventStream is a models.Stream reading a streaming chat completion from an HTTP response body.
type EventStream struct {
	body io.ReadCloser
	asm  *Assembler

	closeOnce sync.Once
	closeErr  error
}

// NewEventStream wraps body. The body is closed when iteration ends, when [DONE] is received, or when
// Close is called, whichever comes first.
func NewEventStream(body io.ReadCloser, logger *slog.Logger) *EventStream {
	return &EventStream{
		body: body,
		asm:  NewAssembler(logger),
	}
}

// Fragments reads the body chunk by chunk and yields each text fragment. A read failure is yielded as a
// *models.StreamError carrying the text assembled so far.
func (s *EventStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()

		chunk := make([]byte, readChunkSize)
		for {
			n, err := s.body.Read(chunk)
			if n > 0 {
				for _, f := range s.asm.Feed(chunk[:n]) {
					if !yield(f, nil) {
						return
					}
				}
				if s.asm.Done() {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				for _, f := range s.asm.Flush() {
					if !yield(f, nil) {
						return
					}
				}
				return
			}
			if err != nil {
				yield("", &models.StreamError{Err: err, Partial: s.asm.Accumulated()})
				return
			}
		}
	}
}

// Accumulated returns the text received so far.
func (s *EventStream) Accumulated() string {
	return s.asm.Accumulated()
}

// Close releases the connection. It is safe to call more than once.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// TextStream is a models.Stream that yields a complete, non-streamed reply as a single fragment.
type TextStream string

// Fragments yields the text once, unless it is empty.
func (t TextStream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if t != "" {
			yield(string(t), nil)
		}
	}
}

// Close is a no-op.
func (TextStream) Close() error {
	return nil
}
