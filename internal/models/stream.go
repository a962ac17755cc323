package models

import "iter"

// Stream is a finite, lazily produced sequence of assistant text fragments for one exchange.
//
// Fragments yields each fragment in order. A non-nil error is yielded at most once and ends the
// sequence; after streaming has begun it is a *StreamError. Breaking out of the loop early, or calling
// Close, releases the underlying connection. Close is safe to call more than once.
type Stream interface {
	Fragments() iter.Seq2[string, error]
	Close() error
}
