package models

import "time"

// Message is a single conversational turn. Role is fixed at creation; Content only changes while the
// message is the assistant turn currently being streamed.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"-"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleSystem is the persona message that opens every transcript.
	RoleSystem Role = "system"
	// RoleUser represents a message submitted by the visitor.
	RoleUser Role = "user"
	// RoleAssistant represents a reply produced by the remote model, or a synthetic error reply.
	RoleAssistant Role = "assistant"
)

// Streaming states used by the templates to decide how an assistant bubble is rendered.
const (
	StreamingStateLoading   = "loading"
	StreamingStateStreaming = "streaming"
	StreamingStateEnded     = "ended"
)
