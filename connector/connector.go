// Package connector defines the capability interfaces outbound
// connectors implement and guarded wrappers that route their critical
// operations through circuit breakers while demoting side-channel calls
// to best effort.
package connector

import (
	"context"
	"time"
)

// Completer is an AI completion provider.
type Completer interface {
	// Name identifies the provider; it doubles as the default breaker
	// service name.
	Name() string

	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// Messenger is a chat platform connector. Send is the critical delivery
// path; SendTyping and SetWebhook are side channels a caller must never
// depend on.
type Messenger interface {
	Name() string

	Send(ctx context.Context, msg Message) (*Receipt, error)
	SendTyping(ctx context.Context, channel string) error
	SetWebhook(ctx context.Context, url string) error
}

// StatsReporter is implemented by connectors that expose their own
// counters; guarded wrappers fold them into their Stats output.
type StatsReporter interface {
	ConnectorStats() map[string]any
}

// CompletionRequest is a provider-neutral completion prompt.
type CompletionRequest struct {
	Model     string
	Prompt    string
	System    string
	MaxTokens int
	Metadata  map[string]string
}

// Completion is the resolved model output.
type Completion struct {
	Model        string
	Text         string
	InputTokens  int
	OutputTokens int
}

// Message is an outbound chat message.
type Message struct {
	Channel string
	Text    string
	ReplyTo string
}

// Receipt identifies a delivered message.
type Receipt struct {
	ID        string
	Channel   string
	Timestamp time.Time
}
