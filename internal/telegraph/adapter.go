// Package telegraph posts contract lifecycle events to chat platforms
// (Slack, Discord).
package telegraph

import (
	"context"
)

// Adapter is the interface that platform-specific implementations must satisfy.
type Adapter interface {
	// Connect authenticates against the chat platform.
	Connect(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close releases the connection.
	Close() error
}

// OutboundMessage represents a message to be sent to the chat platform.
type OutboundMessage struct {
	ChannelID string           // target channel; empty uses the adapter default
	Text      string           // message text, also the fallback for attachments
	Events    []FormattedEvent // structured event attachments
}

// FormattedEvent represents an event formatted for display in chat.
type FormattedEvent struct {
	Title    string  // event headline (e.g. "Fase firmada: Inicio")
	Body     string  // detail text
	Severity string  // "info", "warning", "error", "success"
	Color    string  // sidebar color hint (e.g. "#36a64f" for success)
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed in an event attachment.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}
