package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// Topics are scoped by namespace.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, namespace string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, namespace string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Namespace string            `json:"namespace"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `yaml:"type" json:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `yaml:"channelBufferSize" json:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `yaml:"natsUrl" json:"natsUrl"`
	NATSToken         string `yaml:"natsToken" json:"-"`
	NATSMaxReconnects int    `yaml:"natsMaxReconnects" json:"natsMaxReconnects"`
	NATSReconnectWait int    `yaml:"natsReconnectWait" json:"natsReconnectWait"` // seconds
}

// DefaultNamespace scopes events that are not tied to a dataset.
const DefaultNamespace = "railwatch"

// Standard topic names.
const (
	TopicPredictionCompleted = "railwatch.prediction.completed"
	TopicSelectionRejected   = "railwatch.selection.rejected"
	TopicReportComputed      = "railwatch.report.computed"
)

// SelectionRejectedEvent is published when a selection fails validation.
type SelectionRejectedEvent struct {
	SelectionKey string `json:"selectionKey"`
	Dimension    string `json:"dimension"`
	Reason       string `json:"reason"`
}

// ReportComputedEvent is published after a report is computed from the
// dataset rather than served from cache.
type ReportComputedEvent struct {
	SelectionKey string `json:"selectionKey"`
	Fingerprint  string `json:"fingerprint"`
	RowCount     int    `json:"rowCount"`
	DurationMs   int64  `json:"durationMs"`
}
