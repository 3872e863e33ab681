// Package bus provides event bus implementations for Railwatch.
package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/railwatch/railwatch/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus is closed")

	// ErrNamespaceRequired is returned when no namespace is given.
	ErrNamespaceRequired = errors.New("namespace is required")
)

// MetadataTraceID carries the publisher's trace id.
const MetadataTraceID = "trace_id"

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// newMessage builds the envelope for a published payload. The trace id of
// the active span, if any, travels in the metadata.
func newMessage(ctx context.Context, namespace, topic string, payload []byte) *domain.Message {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		Namespace: namespace,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.Metadata[MetadataTraceID] = sc.TraceID().String()
	}
	return msg
}
