// Package worker provides async message processing.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/railwatch/railwatch/internal/bus"
	"github.com/railwatch/railwatch/internal/domain"
)

// Worker persists prediction logs published on the EventBus and records
// rejected selections for auditing.
type Worker struct {
	events domain.EventBus
	repo   domain.Repository

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	persisted atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Config holds worker configuration.
type Config struct {
	// Namespaces to listen on. Empty means domain.DefaultNamespace.
	Namespaces []string
}

// NewWorker creates a new async worker.
func NewWorker(events domain.EventBus, repo domain.Repository) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		events: events,
		repo:   repo,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the prediction and selection topics of every
// configured namespace.
func (w *Worker) Start(cfg Config) error {
	namespaces := cfg.Namespaces
	if len(namespaces) == 0 {
		namespaces = []string{domain.DefaultNamespace}
	}

	for _, ns := range namespaces {
		if err := w.subscribe(ns, domain.TopicPredictionCompleted, w.persistPrediction); err != nil {
			return err
		}
		if err := w.subscribe(ns, domain.TopicSelectionRejected, w.recordRejection); err != nil {
			return err
		}
	}

	slog.Info("workers started", "namespaces", namespaces)
	return nil
}

func (w *Worker) subscribe(namespace, topic string, handler domain.MessageHandler) error {
	sub, err := w.events.Subscribe(w.ctx, namespace, topic, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()
	return nil
}

// persistPrediction stores one prediction log.
func (w *Worker) persistPrediction(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var log domain.PredictionLog
	if err := json.Unmarshal(msg.Payload, &log); err != nil {
		w.failed.Add(1)
		slog.Error("failed to parse prediction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if log.TraceID == "" {
		log.TraceID = msg.Metadata[bus.MetadataTraceID]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Unix(0, msg.Timestamp)
	}

	if err := w.repo.SavePredictionLog(ctx, &log); err != nil {
		w.failed.Add(1)
		slog.Error("failed to save prediction log",
			"prediction_id", log.ID,
			"error", err,
		)
		return err
	}

	w.persisted.Add(1)
	slog.Debug("prediction persisted",
		"prediction_id", log.ID,
		"label", log.Response.Label,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) recordRejection(ctx context.Context, msg *domain.Message) error {
	var rej domain.SelectionRejectedEvent
	if err := json.Unmarshal(msg.Payload, &rej); err != nil {
		return err
	}
	w.rejected.Add(1)
	slog.Info("selection rejected",
		"namespace", msg.Namespace,
		"dimension", rej.Dimension,
		"reason", rej.Reason,
	)
	return nil
}

// Stop unsubscribes all handlers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Persisted         int64    `json:"persisted"`
	Failed            int64    `json:"failed"`
	Rejected          int64    `json:"rejected"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Persisted:         w.persisted.Load(),
		Failed:            w.failed.Load(),
		Rejected:          w.rejected.Load(),
	}
}
