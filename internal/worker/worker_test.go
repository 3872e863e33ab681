package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/railwatch/railwatch/internal/bus"
	"github.com/railwatch/railwatch/internal/domain"
	"github.com/railwatch/railwatch/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		if err := w.Start(Config{Namespaces: []string{"ns-a", "ns-b"}}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		if stats := w.GetStats(); stats.SubscriptionCount != 4 {
			t.Errorf("expected 4 subscriptions, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		if stats := w.GetStats(); stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("DefaultNamespace", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		if err := w.Start(Config{}); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Fatalf("expected 2 subscriptions, got %d", stats.SubscriptionCount)
		}
		if stats.Topics[0] != domain.TopicPredictionCompleted || stats.Topics[1] != domain.TopicSelectionRejected {
			t.Errorf("unexpected topics %v", stats.Topics)
		}
	})

	t.Run("PersistsPrediction", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		w.Start(Config{})
		defer w.Stop()

		log := domain.PredictionLog{
			ID:      "pred-001",
			TraceID: "trace-001",
			Request: domain.PredictionRequest{Year: 2024, Month: 3, Day: 6, DayName: "Wednesday", Line: "1", System: "Doors", VehicleID: "101", DescriptionLength: 30},
			Response: domain.PredictionResponse{
				ID:    "pred-001",
				Label: "0",
				Probabilities: []domain.ClassProbability{
					{Class: "0", Probability: 0.875},
					{Class: "1", Probability: 0.125},
				},
			},
			CreatedAt: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC),
		}
		payload, _ := json.Marshal(log)

		if err := eventBus.Publish(ctx, domain.DefaultNamespace, domain.TopicPredictionCompleted, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		waitFor(t, func() bool { return w.GetStats().Persisted == 1 })

		stored, err := repo.GetPredictionLog(ctx, "pred-001")
		if err != nil {
			t.Fatalf("GetPredictionLog failed: %v", err)
		}
		if stored.Response.Label != "0" || stored.Request.System != "Doors" || stored.TraceID != "trace-001" {
			t.Errorf("unexpected stored log: %+v", stored)
		}
	})

	t.Run("FillsMissingFields", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		w.Start(Config{})
		defer w.Stop()

		payload, _ := json.Marshal(domain.PredictionLog{
			ID:       "pred-002",
			Response: domain.PredictionResponse{ID: "pred-002", Label: "1"},
		})
		eventBus.Publish(ctx, domain.DefaultNamespace, domain.TopicPredictionCompleted, payload)

		waitFor(t, func() bool { return w.GetStats().Persisted == 1 })

		stored, err := repo.GetPredictionLog(ctx, "pred-002")
		if err != nil {
			t.Fatalf("GetPredictionLog failed: %v", err)
		}
		if stored.CreatedAt.IsZero() {
			t.Error("expected created_at to default to the message timestamp")
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		w.Start(Config{})
		defer w.Stop()

		eventBus.Publish(ctx, domain.DefaultNamespace, domain.TopicPredictionCompleted, []byte("not json"))
		waitFor(t, func() bool { return w.GetStats().Failed == 1 })

		if w.GetStats().Persisted != 0 {
			t.Error("expected nothing persisted")
		}
	})

	t.Run("MissingIDFails", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		w.Start(Config{})
		defer w.Stop()

		payload, _ := json.Marshal(domain.PredictionLog{})
		eventBus.Publish(ctx, domain.DefaultNamespace, domain.TopicPredictionCompleted, payload)
		waitFor(t, func() bool { return w.GetStats().Failed == 1 })
	})

	t.Run("RecordsRejections", func(t *testing.T) {
		w := NewWorker(eventBus, repo)
		w.Start(Config{})
		defer w.Stop()

		payload, _ := json.Marshal(domain.SelectionRejectedEvent{Dimension: "lines", Reason: "no value selected"})
		eventBus.Publish(ctx, domain.DefaultNamespace, domain.TopicSelectionRejected, payload)

		waitFor(t, func() bool { return w.GetStats().Rejected == 1 })
	})
}

func TestWorkerPersistError(t *testing.T) {
	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	repo := newTestRepo(t)
	w := NewWorker(eventBus, repo)

	err := w.persistPrediction(context.Background(), &domain.Message{Payload: []byte(`{"id":""}`)})
	if !errors.Is(err, repository.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
