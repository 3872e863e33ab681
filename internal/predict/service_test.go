package predict

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
		SQLitePath: filepath.Join(t.TempDir(), "predict-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestServicePublishesPrediction(t *testing.T) {
	events := bus.NewChannelBus(8)
	defer events.Close()

	received := make(chan *domain.Message, 1)
	events.Subscribe(context.Background(), domain.DefaultNamespace, domain.TopicPredictionCompleted, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	})

	svc := NewService(loadTestModel(t), events, nil)
	resp, err := svc.Predict(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	select {
	case msg := <-received:
		var log domain.PredictionLog
		if err := json.Unmarshal(msg.Payload, &log); err != nil {
			t.Fatalf("bad payload: %v", err)
		}
		if log.ID != resp.ID || log.Response.Label != resp.Label {
			t.Errorf("log does not match response: %+v", log)
		}
		if log.Request.System != "Doors" || log.CreatedAt.IsZero() {
			t.Errorf("unexpected log request: %+v", log)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for prediction event")
	}
}

func TestServiceWritesDirectlyWithoutBus(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(loadTestModel(t), nil, repo)
	ctx := context.Background()

	resp, err := svc.Predict(ctx, validRequest())
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	log, err := svc.Lookup(ctx, resp.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if log.Response.Label != resp.Label || len(log.Response.Probabilities) != 2 {
		t.Errorf("unexpected stored log: %+v", log)
	}

	if _, err := svc.Lookup(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceIncompatibleInputIsNotRecorded(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(loadTestModel(t), nil, repo)
	ctx := context.Background()

	req := validRequest()
	req.System = "Pantograph"

	_, err := svc.Predict(ctx, req)
	var incompatible *domain.ModelIncompatibleInputError
	if !errors.As(err, &incompatible) {
		t.Fatalf("expected ModelIncompatibleInputError, got %v", err)
	}

	logs, err := repo.ListPredictionLogs(ctx, 10)
	if err != nil {
		t.Fatalf("ListPredictionLogs failed: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("expected no logs, got %d", len(logs))
	}
}

func TestServiceLookupWithoutStore(t *testing.T) {
	svc := NewService(loadTestModel(t), nil, nil)
	if _, err := svc.Lookup(context.Background(), "x"); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
	if info := svc.Describe(); len(info.Classes) != 2 {
		t.Errorf("unexpected model info %+v", info)
	}
}
