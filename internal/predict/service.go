package predict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/railwatch/railwatch/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoStore is returned by Lookup when no repository is configured.
var ErrNoStore = errors.New("prediction store not configured")

// Service classifies requests and records every prediction. Logs are
// published on the event bus for asynchronous persistence, or written to
// the repository directly when no bus is configured.
type Service struct {
	model  *Model
	events domain.EventBus
	repo   domain.Repository
	tracer trace.Tracer
}

// NewService creates a prediction service. events and repo may be nil.
func NewService(model *Model, events domain.EventBus, repo domain.Repository) *Service {
	return &Service{
		model:  model,
		events: events,
		repo:   repo,
		tracer: otel.Tracer("railwatch-predict"),
	}
}

// Predict classifies req and records the result.
func (s *Service) Predict(ctx context.Context, req domain.PredictionRequest) (*domain.PredictionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "predict.Predict")
	defer span.End()

	resp, err := s.model.Predict(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("prediction.id", resp.ID),
		attribute.String("prediction.label", resp.Label),
	)

	log := &domain.PredictionLog{
		ID:        resp.ID,
		Request:   req,
		Response:  *resp,
		CreatedAt: time.Now().UTC(),
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		log.TraceID = sc.TraceID().String()
	}

	if err := s.record(ctx, log); err != nil {
		slog.Error("failed to record prediction",
			"prediction_id", resp.ID,
			"error", err,
		)
	}

	return resp, nil
}

func (s *Service) record(ctx context.Context, log *domain.PredictionLog) error {
	if s.events != nil {
		payload, err := json.Marshal(log)
		if err != nil {
			return fmt.Errorf("failed to encode prediction log: %w", err)
		}
		return s.events.Publish(ctx, domain.DefaultNamespace, domain.TopicPredictionCompleted, payload)
	}
	if s.repo != nil {
		return s.repo.SavePredictionLog(ctx, log)
	}
	return nil
}

// Lookup returns a recorded prediction.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.PredictionLog, error) {
	if s.repo == nil {
		return nil, ErrNoStore
	}
	return s.repo.GetPredictionLog(ctx, id)
}

// Describe returns the model metadata.
func (s *Service) Describe() Info {
	return s.model.Describe()
}
