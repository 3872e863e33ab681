// Package analytics serves filtered views and aggregate reports over the
// loaded incident dataset.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/railwatch/railwatch/internal/aggregate"
	"github.com/railwatch/railwatch/internal/domain"
	"github.com/railwatch/railwatch/internal/filter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Service answers selection, query and report requests for one dataset.
// The dataset and its domains are fixed for the lifetime of the service.
type Service struct {
	dataset *domain.Dataset
	model   *domain.FilterModel
	engine  *filter.Engine

	cache     domain.Cache
	events    domain.EventBus
	reportTTL time.Duration

	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithCache memoizes reports in c for ttl.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.reportTTL = ttl
	}
}

// WithEventBus publishes selection and report events on b.
func WithEventBus(b domain.EventBus) Option {
	return func(s *Service) {
		s.events = b
	}
}

// NewService creates an analytics service for a dataset.
func NewService(ds *domain.Dataset, engine *filter.Engine, opts ...Option) *Service {
	s := &Service{
		dataset:   ds,
		model:     domain.NewFilterModel(ds.Domains()),
		engine:    engine,
		reportTTL: 10 * time.Minute,
		tracer:    otel.Tracer("railwatch-analytics"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dataset returns the served dataset.
func (s *Service) Dataset() *domain.Dataset {
	return s.dataset
}

// Domains returns the category domains and year bounds of the dataset.
func (s *Service) Domains() domain.Domains {
	return s.model.Domains()
}

// DefaultSelection returns the selection with every value chosen.
func (s *Service) DefaultSelection() domain.Selection {
	return s.model.Default()
}

// SelectAll chooses every domain value of dim.
func (s *Service) SelectAll(sel domain.Selection, dim domain.Dimension) domain.Selection {
	return s.model.SelectAll(sel, dim)
}

// Clear empties dim.
func (s *Service) Clear(sel domain.Selection, dim domain.Dimension) domain.Selection {
	return s.model.Clear(sel, dim)
}

// Validate checks sel against the dataset domains and compiles its where
// expression. A rejected selection is announced on the event bus.
func (s *Service) Validate(ctx context.Context, sel domain.Selection) error {
	err := s.model.Validate(sel)
	if err == nil {
		err = s.engine.Compile(sel.Where)
	}
	if err != nil {
		s.rejected(ctx, sel, err)
	}
	return err
}

// Page is one slice of a filtered view.
type Page struct {
	SelectionKey string            `json:"selectionKey"`
	Total        int               `json:"total"`
	Offset       int               `json:"offset"`
	Limit        int               `json:"limit"`
	Rows         []domain.Incident `json:"rows"`
}

// Query returns rows of the filtered view, in source order.
func (s *Service) Query(ctx context.Context, sel domain.Selection, offset, limit int) (*Page, error) {
	if err := s.Validate(ctx, sel); err != nil {
		return nil, err
	}

	view, err := s.engine.Apply(s.dataset, sel)
	if err != nil {
		s.rejected(ctx, sel, err)
		return nil, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	page := &Page{
		SelectionKey: sel.Key(),
		Total:        view.Len(),
		Offset:       offset,
		Limit:        limit,
		Rows:         []domain.Incident{},
	}
	if offset < view.Len() {
		end := min(offset+limit, view.Len())
		page.Rows = view.Rows[offset:end]
	}
	return page, nil
}

// Report returns every aggregate family for sel. Reports are memoized per
// dataset fingerprint and canonical selection key.
func (s *Service) Report(ctx context.Context, sel domain.Selection) (*domain.Report, error) {
	key := sel.Key()
	ctx, span := s.tracer.Start(ctx, "analytics.Report",
		trace.WithAttributes(attribute.String("selection.key", key)),
	)
	defer span.End()

	if err := s.Validate(ctx, sel); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	namespace := s.dataset.Fingerprint()

	if s.cache != nil {
		report, err := s.cache.GetReport(ctx, namespace, key)
		if err != nil {
			slog.Warn("report cache read failed", "selection_key", key, "error", err)
		}
		if report != nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return report, nil
		}
	}

	start := time.Now()

	view, err := s.engine.Apply(s.dataset, sel)
	if err != nil {
		s.rejected(ctx, sel, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := aggregate.Compute(view)
	report.SelectionKey = key
	if report.Empty {
		report.Warnings = append(report.Warnings, domain.ErrEmptyResult.Error())
	}

	span.SetAttributes(
		attribute.Bool("cache.hit", false),
		attribute.Int("report.rows", report.RowCount),
	)

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, namespace, key, report, s.reportTTL); err != nil {
			slog.Warn("report cache write failed", "selection_key", key, "error", err)
		}
	}

	duration := time.Since(start)
	s.publish(ctx, domain.TopicReportComputed, domain.ReportComputedEvent{
		SelectionKey: key,
		Fingerprint:  namespace,
		RowCount:     report.RowCount,
		DurationMs:   duration.Milliseconds(),
	})

	slog.Debug("report computed",
		"selection_key", key,
		"rows", report.RowCount,
		"duration_ms", duration.Milliseconds(),
	)

	return report, nil
}

// Warm computes and caches the report of the default selection.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.Report(ctx, s.DefaultSelection())
	return err
}

func (s *Service) rejected(ctx context.Context, sel domain.Selection, err error) {
	var invalid *domain.InvalidSelectionError
	if !errors.As(err, &invalid) {
		return
	}
	s.publish(ctx, domain.TopicSelectionRejected, domain.SelectionRejectedEvent{
		SelectionKey: sel.Key(),
		Dimension:    string(invalid.Dimension),
		Reason:       invalid.Reason,
	})
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := s.events.Publish(ctx, domain.DefaultNamespace, topic, payload); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}
