package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/railwatch/railwatch/internal/analytics"
	"github.com/railwatch/railwatch/internal/domain"
	"github.com/railwatch/railwatch/internal/predict"
	"github.com/railwatch/railwatch/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	analytics   *analytics.Service
	predictions *predict.Service
	repo        domain.Repository
	cache       domain.Cache
	bus         domain.EventBus
	version     string
}

// NewHandler creates a new API handler. Any dependency may be nil; the
// endpoints that need it answer 503.
func NewHandler(svc *analytics.Service, predictions *predict.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		analytics:   svc,
		predictions: predictions,
		repo:        repo,
		cache:       cache,
		bus:         bus,
		version:     version,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Dimension string `json:"dimension,omitempty"`
	Feature   string `json:"feature,omitempty"`
	Value     string `json:"value,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ResponseMetadata is attached to computed responses.
type ResponseMetadata struct {
	TraceID string `json:"traceId"`
	TotalMs int64  `json:"totalMs"`
	Version string `json:"version"`
}

func (h *Handler) metadata(r *http.Request, start time.Time) ResponseMetadata {
	return ResponseMetadata{
		TraceID: GetTraceID(r.Context()),
		TotalMs: time.Since(start).Milliseconds(),
		Version: h.version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	checks := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("eventBus", func() error { return h.bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.version,
		"checks":  checks,
	})
}

// Ready reports whether a dataset is loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}

	ds := h.analytics.Dataset()
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":       true,
		"rows":        ds.Len(),
		"fingerprint": ds.Fingerprint(),
		"predictions": h.predictions != nil,
	})
}

// DomainsResponse is the response for GET /domains.
type DomainsResponse struct {
	domain.Domains
	Fingerprint string `json:"fingerprint"`
	Rows        int    `json:"rows"`
}

// Domains returns the category domains and year bounds used to build
// filter controls.
func (h *Handler) Domains(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalytics(w) {
		return
	}
	ds := h.analytics.Dataset()
	writeJSON(w, http.StatusOK, DomainsResponse{
		Domains:     h.analytics.Domains(),
		Fingerprint: ds.Fingerprint(),
		Rows:        ds.Len(),
	})
}

// DefaultSelection returns the selection with every value chosen.
func (h *Handler) DefaultSelection(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalytics(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.analytics.DefaultSelection())
}

// ValidateResponse is the response for POST /selection/validate.
type ValidateResponse struct {
	Valid        bool   `json:"valid"`
	SelectionKey string `json:"selectionKey"`
}

// ValidateSelection checks a selection without computing anything.
func (h *Handler) ValidateSelection(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalytics(w) {
		return
	}
	sel, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}
	if err := h.analytics.Validate(r.Context(), sel); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: true, SelectionKey: sel.Key()})
}

// SelectAll chooses every value of the dimension in the path.
func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.analytics.SelectAll)
}

// Clear empties the dimension in the path.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.analytics.Clear)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(domain.Selection, domain.Dimension) domain.Selection) {
	if !h.requireAnalytics(w) {
		return
	}
	dim, err := domain.ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	sel, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, apply(sel, dim))
}

// QueryRequest is the request body for POST /incidents/query.
type QueryRequest struct {
	Selection *domain.Selection `json:"selection"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
}

// QueryIncidents returns a page of the filtered view.
func (h *Handler) QueryIncidents(w http.ResponseWriter, r *http.Request) {
	if !h.requireAnalytics(w) {
		return
	}

	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sel := h.analytics.DefaultSelection()
	if req.Selection != nil {
		sel = h.withYears(*req.Selection)
	}

	page, err := h.analytics.Query(r.Context(), sel, req.Offset, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ReportResponse wraps a full report.
type ReportResponse struct {
	*domain.Report
	Metadata ResponseMetadata `json:"metadata"`
}

// Report computes every aggregate family for the selection in the body.
// An empty body means the default selection.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.requireAnalytics(w) {
		return
	}
	sel, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}

	report, err := h.analytics.Report(r.Context(), sel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Report: report, Metadata: h.metadata(r, start)})
}

// FamilyResponse carries one aggregate family.
type FamilyResponse struct {
	Family       string           `json:"family"`
	SelectionKey string           `json:"selectionKey"`
	RowCount     int              `json:"rowCount"`
	Empty        bool             `json:"empty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Data         any              `json:"data"`
	Metadata     ResponseMetadata `json:"metadata"`
}

// ReportFamily returns a single aggregate family.
func (h *Handler) ReportFamily(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.requireAnalytics(w) {
		return
	}

	family := chi.URLParam(r, "family")
	if _, ok := (&domain.Report{}).Family(family); !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown report family: " + family})
		return
	}

	sel, ok := h.decodeSelection(w, r)
	if !ok {
		return
	}

	report, err := h.analytics.Report(r.Context(), sel)
	if err != nil {
		writeError(w, err)
		return
	}

	data, _ := report.Family(family)
	writeJSON(w, http.StatusOK, FamilyResponse{
		Family:       family,
		SelectionKey: report.SelectionKey,
		RowCount:     report.RowCount,
		Empty:        report.Empty,
		Warnings:     report.Warnings,
		Data:         data,
		Metadata:     h.metadata(r, start),
	})
}

// PredictRequest is the request body for POST /predict. Either the eight
// model features or the form shape (date, line, system, vehicle_id,
// description) is accepted; a date selects the form shape. The feature
// shape needs description_length or a description.
type PredictRequest struct {
	Year              int    `json:"year"`
	Month             int    `json:"month"`
	Day               int    `json:"day"`
	DayName           string `json:"day_name"`
	Line              string `json:"line"`
	System            string `json:"system"`
	VehicleID         string `json:"vehicle_id"`
	DescriptionLength *int   `json:"description_length"`

	Date        string `json:"date"`
	Description string `json:"description"`
}

// PredictionRequest converts the body into model features.
func (p PredictRequest) PredictionRequest() (domain.PredictionRequest, error) {
	if p.Date != "" {
		date, err := time.Parse(time.DateOnly, p.Date)
		if err != nil {
			return domain.PredictionRequest{}, errors.New("date must be YYYY-MM-DD")
		}
		return domain.NewPredictionRequest(date, p.Line, p.System, p.VehicleID, p.Description), nil
	}

	if p.DescriptionLength == nil && p.Description == "" {
		return domain.PredictionRequest{}, &domain.ModelIncompatibleInputError{
			Feature: domain.FeatureDescriptionLength,
			Reason:  "required feature is missing",
		}
	}
	length := utf8.RuneCountInString(p.Description)
	if p.DescriptionLength != nil {
		length = *p.DescriptionLength
	}
	if length < 0 {
		return domain.PredictionRequest{}, errors.New("description_length must not be negative")
	}

	return domain.PredictionRequest{
		Year:              p.Year,
		Month:             p.Month,
		Day:               p.Day,
		DayName:           p.DayName,
		Line:              p.Line,
		System:            p.System,
		VehicleID:         p.VehicleID,
		DescriptionLength: length,
	}, nil
}

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	*domain.PredictionResponse
	Request  domain.PredictionRequest `json:"request"`
	Metadata ResponseMetadata         `json:"metadata"`
}

// Predict classifies an incident.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.predictions == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded"})
		return
	}

	var body PredictRequest
	if !decodeBody(w, r, &body) {
		return
	}
	req, err := body.PredictionRequest()
	var incompatible *domain.ModelIncompatibleInputError
	if errors.As(err, &incompatible) {
		writeError(w, err)
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	resp, err := h.predictions.Predict(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		PredictionResponse: resp,
		Request:            req,
		Metadata:           h.metadata(r, start),
	})
}

// GetPrediction retrieves a recorded prediction by ID.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	if h.predictions == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded"})
		return
	}

	id := chi.URLParam(r, "id")
	log, err := h.predictions.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "prediction not found"})
	case errors.Is(err, predict.ErrNoStore):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
	case err != nil:
		slog.Error("failed to get prediction", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get prediction"})
	default:
		writeJSON(w, http.StatusOK, log)
	}
}

// Model describes the loaded classifier.
func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	if h.predictions == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, h.predictions.Describe())
}

func (h *Handler) requireAnalytics(w http.ResponseWriter) bool {
	if h.analytics == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dataset not loaded"})
		return false
	}
	return true
}

// decodeSelection reads a selection from the body. An empty body yields
// the default selection and a missing year range spans the dataset.
func (h *Handler) decodeSelection(w http.ResponseWriter, r *http.Request) (domain.Selection, bool) {
	var sel domain.Selection
	err := json.NewDecoder(r.Body).Decode(&sel)
	if errors.Is(err, io.EOF) {
		return h.analytics.DefaultSelection(), true
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON request body"})
		return sel, false
	}
	return h.withYears(sel), true
}

// withYears fills an omitted year range with the dataset bounds.
func (h *Handler) withYears(sel domain.Selection) domain.Selection {
	if sel.Years == (domain.YearRange{}) {
		sel.Years = h.analytics.DefaultSelection().Years
	}
	return sel
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON request body"})
		return false
	}
	return true
}

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var invalid *domain.InvalidSelectionError
	var incompatible *domain.ModelIncompatibleInputError

	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:     "invalid selection",
			Dimension: string(invalid.Dimension),
			Reason:    invalid.Reason,
		})
	case errors.As(err, &incompatible):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "model incompatible input",
			Feature: incompatible.Feature,
			Value:   incompatible.Value,
			Reason:  incompatible.Reason,
		})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
