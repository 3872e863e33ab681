package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/railwatch/railwatch/internal/domain"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server around h.
func NewServer(cfg domain.ServerConfig, h *Handler) *Server {
	router := chi.NewRouter()

	router.Use(CORS(cfg.AllowedOrigins))
	router.Use(RecoverMiddleware)
	router.Use(TracingMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))

	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)

	// Filter model
	router.Get("/domains", h.Domains)
	router.Route("/selection", func(r chi.Router) {
		r.Get("/default", h.DefaultSelection)
		r.Post("/validate", h.ValidateSelection)
		r.Post("/{dimension}/select-all", h.SelectAll)
		r.Post("/{dimension}/clear", h.Clear)
	})

	// Views and aggregates
	router.Post("/incidents/query", h.QueryIncidents)
	router.Post("/reports", h.Report)
	router.Post("/reports/{family}", h.ReportFamily)

	// Prediction
	router.Post("/predict", h.Predict)
	router.Get("/predictions/{id}", h.GetPrediction)
	router.Get("/model", h.Model)

	return &Server{
		router:  router,
		handler: h,
		config:  cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. A Shutdown that happens first
// makes Start return http.ErrServerClosed.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
