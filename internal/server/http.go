// Package server exposes the recommendation service over HTTP with JSON
// request/response marshaling.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tably/tably/internal/metrics"
	"github.com/tably/tably/internal/recommend"
	"github.com/tably/tably/internal/service"
)

// HTTPServer serves the recommendation API.
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger
	svc    *service.RecommendationService
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string // CORS allowed origins
}

// NewHTTPServer creates the HTTP server and mounts all routes.
func NewHTTPServer(cfg HTTPServerConfig, svc *service.RecommendationService) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPServer{
		logger: logger,
		svc:    svc,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", healthCheckHandler())
	router.Get("/readyz", s.readinessCheckHandler())
	router.Handle("/metrics", promhttp.Handler())

	router.Get("/candidates", s.handleCandidates)
	router.Post("/recommendations", s.handleRecommendations)
	router.Get("/metadata/filters", s.handleMetadata)

	s.router = router
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // LLM re-ranking can be slow
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying chi router, mainly for tests.
func (s *HTTPServer) Router() *chi.Mux {
	return s.router
}

// recommendationRequest is the POST /recommendations body.
type recommendationRequest struct {
	Cities         []string `json:"cities"`
	Cuisines       []string `json:"cuisines"`
	MinRating      *float64 `json:"min_rating"`
	MaxPriceBucket *int     `json:"max_price_bucket"`
	TopN           *int     `json:"top_n"`
	ModelName      string   `json:"model_name"`
	Context        string   `json:"context_description"`
}

// handleCandidates serves the deterministic debug view.
func (s *HTTPServer) handleCandidates(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeQueryPreferences(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.svc.Rank(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

// handleRecommendations serves the full recommendation view including LLM
// annotations.
func (s *HTTPServer) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, &recommend.ValidationError{Field: "body", Message: "invalid JSON payload"})
		return
	}

	result, err := s.svc.RankAndRerank(r.Context(), recommend.RawPreferences{
		Cities:         splitAll(req.Cities),
		Cuisines:       splitAll(req.Cuisines),
		MinRating:      req.MinRating,
		MaxPriceBucket: req.MaxPriceBucket,
		TopN:           req.TopN,
		Model:          req.ModelName,
		Context:        req.Context,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

// handleMetadata serves the distinct cities, cuisines, and selectable
// models.
func (s *HTTPServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := s.svc.Metadata(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, meta)
}

// decodeQueryPreferences reads preferences from query parameters. List
// parameters accept comma-separated values.
func decodeQueryPreferences(r *http.Request) (recommend.RawPreferences, error) {
	q := r.URL.Query()
	raw := recommend.RawPreferences{
		Cities:   recommend.SplitList(q.Get("cities")),
		Cuisines: recommend.SplitList(q.Get("cuisines")),
		Model:    q.Get("model_name"),
		Context:  q.Get("context_description"),
	}

	if v := q.Get("min_rating"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return raw, &recommend.ValidationError{Field: "min_rating", Message: "must be a number"}
		}
		raw.MinRating = &f
	}
	if v := q.Get("max_price_bucket"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return raw, &recommend.ValidationError{Field: "max_price_bucket", Message: "must be an integer"}
		}
		raw.MaxPriceBucket = &n
	}
	if v := q.Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return raw, &recommend.ValidationError{Field: "top_n", Message: "must be an integer"}
		}
		raw.TopN = &n
	}

	return raw, nil
}

// splitAll expands comma-joined entries inside JSON arrays, matching the
// convenience the query form offers.
func splitAll(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, recommend.SplitList(v)...)
	}
	return out
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "path", r.URL.Path, "error", err)
	}
}

// writeError maps validation errors to 422 with the offending field; every
// other error is an opaque 500.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *recommend.ValidationError
	if errors.As(err, &vErr) {
		s.writeJSON(w, r, http.StatusUnprocessableEntity, map[string]string{
			"error": vErr.Message,
			"field": vErr.Field,
		})
		return
	}

	s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

// requestLoggingMiddleware logs HTTP requests and records request metrics.
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			endpoint := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				endpoint = rctx.RoutePattern()
			}
			metrics.HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(ww.Status())).Inc()

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Check if origin is allowed
			allowed := false
			if len(allowedOrigins) == 0 {
				// If no origins specified, allow all in development
				allowed = true
				origin = "*"
			} else {
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

// readinessCheckHandler reports ready once the restaurant table is
// servable.
func (s *HTTPServer) readinessCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.svc.Metadata(r.Context()); err != nil {
			s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
			})
			return
		}
		s.writeJSON(w, r, http.StatusOK, map[string]string{
			"status": "ready",
		})
	}
}
