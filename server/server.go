// Package server exposes the normalized export records over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/hyppado-ingest/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Response is the envelope of every kalodata endpoint. Failures keep
// Success true with an empty payload and set Error.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

type categoryPayload struct {
	Items  any    `json:"items"`
	Source string `json:"source"`
}

type rangesPayload struct {
	Items   any    `json:"items"`
	Default string `json:"default"`
}

// Server routes HTTP requests to the service.
type Server struct {
	cfg      *config.Config
	svc      *Service
	registry *prometheus.Registry
	mux      *http.ServeMux
}

// New builds the router. registry may be nil, in which case /metrics is not
// served.
func New(cfg *config.Config, svc *Service, registry *prometheus.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		registry: registry,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /api/kalodata/videos", s.handleVideos)
	s.mux.HandleFunc("GET /api/kalodata/products", s.handleProducts)
	s.mux.HandleFunc("GET /api/kalodata/creators", s.handleCreators)
	s.mux.HandleFunc("GET /api/kalodata/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/kalodata/ranges", s.handleRanges)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", s.cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.cfg.RequestDeadline > 0 {
		return context.WithTimeout(r.Context(), s.cfg.RequestDeadline)
	}
	return context.WithCancel(r.Context())
}

func (s *Server) parseQuery(r *http.Request) Query {
	values := r.URL.Query()
	q := Query{
		Range:    strings.TrimSpace(values.Get("range")),
		Limit:    s.cfg.DefaultLimit,
		Search:   strings.TrimSpace(values.Get("search")),
		Category: strings.TrimSpace(values.Get("category")),
		Filter:   strings.ToLower(strings.TrimSpace(values.Get("filter"))),
	}
	if q.Range == "" {
		q.Range = s.cfg.DefaultRange
	}
	if raw := values.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if q.Limit > s.cfg.MaxLimit {
		q.Limit = s.cfg.MaxLimit
	}
	if q.Filter != "new" {
		q.Filter = "all"
	}
	return q
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	page, err := s.svc.Videos(ctx, s.parseQuery(r))
	respond(w, r, page, err)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	page, err := s.svc.Products(ctx, s.parseQuery(r))
	respond(w, r, page, err)
}

func (s *Server) handleCreators(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	page, err := s.svc.Creators(ctx, s.parseQuery(r))
	respond(w, r, page, err)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	items, source := s.svc.Categories(ctx)
	respond(w, r, categoryPayload{Items: items, Source: source}, nil)
}

func (s *Server) handleRanges(w http.ResponseWriter, r *http.Request) {
	keys, err := s.svc.Ranges()
	respond(w, r, rangesPayload{Items: keys, Default: s.cfg.DefaultRange}, err)
}

// respond always answers 200. An error is logged and surfaced in the
// envelope's error field.
func respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	body := Response{Success: true, Data: data}
	if err != nil {
		body.Error = err.Error()
		slog.Error("serving empty result",
			slog.String("path", r.URL.Path),
			slog.String("query", r.URL.RawQuery),
			slog.Any("error", err),
		)
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.Any("error", err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
