// Package api exposes a running Library over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/c0deZ3R0/quotesync/bulk"
	syncErrors "github.com/c0deZ3R0/quotesync/errors"
	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/quote"
	"github.com/c0deZ3R0/quotesync/synckit"
)

// Server routes control requests to a Library.
type Server struct {
	lib            *synckit.Library
	metrics        http.Handler
	events         http.Handler
	logger         *slog.Logger
	maxRequestSize int64
	requestTimeout time.Duration
	clock          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithEventsHandler serves GET /events, normally an sse.Hub handler.
func WithEventsHandler(h http.Handler) Option {
	return func(s *Server) { s.events = h }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxRequestSize caps request bodies. Default: 8MB.
func WithMaxRequestSize(n int64) Option {
	return func(s *Server) { s.maxRequestSize = n }
}

// WithRequestTimeout bounds non-streaming requests. Default: 60s.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

func New(lib *synckit.Library, opts ...Option) *Server {
	s := &Server{
		lib:            lib,
		maxRequestSize: bulk.MaxImportBytes,
		requestTimeout: 60 * time.Second,
		clock:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.WithComponent(logging.Component("api")).Logger
	}
	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if s.events != nil {
		r.Method(http.MethodGet, "/events", s.events)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.requestTimeout))
		r.Use(s.limitBody)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.listRecords)
			r.Post("/", s.addRecord)
			r.Get("/random", s.randomRecord)
			r.Get("/last-viewed", s.lastViewed)
		})
		r.Get("/categories", s.categories)

		r.Post("/sync", s.synchronize)
		r.Route("/conflicts", func(r chi.Router) {
			r.Get("/", s.listConflicts)
			r.Post("/resolve", s.resolveAll)
			r.Post("/{id}/resolve", s.resolve)
		})

		r.Get("/autosync", s.getAutoSync)
		r.Put("/autosync", s.putAutoSync)

		r.Post("/import", s.importRecords)
		r.Get("/export", s.exportRecords)

		if s.metrics != nil {
			r.Method(http.MethodGet, "/metrics", s.metrics)
		}
	})
	return r
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// statusFor maps an error kind to the HTTP status a client can act on.
func statusFor(err error) int {
	switch syncErrors.KindOf(err) {
	case syncErrors.KindNotFound:
		return http.StatusNotFound
	case syncErrors.KindValidation, syncErrors.KindImportFormat, syncErrors.KindInvalid:
		return http.StatusBadRequest
	case syncErrors.KindBusy:
		return http.StatusConflict
	case syncErrors.KindFetch:
		return http.StatusBadGateway
	case syncErrors.KindClosed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code := string(syncErrors.KindOf(err))
	if code == "" {
		code = "internal"
	}
	if status >= 500 {
		s.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err)
	}
	writeError(w, status, code, err.Error())
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && s.maxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func recordsOrEmpty(records []quote.Record) []quote.Record {
	if records == nil {
		return []quote.Record{}
	}
	return records
}
