// Package quoteserver is a reference remote authority. It serves a post list
// on GET /posts and accepts new posts on POST /posts, the same shape the
// remote source adapter consumes.
package quoteserver

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/c0deZ3R0/quotesync/logging"
	"github.com/c0deZ3R0/quotesync/transport/remote"
)

// Server holds the authoritative post list.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu     sync.RWMutex
	posts  []remote.Post
	nextID int
}

// New creates a server seeded with Options.Seed or SeedPosts.
func New(opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Seed == nil {
		o.Seed = SeedPosts()
	}
	if o.Logger == nil {
		o.Logger = logging.WithComponent(logging.Component("quoteserver")).Logger
	}
	s := &Server{opts: o, logger: o.Logger, posts: o.Seed}
	for _, p := range o.Seed {
		if n, err := strconv.Atoi(string(p.ID)); err == nil && n > s.nextID {
			s.nextID = n
		}
	}
	return s
}

// Posts returns a copy of the current post list.
func (s *Server) Posts() []remote.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]remote.Post(nil), s.posts...)
}

// Update replaces the title of an existing post. It simulates a server-side
// edit that the next sync picks up.
func (s *Server) Update(id string, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if string(s.posts[i].ID) == id {
			s.posts[i].Title = title
			return true
		}
	}
	return false
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.respondWithJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", s.listPosts)
		r.Post("/", s.createPost)
		r.Get("/{id}", s.getPost)
	})
	return r
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	posts := s.Posts()
	if v := r.URL.Query().Get("_limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondWithError(w, r, http.StatusBadRequest, "invalid _limit")
			return
		}
		if n < len(posts) {
			posts = posts[:n]
		}
	}
	s.respondWithJSON(w, r, http.StatusOK, posts)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, p := range s.Posts() {
		if string(p.ID) == id {
			s.respondWithJSON(w, r, http.StatusOK, p)
			return
		}
	}
	s.respondWithError(w, r, http.StatusNotFound, "post not found")
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxRequestSize)
	var p remote.Post
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondWithError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.respondWithError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(p.Title) == "" {
		s.respondWithError(w, r, http.StatusBadRequest, "title is required")
		return
	}

	s.mu.Lock()
	s.nextID++
	p.ID = remote.PostID(strconv.Itoa(s.nextID))
	s.posts = append(s.posts, p)
	s.mu.Unlock()

	s.logger.Info("Post created", "id", p.ID)
	s.respondWithJSON(w, r, http.StatusCreated, p)
}

// respondWithJSON gzips the payload when enabled, large enough and accepted.
func (s *Server) respondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "failed to marshal response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if s.opts.CompressionEnabled &&
		int64(len(response)) >= s.opts.CompressionThreshold &&
		strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.WriteHeader(code)
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gz.Write(response)
		return
	}
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
