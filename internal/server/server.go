// Package server exposes the conversion engine over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pcbpeek/pcbpeek/internal/config"
	"github.com/pcbpeek/pcbpeek/pkg/pipeline"
	"github.com/pcbpeek/pcbpeek/pkg/store"
)

// Server wires the conversion pipeline, the result store, and the
// optional history recorder behind the HTTP contract.
type Server struct {
	runner  *pipeline.Runner
	store   store.Store
	history store.History
	cfg     config.Config
	logger  *log.Logger

	mu     sync.RWMutex
	latest string // most recent conversion ID, cookie fallback
}

// New assembles a server. A nil history disables recording.
func New(runner *pipeline.Runner, st store.Store, hist store.History, cfg config.Config, logger *log.Logger) *Server {
	if hist == nil {
		hist = store.NullHistory{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		runner:  runner,
		store:   st,
		history: hist,
		cfg:     cfg,
		logger:  logger,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/convert-gerber/", s.handleConvert)
	r.Get("/images/{name}", s.handleImage)
	r.Get("/list-images/", s.handleListImages)
	r.Get("/history/", s.handleHistory)
	r.Get("/healthz", s.handleHealthz)
	return r
}

// ListenAndServe runs the server until ctx is canceled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout.Value(time.Minute),
		WriteTimeout: s.cfg.Server.WriteTimeout.Value(2 * time.Minute),
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		s.cfg.Server.ShutdownTimeout.Value(10*time.Second))
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}

func (s *Server) setLatest(id string) {
	s.mu.Lock()
	s.latest = id
	s.mu.Unlock()
}

func (s *Server) getLatest() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
