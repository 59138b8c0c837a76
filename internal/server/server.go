// Package server exposes in-process indexes over the same REST surface as the remote
// index service, for local runs and integration tests.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/vectorindex"
	"github.com/hyperjump/semsearch/pkg/utils"
)

// Server serves the indexes of a MemoryClient.
type Server struct {
	client  *vectorindex.MemoryClient
	config  *config.ServerConfig
	dataDir string
	logger  *zap.Logger
	server  *http.Server
}

// NewServer returns a server for client. When dataDir is set, indexes are loaded from it
// on Start and saved to it on Stop.
func NewServer(client *vectorindex.MemoryClient, cfg *config.ServerConfig, dataDir string, logger *zap.Logger) *Server {
	return &Server{
		client:  client,
		config:  cfg,
		dataDir: dataDir,
		logger:  utils.OrNop(logger),
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Get("/indexes", s.handleListIndexes)
		r.Post("/indexes", s.handleCreateIndex)
		r.Route("/indexes/{name}", func(r chi.Router) {
			r.Get("/", s.handleDescribeIndex)
			r.Delete("/", s.handleDeleteIndex)
			r.Post("/vectors/upsert", s.handleUpsert)
			r.Post("/query", s.handleQuery)
			r.Post("/describe_index_stats", s.handleDescribeIndexStats)
		})
	})
	return r
}

// Start loads persisted indexes, then serves until Stop is called.
func (s *Server) Start() error {
	if s.dataDir != "" {
		n, err := s.client.LoadAll(s.dataDir)
		if err != nil {
			return fmt.Errorf("failed to load indexes: %w", err)
		}
		s.logger.Info("loaded indexes", zap.Int("count", n), zap.String("dir", s.dataDir))
	}
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully and persists indexes.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if s.dataDir != "" {
		if saveErr := s.client.SaveAll(s.dataDir); saveErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to save indexes: %w", saveErr))
		} else {
			s.logger.Info("saved indexes", zap.String("dir", s.dataDir))
		}
	}
	return err
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config != nil && s.config.APIKey != "" {
			got := r.Header.Get(vectorindex.APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.config.APIKey)) != 1 {
				s.respondError(w, http.StatusUnauthorized, codeUnauthenticated, "invalid api key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
