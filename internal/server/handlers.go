package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/vectorindex"
)

// Error codes carried in ErrorResponse.Code, numbered like gRPC status codes.
const (
	codeInvalidArgument = 3
	codeNotFound        = 5
	codeAlreadyExists   = 6
	codeInternal        = 13
	codeUnauthenticated = 16
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	names, err := s.client.ListIndexes(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	resp := vectorindex.ListIndexesResponse{Indexes: make([]models.IndexDescription, 0, len(names))}
	for _, name := range names {
		desc, err := s.client.DescribeIndex(r.Context(), name)
		if err != nil {
			continue
		}
		desc.Host = hostFor(r, name)
		resp.Indexes = append(resp.Indexes, *desc)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req vectorindex.CreateIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeInvalidArgument, "invalid request body")
		return
	}
	if req.Metric == "" {
		req.Metric = models.MetricDotProduct
	}
	s.logger.Debug("create index request", zap.String("name", req.Name), zap.Int("dimension", req.Dimension))
	if err := s.client.CreateIndex(r.Context(), req); err != nil {
		if errors.Is(err, vectorindex.ErrIndexExists) {
			s.respondError(w, http.StatusConflict, codeAlreadyExists, err.Error())
			return
		}
		s.respondError(w, http.StatusBadRequest, codeInvalidArgument, err.Error())
		return
	}
	s.logger.Info("created index", zap.String("name", req.Name), zap.Int("dimension", req.Dimension),
		zap.String("metric", string(req.Metric)))
	desc := models.IndexDescription{Name: req.Name, Dimension: req.Dimension, Metric: req.Metric, Host: hostFor(r, req.Name)}
	s.respondJSON(w, http.StatusCreated, desc)
}

func (s *Server) handleDescribeIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	desc, err := s.client.DescribeIndex(r.Context(), name)
	if err != nil {
		s.respondIndexError(w, err)
		return
	}
	desc.Host = hostFor(r, name)
	s.respondJSON(w, http.StatusOK, desc)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.client.DeleteIndex(r.Context(), name); err != nil {
		s.respondIndexError(w, err)
		return
	}
	s.logger.Info("deleted index", zap.String("name", name))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	var req vectorindex.UpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeInvalidArgument, "invalid request body")
		return
	}
	// MemoryIndex only rejects invalid batches, never partially applies them.
	if err := idx.Upsert(r.Context(), req.Vectors); err != nil {
		s.respondError(w, http.StatusBadRequest, codeInvalidArgument, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, vectorindex.UpsertResponse{UpsertedCount: len(req.Vectors)})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeInvalidArgument, "invalid request body")
		return
	}
	matches, err := idx.Query(r.Context(), req)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeInvalidArgument, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, vectorindex.QueryResponse{Matches: matches})
}

func (s *Server) handleDescribeIndexStats(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	stats, err := idx.DescribeStats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, codeInternal, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) (*vectorindex.MemoryIndex, bool) {
	idx, err := s.client.Memory(chi.URLParam(r, "name"))
	if err != nil {
		s.respondIndexError(w, err)
		return nil, false
	}
	return idx, true
}

// hostFor is the data-plane base URL of an index as seen by the caller of r.
func hostFor(r *http.Request, name string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/indexes/" + name
}

func (s *Server) respondIndexError(w http.ResponseWriter, err error) {
	if errors.Is(err, vectorindex.ErrIndexNotFound) {
		s.respondError(w, http.StatusNotFound, codeNotFound, err.Error())
		return
	}
	s.respondError(w, http.StatusInternalServerError, codeInternal, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status, code int, message string) {
	s.respondJSON(w, status, vectorindex.ErrorResponse{Code: code, Message: message})
}
