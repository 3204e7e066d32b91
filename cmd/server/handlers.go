//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/himanishpuri/CrySense/pkg/crysense"
	"github.com/himanishpuri/CrySense/pkg/crysense/audio"
	"github.com/himanishpuri/CrySense/pkg/crysense/features"
	"github.com/himanishpuri/CrySense/pkg/crysense/model"
	"github.com/himanishpuri/CrySense/pkg/utils"
)

const (
	defaultMaxUpload    = 50 << 20
	defaultHistoryLimit = 50
	classifyTimeout     = 2 * time.Minute
)

var errNoModel = fmt.Errorf("%w: no model configured", model.ErrModelNotFound)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service crysense.Service
	config  *ServerConfig
	log     crysense.Logger
	started time.Time

	mu       sync.RWMutex
	artifact *model.Artifact
	modelErr error

	classifications atomic.Int64
	failures        atomic.Int64
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	ModelPath      string
	History        bool
	AllowedOrigins []string
	MaxUploadBytes int64
}

// NewServer creates a new server instance
func NewServer(service crysense.Service, config *ServerConfig, log crysense.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaultMaxUpload
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	return &Server{
		service:  service,
		config:   config,
		log:      log,
		started:  time.Now(),
		modelErr: errNoModel,
	}
}

// SetModel installs the artifact used by /api/classify.
func (s *Server) SetModel(a *model.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifact = a
	s.modelErr = nil
}

// SetModelError records why no model is available.
func (s *Server) SetModelError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifact = nil
	s.modelErr = err
}

func (s *Server) model() (*model.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact, s.modelErr
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondPipelineError maps a pipeline failure to a status code: problems
// with the recording are 422, a missing or broken model is 503.
func (s *Server) respondPipelineError(w http.ResponseWriter, err error) {
	var pe *crysense.PredictionError
	if !errors.As(err, &pe) {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusUnprocessableEntity
	switch {
	case errors.Is(pe.Err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case pe.Canceled(), pe.Kind() == crysense.KindModel:
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: pe.Message(),
		Code:    status,
		Kind:    string(pe.Kind()),
		Stage:   string(pe.Stage),
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "CrySense API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":   "GET /health",
			"metrics":  "GET /api/health/metrics",
			"classify": "POST /api/classify",
			"features": "POST /api/features",
			"history":  "GET /api/history",
			"model":    "GET /api/model",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	artifact, _ := s.model()
	status := "healthy"
	if artifact == nil {
		status = "degraded"
	}
	resp := MetricsResponse{
		Status:          status,
		UptimeSeconds:   int64(time.Since(s.started).Seconds()),
		ModelLoaded:     artifact != nil,
		HistoryEnabled:  s.config.History,
		SampleRate:      features.ParamsV1.SampleRate,
		FeatureCount:    len(features.Names(features.ParamsV1)),
		Classifications: s.classifications.Load(),
		Failures:        s.failures.Load(),
	}
	if s.config.History {
		resp.DatabasePath = s.config.DBPath
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// saveUpload copies the multipart "audio" field to a temp file. The
// returned cleanup removes it.
func (s *Server) saveUpload(w http.ResponseWriter, r *http.Request) (string, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return "", nil, false
		}
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return "", nil, false
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return "", nil, false
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !audio.IsSupported(name) {
		s.respondError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported audio format %q", filepath.Ext(name)))
		return "", nil, false
	}

	tempFile := utils.TempPath(s.config.TempDir, "-"+name)
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return "", nil, false
	}
	cleanup := func() { utils.DeleteFile(tempFile) }

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		cleanup()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return "", nil, false
	}
	if err := out.Close(); err != nil {
		cleanup()
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return "", nil, false
	}
	return tempFile, cleanup, true
}

// handleClassify handles POST /api/classify (multipart "audio")
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	artifact, modelErr := s.model()
	if artifact == nil {
		s.failures.Add(1)
		s.respondPipelineError(w, &crysense.PredictionError{Stage: crysense.StageModel, Err: modelErr})
		return
	}

	path, cleanup, ok := s.saveUpload(w, r)
	if !ok {
		s.failures.Add(1)
		return
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(r.Context(), classifyTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.service.Classify(ctx, path, artifact)
	if err != nil {
		s.failures.Add(1)
		s.log.Warnf("Classification failed: %v", err)
		s.respondPipelineError(w, err)
		return
	}
	s.classifications.Add(1)

	s.respondJSON(w, http.StatusOK, ClassifyResponse{
		Class:          res.Class,
		Confidence:     res.Confidence,
		Probabilities:  res.Probabilities,
		Reconciliation: res.Reconciliation,
		HistoryID:      res.HistoryID,
		ProcessingMs:   time.Since(start).Milliseconds(),
	})
}

// handleFeatures handles POST /api/features (multipart "audio")
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.saveUpload(w, r)
	if !ok {
		return
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(r.Context(), classifyTimeout)
	defer cancel()

	vec, err := s.service.ExtractFeatures(ctx, path)
	if err != nil {
		s.respondPipelineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, FeaturesResponse{
		Names:  vec.Names,
		Values: vec.Values,
		Count:  vec.Len(),
	})
}

// handleHistory handles GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.service.ListHistory(limit)
	if errors.Is(err, crysense.ErrHistoryDisabled) {
		s.respondError(w, http.StatusNotFound, "history is not enabled on this server")
		return
	}
	if err != nil {
		s.log.Errorf("Failed to list history: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	dtos := make([]ClassificationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toClassificationDTO(rec)
	}
	s.respondJSON(w, http.StatusOK, HistoryResponse{
		Classifications: dtos,
		Count:           len(dtos),
	})
}

// handleModel handles GET /api/model
func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	artifact, modelErr := s.model()
	if artifact == nil {
		s.respondPipelineError(w, &crysense.PredictionError{Stage: crysense.StageModel, Err: modelErr})
		return
	}

	resp := ModelResponse{
		Path:          s.config.ModelPath,
		Kind:          artifact.Kind(),
		FormatVersion: artifact.FormatVersion(),
		Checksum:      artifact.Checksum(),
		Classes:       artifact.ClassNames(),
		FeatureCount:  artifact.NumFeatures(),
	}
	if p, ok := artifact.Params(); ok {
		resp.ParamsVersion = p.Version
	}
	s.respondJSON(w, http.StatusOK, resp)
}
