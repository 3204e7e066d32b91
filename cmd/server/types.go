//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"time"

	"github.com/himanishpuri/CrySense/pkg/crysense/features"
	"github.com/himanishpuri/CrySense/pkg/models"
)

// ClassifyResponse is the response for POST /api/classify
type ClassifyResponse struct {
	Class          string                  `json:"class"`
	Confidence     float64                 `json:"confidence"`
	Probabilities  map[string]float64      `json:"probabilities"`
	Reconciliation features.Reconciliation `json:"reconciliation"`
	HistoryID      string                  `json:"history_id,omitempty"`
	ProcessingMs   int64                   `json:"processing_ms"`
}

// FeaturesResponse is the response for POST /api/features
type FeaturesResponse struct {
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
	Count  int       `json:"count"`
}

// ClassificationDTO represents a stored classification in API responses
type ClassificationDTO struct {
	ID            string             `json:"id"`
	AudioPath     string             `json:"audio_path,omitempty"`
	Class         string             `json:"class"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	ModelID       string             `json:"model_id,omitempty"`
	Reconciled    string             `json:"reconciled"`
	DurationMs    int                `json:"duration_ms"`
	CreatedAt     time.Time          `json:"created_at"`
}

func toClassificationDTO(c models.Classification) ClassificationDTO {
	return ClassificationDTO{
		ID:            c.ID,
		AudioPath:     c.AudioPath,
		Class:         c.Class,
		Confidence:    c.Confidence,
		Probabilities: c.Probabilities,
		ModelID:       c.ModelID,
		Reconciled:    c.Reconciled,
		DurationMs:    c.DurationMs,
		CreatedAt:     c.CreatedAt,
	}
}

// HistoryResponse is the response for GET /api/history
type HistoryResponse struct {
	Classifications []ClassificationDTO `json:"classifications"`
	Count           int                 `json:"count"`
}

// ModelResponse is the response for GET /api/model
type ModelResponse struct {
	Path          string   `json:"path,omitempty"`
	Kind          string   `json:"kind"`
	FormatVersion int      `json:"format_version"`
	Checksum      string   `json:"checksum,omitempty"`
	Classes       []string `json:"classes"`
	FeatureCount  int      `json:"feature_count"`
	ParamsVersion string   `json:"params_version,omitempty"`
}

// MetricsResponse provides server health and usage counters
type MetricsResponse struct {
	Status          string `json:"status"`
	UptimeSeconds   int64  `json:"uptime_seconds"`
	ModelLoaded     bool   `json:"model_loaded"`
	HistoryEnabled  bool   `json:"history_enabled"`
	DatabasePath    string `json:"database_path,omitempty"`
	SampleRate      int    `json:"sample_rate"`
	FeatureCount    int    `json:"feature_count"`
	Classifications int64  `json:"classifications"`
	Failures        int64  `json:"failures"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Stage   string `json:"stage,omitempty"`
}
