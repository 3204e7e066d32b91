package crysense

import "github.com/himanishpuri/CrySense/pkg/crysense/features"

// PredictionResult is the outcome of classifying one recording.
type PredictionResult struct {
	Class          string                  `json:"class"`          // Predicted cry type
	Confidence     float64                 `json:"confidence"`     // Percentage (0-100) of the predicted class
	Probabilities  map[string]float64      `json:"probabilities"`  // Percent per class, sums to 100
	Reconciliation features.Reconciliation `json:"reconciliation"` // Feature length adjustment, if any
	ModelChecksum  string                  `json:"model_checksum,omitempty"`
	HistoryID      string                  `json:"history_id,omitempty"` // Set when the result was persisted
}
