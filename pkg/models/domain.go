// Package models holds the records shared by the service, the history store
// and the outer surfaces.
package models

import "time"

// Classification is a stored classification outcome.
type Classification struct {
	ID            string             // UUID assigned by the store
	AudioPath     string             // Source recording, empty for in-memory input
	Class         string             // Predicted cry type
	Confidence    float64            // Percentage (0-100)
	Probabilities map[string]float64 // Percent per class
	ModelID       string             // Registered model ID or artifact checksum
	FeatureCount  int                // Length of the vector fed to the model
	Reconciled    string             // Length reconciliation action
	DurationMs    int                // Duration of the recording
	CreatedAt     time.Time
}

// RegisteredModel is a model artifact known to the history store.
type RegisteredModel struct {
	ID            string
	Name          string
	Path          string
	Kind          string
	Checksum      string // SHA-256 of the artifact file
	ClassNames    []string
	FeatureCount  int
	ParamsVersion string // Empty when the artifact did not record its params
	CreatedAt     time.Time
}
