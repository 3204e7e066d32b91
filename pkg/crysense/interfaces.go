package crysense

import (
	"context"

	"github.com/himanishpuri/CrySense/pkg/crysense/features"
	"github.com/himanishpuri/CrySense/pkg/crysense/model"
	"github.com/himanishpuri/CrySense/pkg/models"
)

type Service interface {
	Classify(ctx context.Context, audioPath string, artifact *model.Artifact) (*PredictionResult, error)
	ClassifySamples(ctx context.Context, samples []float64, sampleRate int, artifact *model.Artifact) (*PredictionResult, error)
	ExtractFeatures(ctx context.Context, audioPath string) (*features.Vector, error)
	ExtractSamples(ctx context.Context, samples []float64, sampleRate int) (*features.Vector, error)
	ListHistory(limit int) ([]models.Classification, error)
	RegisterModel(name, path string) (*models.RegisteredModel, error)
	ListModels() ([]models.RegisteredModel, error)
	Close() error
}

type HistoryStore interface {
	SaveClassification(rec models.Classification) (string, error)
	ListClassifications(limit int) ([]models.Classification, error)
	RegisterModel(m models.RegisteredModel) (string, error)
	GetModel(idOrChecksum string) (*models.RegisteredModel, error)
	ListModels() ([]models.RegisteredModel, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
