// Package crysense classifies infant cry recordings: it decodes audio,
// conditions the signal, extracts a named feature vector and runs it
// through a pre-trained classifier.
package crysense

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/CrySense/pkg/crysense/audio"
	"github.com/himanishpuri/CrySense/pkg/crysense/features"
	"github.com/himanishpuri/CrySense/pkg/crysense/model"
	"github.com/himanishpuri/CrySense/pkg/crysense/signal"
	"github.com/himanishpuri/CrySense/pkg/logger"
	"github.com/himanishpuri/CrySense/pkg/models"
)

// crySenseService is the default implementation of the Service interface.
type crySenseService struct {
	storage   HistoryStore
	log       Logger
	config    *Config
	loader    *audio.Loader
	extractor *features.Extractor
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.SampleRate != cfg.Params.SampleRate {
		return nil, fmt.Errorf("sample rate %d does not match feature params (%d Hz)", cfg.SampleRate, cfg.Params.SampleRate)
	}

	extractor, err := features.NewExtractor(cfg.Params, features.WithConcurrency(cfg.Concurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to create feature extractor: %w", err)
	}

	stor := cfg.Storage
	if stor == nil && cfg.History {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &crySenseService{
		storage:   stor,
		log:       cfg.Logger,
		config:    cfg,
		loader:    audio.NewLoader(cfg.SampleRate, cfg.TempDir),
		extractor: extractor,
	}, nil
}

// Classify decodes the recording at audioPath and classifies it.
func (s *crySenseService) Classify(ctx context.Context, audioPath string, artifact *model.Artifact) (*PredictionResult, error) {
	s.log.Infof("Classifying audio: %s", audioPath)

	clip, err := s.loader.Load(ctx, audioPath)
	if err != nil {
		return nil, stageError(StageDecode, err)
	}
	s.log.Debugf("Decoded %d samples at %d Hz (%.2fs)", len(clip.Samples), clip.SampleRate, clip.Duration().Seconds())

	res, err := s.classify(ctx, clip.Samples, artifact)
	if err != nil {
		s.log.Warnf("Classification of %s failed: %v", audioPath, err)
		return nil, err
	}
	s.record(audioPath, clip.Samples, res, artifact)
	return res, nil
}

// ClassifySamples classifies an in-memory mono waveform, resampling it to
// the configured rate first if needed.
func (s *crySenseService) ClassifySamples(ctx context.Context, samples []float64, sampleRate int, artifact *model.Artifact) (*PredictionResult, error) {
	y, err := s.toRate(samples, sampleRate)
	if err != nil {
		return nil, stageError(StageDecode, err)
	}
	res, err := s.classify(ctx, y, artifact)
	if err != nil {
		s.log.Warnf("Classification failed: %v", err)
		return nil, err
	}
	s.record("", y, res, artifact)
	return res, nil
}

func (s *crySenseService) classify(ctx context.Context, samples []float64, artifact *model.Artifact) (*PredictionResult, error) {
	if artifact == nil {
		return nil, stageError(StageModel, fmt.Errorf("%w: no artifact loaded", model.ErrModelNotFound))
	}
	if err := artifact.CheckParams(s.config.Params); err != nil {
		if s.config.StrictParams {
			return nil, stageError(StageModel, err)
		}
		s.log.Warnf("Continuing with mismatched model: %v", err)
	}

	vec, err := s.vector(ctx, samples)
	if err != nil {
		return nil, err
	}

	vec, rec := features.Reconcile(vec, artifact.FeatureNames(), s.log)
	if err := ctx.Err(); err != nil {
		return nil, stageError(StagePredict, err)
	}

	p := artifact.Predictor()
	idx, err := p.Predict(vec.Values)
	if err != nil {
		return nil, stageError(StagePredict, err)
	}
	class, ok := artifact.ClassName(idx)
	if !ok {
		return nil, stageError(StagePredict, fmt.Errorf("predicted class index %d outside %d classes", idx, len(artifact.ClassNames())))
	}
	probs, err := p.PredictProbability(vec.Values)
	if err != nil {
		return nil, stageError(StagePredict, err)
	}
	probs, err = normalizeProbabilities(probs, len(artifact.ClassNames()))
	if err != nil {
		return nil, stageError(StagePredict, err)
	}

	names := artifact.ClassNames()
	dist := make(map[string]float64, len(names))
	for i, name := range names {
		dist[name] = probs[i] * 100
	}

	res := &PredictionResult{
		Class:          class,
		Confidence:     probs[idx] * 100,
		Probabilities:  dist,
		Reconciliation: rec,
		ModelChecksum:  artifact.Checksum(),
	}
	s.log.Infof("Predicted %s (%.1f%%)", res.Class, res.Confidence)
	return res, nil
}

// vector runs conditioning, extraction and flattening.
func (s *crySenseService) vector(ctx context.Context, samples []float64) (features.Vector, error) {
	if err := ctx.Err(); err != nil {
		return features.Vector{}, stageError(StageCondition, err)
	}
	conditioned, err := signal.Condition(samples, s.config.SampleRate)
	if err != nil {
		return features.Vector{}, stageError(StageCondition, err)
	}

	if err := ctx.Err(); err != nil {
		return features.Vector{}, stageError(StageExtract, err)
	}
	frames, err := s.extractor.Extract(ctx, conditioned, s.config.SampleRate)
	if err != nil {
		return features.Vector{}, stageError(StageExtract, err)
	}
	s.log.Debugf("Extracted %d feature frames", len(frames.Names()))

	vec, err := features.Build(frames)
	if err != nil {
		return features.Vector{}, stageError(StageBuild, err)
	}
	s.log.Debugf("Built feature vector of length %d", vec.Len())
	return vec, nil
}

// ExtractFeatures returns the named feature vector of a recording.
func (s *crySenseService) ExtractFeatures(ctx context.Context, audioPath string) (*features.Vector, error) {
	s.log.Infof("Extracting features: %s", audioPath)
	clip, err := s.loader.Load(ctx, audioPath)
	if err != nil {
		return nil, stageError(StageDecode, err)
	}
	vec, err := s.vector(ctx, clip.Samples)
	if err != nil {
		return nil, err
	}
	return &vec, nil
}

// ExtractSamples returns the named feature vector of an in-memory waveform.
func (s *crySenseService) ExtractSamples(ctx context.Context, samples []float64, sampleRate int) (*features.Vector, error) {
	y, err := s.toRate(samples, sampleRate)
	if err != nil {
		return nil, stageError(StageDecode, err)
	}
	vec, err := s.vector(ctx, y)
	if err != nil {
		return nil, err
	}
	return &vec, nil
}

func (s *crySenseService) toRate(samples []float64, sampleRate int) ([]float64, error) {
	if sampleRate == s.config.SampleRate {
		return samples, nil
	}
	s.log.Debugf("Resampling %d samples from %d Hz to %d Hz", len(samples), sampleRate, s.config.SampleRate)
	return audio.Resample(samples, sampleRate, s.config.SampleRate)
}

// normalizeProbabilities checks p has one finite, non-negative entry per
// class and rescales it to sum to one.
func normalizeProbabilities(p []float64, nClasses int) ([]float64, error) {
	if len(p) != nClasses {
		return nil, fmt.Errorf("model returned %d probabilities for %d classes", len(p), nClasses)
	}
	var sum float64
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("invalid probability %v for class %d", v, i)
		}
		sum += v
	}
	if sum == 0 {
		return nil, errors.New("model returned an all-zero distribution")
	}
	if math.Abs(sum-1) < 1e-12 {
		return p, nil
	}
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v / sum
	}
	return out, nil
}

// record persists a successful result when history is enabled. Storage
// failures are logged and do not fail the classification.
func (s *crySenseService) record(audioPath string, samples []float64, res *PredictionResult, artifact *model.Artifact) {
	if s.storage == nil {
		return
	}
	id, err := s.storage.SaveClassification(models.Classification{
		AudioPath:     audioPath,
		Class:         res.Class,
		Confidence:    res.Confidence,
		Probabilities: res.Probabilities,
		ModelID:       artifact.Checksum(),
		FeatureCount:  artifact.NumFeatures(),
		Reconciled:    string(res.Reconciliation.Action),
		DurationMs:    len(samples) * 1000 / s.config.SampleRate,
	})
	if err != nil {
		s.log.Warnf("Failed to store classification: %v", err)
		return
	}
	res.HistoryID = id
}

// ListHistory returns the most recent classifications first.
func (s *crySenseService) ListHistory(limit int) ([]models.Classification, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	return s.storage.ListClassifications(limit)
}

// RegisterModel validates the artifact at path and records it. An empty
// name defaults to the file name without its extension.
func (s *crySenseService) RegisterModel(name, path string) (*models.RegisteredModel, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	artifact, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	rec := models.RegisteredModel{
		Name:         name,
		Path:         path,
		Kind:         artifact.Kind(),
		Checksum:     artifact.Checksum(),
		ClassNames:   artifact.ClassNames(),
		FeatureCount: artifact.NumFeatures(),
	}
	if p, ok := artifact.Params(); ok {
		rec.ParamsVersion = p.Version
	}

	id, err := s.storage.RegisterModel(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to register model: %w", err)
	}
	s.log.Infof("Registered model %s (%s, %d classes) as %s", name, rec.Kind, len(rec.ClassNames), id)
	return s.storage.GetModel(id)
}

// ListModels returns every registered model.
func (s *crySenseService) ListModels() ([]models.RegisteredModel, error) {
	if s.storage == nil {
		return nil, ErrHistoryDisabled
	}
	return s.storage.ListModels()
}

// Close releases the history store, if any.
func (s *crySenseService) Close() error {
	if s.storage == nil {
		return nil
	}
	return s.storage.Close()
}
