// Package model loads pre-trained cry classifiers and exposes them behind a
// small prediction capability.
package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/himanishpuri/CrySense/pkg/crysense/features"
)

var (
	// ErrModelNotFound is returned when an artifact path does not resolve.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelCorrupt is returned when an artifact cannot be decoded or is
	// internally inconsistent.
	ErrModelCorrupt = errors.New("model corrupt")
)

// FormatVersion is the bundle layout written by Save.
const FormatVersion = 1

// Predictor is the capability a trained classifier provides. x is a single
// feature row in artifact feature order.
type Predictor interface {
	Predict(x []float64) (int, error)
	PredictProbability(x []float64) ([]float64, error)
}

// Model kinds understood by the decoder.
const (
	KindLogistic     = "logistic"
	KindRandomForest = "random_forest"
	KindKNN          = "knn"
)

// Spec is the serialisable description of a model. Only the fields of the
// selected Type are used.
type Spec struct {
	Type string `json:"type" yaml:"type" msgpack:"type"`

	// logistic
	Coef        [][]float64 `json:"coef,omitempty" yaml:"coef,omitempty" msgpack:"coef,omitempty"`
	Intercept   []float64   `json:"intercept,omitempty" yaml:"intercept,omitempty" msgpack:"intercept,omitempty"`
	MultiClass  string      `json:"multi_class,omitempty" yaml:"multi_class,omitempty" msgpack:"multi_class,omitempty"`
	ScalerMean  []float64   `json:"scaler_mean,omitempty" yaml:"scaler_mean,omitempty" msgpack:"scaler_mean,omitempty"`
	ScalerScale []float64   `json:"scaler_scale,omitempty" yaml:"scaler_scale,omitempty" msgpack:"scaler_scale,omitempty"`

	// random_forest
	Trees []Tree `json:"trees,omitempty" yaml:"trees,omitempty" msgpack:"trees,omitempty"`

	// knn
	K          int         `json:"k,omitempty" yaml:"k,omitempty" msgpack:"k,omitempty"`
	Weights    string      `json:"weights,omitempty" yaml:"weights,omitempty" msgpack:"weights,omitempty"`
	Prototypes []Prototype `json:"prototypes,omitempty" yaml:"prototypes,omitempty" msgpack:"prototypes,omitempty"`
}

// Artifact is a loaded classifier bundle. It is immutable after
// construction and safe for concurrent use.
type Artifact struct {
	formatVersion int
	featureNames  []string
	classNames    []string
	params        *features.Params
	predictor     Predictor
	spec          *Spec
	checksum      string
}

// NewArtifact wraps an existing predictor. params may be nil when the
// producer did not record its feature parameters.
func NewArtifact(p Predictor, classNames, featureNames []string, params *features.Params) (*Artifact, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing model", ErrModelCorrupt)
	}
	if len(classNames) == 0 {
		return nil, fmt.Errorf("%w: missing class_names", ErrModelCorrupt)
	}
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("%w: missing feature_names", ErrModelCorrupt)
	}
	seen := make(map[string]struct{}, len(classNames))
	for _, name := range classNames {
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: duplicate class name %q", ErrModelCorrupt, name)
		}
		seen[name] = struct{}{}
	}
	a := &Artifact{
		formatVersion: FormatVersion,
		featureNames:  slices.Clone(featureNames),
		classNames:    slices.Clone(classNames),
		predictor:     p,
	}
	if params != nil {
		cp := *params
		a.params = &cp
	}
	return a, nil
}

// FromSpec builds a predictor from spec and validates it against the class
// and feature counts.
func FromSpec(spec Spec, classNames, featureNames []string, params *features.Params) (*Artifact, error) {
	p, err := buildPredictor(spec, len(classNames), len(featureNames))
	if err != nil {
		return nil, err
	}
	a, err := NewArtifact(p, classNames, featureNames, params)
	if err != nil {
		return nil, err
	}
	a.spec = &spec
	return a, nil
}

func buildPredictor(spec Spec, nClasses, nFeatures int) (Predictor, error) {
	var (
		p   Predictor
		err error
	)
	switch spec.Type {
	case KindLogistic:
		p, err = newLogistic(spec, nClasses, nFeatures)
	case KindRandomForest:
		p, err = newForest(spec, nClasses, nFeatures)
	case KindKNN:
		p, err = newKNN(spec, nClasses, nFeatures)
	case "":
		return nil, fmt.Errorf("%w: model type not set", ErrModelCorrupt)
	default:
		return nil, fmt.Errorf("%w: unknown model type %q", ErrModelCorrupt, spec.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelCorrupt, spec.Type, err)
	}
	return p, nil
}

// FeatureNames returns the feature order the model expects.
func (a *Artifact) FeatureNames() []string { return slices.Clone(a.featureNames) }

// ClassNames returns the label of each class index.
func (a *Artifact) ClassNames() []string { return slices.Clone(a.classNames) }

// NumFeatures is len(FeatureNames()).
func (a *Artifact) NumFeatures() int { return len(a.featureNames) }

// ClassName maps a class index to its label.
func (a *Artifact) ClassName(idx int) (string, bool) {
	if idx < 0 || idx >= len(a.classNames) {
		return "", false
	}
	return a.classNames[idx], true
}

// Params returns the recorded feature parameters, if any.
func (a *Artifact) Params() (features.Params, bool) {
	if a.params == nil {
		return features.Params{}, false
	}
	return *a.params, true
}

// Predictor returns the underlying model.
func (a *Artifact) Predictor() Predictor { return a.predictor }

// Kind returns the model type, or "custom" for wrapped predictors.
func (a *Artifact) Kind() string {
	if a.spec == nil {
		return "custom"
	}
	return a.spec.Type
}

// Checksum is the SHA-256 of the file the artifact was loaded from.
func (a *Artifact) Checksum() string { return a.checksum }

// FormatVersion returns the bundle layout version.
func (a *Artifact) FormatVersion() int { return a.formatVersion }

// CheckParams verifies that the artifact was trained with p. Artifacts that
// did not record their parameters are accepted.
func (a *Artifact) CheckParams(p features.Params) error {
	if a.params == nil {
		return nil
	}
	if !a.params.Equal(p) {
		return fmt.Errorf("%w: trained with feature params %q, extractor uses %q", ErrModelCorrupt, a.params.Version, p.Version)
	}
	return nil
}

func checkRow(x []float64, n int) error {
	if len(x) != n {
		return fmt.Errorf("expected %d features, got %d", n, len(x))
	}
	return nil
}

func argmax(p []float64) int {
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}
