package crysense

import (
	"context"
	"errors"
	"fmt"

	"github.com/himanishpuri/CrySense/pkg/crysense/model"
)

var (
	// ErrPrediction wraps every failure of the classification pipeline.
	ErrPrediction = errors.New("prediction failed")
	// ErrHistoryDisabled is returned by history operations when no store
	// is configured.
	ErrHistoryDisabled = errors.New("history storage is not enabled")
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageDecode    Stage = "decode"
	StageCondition Stage = "condition"
	StageExtract   Stage = "extract"
	StageBuild     Stage = "build"
	StageModel     Stage = "model"
	StagePredict   Stage = "predict"
)

// ErrorKind separates problems with the recording from problems with the
// classifier.
type ErrorKind string

const (
	KindAudio ErrorKind = "audio"
	KindModel ErrorKind = "model"
)

// PredictionError is returned by Classify and ClassifySamples. errors.Is
// matches both ErrPrediction and the underlying cause.
type PredictionError struct {
	Stage Stage
	Err   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("%v at %s: %v", ErrPrediction, e.Stage, e.Err)
}

func (e *PredictionError) Unwrap() []error { return []error{ErrPrediction, e.Err} }

// Kind reports whether the failure lies with the audio or the model.
func (e *PredictionError) Kind() ErrorKind {
	switch {
	case errors.Is(e.Err, model.ErrModelNotFound), errors.Is(e.Err, model.ErrModelCorrupt):
		return KindModel
	case e.Stage == StageModel, e.Stage == StagePredict:
		return KindModel
	}
	return KindAudio
}

// Canceled reports whether the pipeline stopped because its context ended.
func (e *PredictionError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)
}

// Message is a short explanation suitable for end users.
func (e *PredictionError) Message() string {
	if e.Canceled() {
		return "Analysis was cancelled before it finished."
	}
	if e.Kind() == KindModel {
		return fmt.Sprintf("The cry classifier is unavailable: %v", e.Err)
	}
	return fmt.Sprintf("Could not extract features from the audio: %v", e.Err)
}

func stageError(stage Stage, err error) error {
	return &PredictionError{Stage: stage, Err: err}
}
