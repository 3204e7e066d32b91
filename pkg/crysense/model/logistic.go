package model

import (
	"errors"
	"fmt"
	"math"
)

// logistic is a linear classifier with an optional standard scaler. A single
// coefficient row means a binary model scored with the sigmoid.
type logistic struct {
	coef      [][]float64
	intercept []float64
	mean      []float64
	scale     []float64
	ovr       bool
	nClasses  int
	nFeatures int
}

func newLogistic(spec Spec, nClasses, nFeatures int) (*logistic, error) {
	rows := len(spec.Coef)
	switch {
	case rows == 0:
		return nil, errors.New("missing coef")
	case nClasses == 2 && rows != 1 && rows != 2:
		return nil, fmt.Errorf("binary model needs 1 or 2 coef rows, got %d", rows)
	case nClasses != 2 && rows != nClasses:
		return nil, fmt.Errorf("expected %d coef rows, got %d", nClasses, rows)
	}
	for i, row := range spec.Coef {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("coef row %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}
	intercept := spec.Intercept
	if intercept == nil {
		intercept = make([]float64, rows)
	}
	if len(intercept) != rows {
		return nil, fmt.Errorf("expected %d intercepts, got %d", rows, len(intercept))
	}
	if spec.ScalerMean != nil && len(spec.ScalerMean) != nFeatures {
		return nil, fmt.Errorf("scaler mean has %d entries, expected %d", len(spec.ScalerMean), nFeatures)
	}
	if spec.ScalerScale != nil && len(spec.ScalerScale) != nFeatures {
		return nil, fmt.Errorf("scaler scale has %d entries, expected %d", len(spec.ScalerScale), nFeatures)
	}
	switch spec.MultiClass {
	case "", "multinomial", "ovr":
	default:
		return nil, fmt.Errorf("unknown multi_class %q", spec.MultiClass)
	}

	return &logistic{
		coef:      spec.Coef,
		intercept: intercept,
		mean:      spec.ScalerMean,
		scale:     spec.ScalerScale,
		ovr:       spec.MultiClass == "ovr",
		nClasses:  nClasses,
		nFeatures: nFeatures,
	}, nil
}

func (m *logistic) decision(x []float64) []float64 {
	z := make([]float64, len(m.coef))
	for k, row := range m.coef {
		s := m.intercept[k]
		for i, w := range row {
			v := x[i]
			if m.mean != nil {
				v -= m.mean[i]
			}
			if m.scale != nil && m.scale[i] != 0 {
				v /= m.scale[i]
			}
			s += w * v
		}
		z[k] = s
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func (m *logistic) PredictProbability(x []float64) ([]float64, error) {
	if err := checkRow(x, m.nFeatures); err != nil {
		return nil, err
	}
	z := m.decision(x)

	if len(z) == 1 {
		p := sigmoid(z[0])
		return []float64{1 - p, p}, nil
	}

	p := make([]float64, len(z))
	if m.ovr {
		var sum float64
		for k, v := range z {
			p[k] = sigmoid(v)
			sum += p[k]
		}
		for k := range p {
			p[k] /= sum
		}
		return p, nil
	}

	peak := z[argmax(z)]
	var sum float64
	for k, v := range z {
		p[k] = math.Exp(v - peak)
		sum += p[k]
	}
	for k := range p {
		p[k] /= sum
	}
	return p, nil
}

func (m *logistic) Predict(x []float64) (int, error) {
	p, err := m.PredictProbability(x)
	if err != nil {
		return 0, err
	}
	return argmax(p), nil
}
