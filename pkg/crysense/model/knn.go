package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Prototype is one labelled training vector of a nearest-neighbour model.
type Prototype struct {
	Class    int       `json:"class" yaml:"class" msgpack:"class"`
	Features []float64 `json:"features" yaml:"features" msgpack:"features"`
}

// knn votes among the K prototypes closest in Euclidean distance. With
// distance weighting each vote counts 1/d, and exact matches take all the
// weight.
type knn struct {
	prototypes []Prototype
	k          int
	byDistance bool
	nClasses   int
	nFeatures  int
}

func newKNN(spec Spec, nClasses, nFeatures int) (*knn, error) {
	if len(spec.Prototypes) == 0 {
		return nil, errors.New("no prototypes")
	}
	k := spec.K
	if k <= 0 {
		k = 5
	}
	k = min(k, len(spec.Prototypes))
	for i, p := range spec.Prototypes {
		if p.Class < 0 || p.Class >= nClasses {
			return nil, fmt.Errorf("prototype %d has class %d of %d", i, p.Class, nClasses)
		}
		if len(p.Features) != nFeatures {
			return nil, fmt.Errorf("prototype %d has %d features, expected %d", i, len(p.Features), nFeatures)
		}
	}
	var byDistance bool
	switch spec.Weights {
	case "", "uniform":
	case "distance":
		byDistance = true
	default:
		return nil, fmt.Errorf("unknown weights %q", spec.Weights)
	}
	return &knn{
		prototypes: spec.Prototypes,
		k:          k,
		byDistance: byDistance,
		nClasses:   nClasses,
		nFeatures:  nFeatures,
	}, nil
}

type neighbour struct {
	class    int
	distance float64
}

func (m *knn) nearest(x []float64) []neighbour {
	all := make([]neighbour, len(m.prototypes))
	for i, p := range m.prototypes {
		var d float64
		for j, v := range p.Features {
			diff := x[j] - v
			d += diff * diff
		}
		all[i] = neighbour{class: p.Class, distance: math.Sqrt(d)}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].distance < all[j].distance })
	return all[:m.k]
}

func (m *knn) PredictProbability(x []float64) ([]float64, error) {
	if err := checkRow(x, m.nFeatures); err != nil {
		return nil, err
	}
	near := m.nearest(x)
	p := make([]float64, m.nClasses)

	exact := m.byDistance && near[0].distance == 0
	var total float64
	for _, n := range near {
		w := 1.0
		switch {
		case exact:
			if n.distance != 0 {
				w = 0
			}
		case m.byDistance:
			w = 1 / n.distance
		}
		p[n.class] += w
		total += w
	}
	for c := range p {
		p[c] /= total
	}
	return p, nil
}

func (m *knn) Predict(x []float64) (int, error) {
	p, err := m.PredictProbability(x)
	if err != nil {
		return 0, err
	}
	return argmax(p), nil
}
