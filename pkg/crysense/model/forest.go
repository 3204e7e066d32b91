package model

import (
	"errors"
	"fmt"
)

// Tree is one decision tree in the flat array layout scikit-learn exports.
// Node i is a leaf when ChildrenLeft[i] == -1. Value holds the per-class
// weight (counts or fractions) of each node.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left" yaml:"children_left" msgpack:"children_left"`
	ChildrenRight []int       `json:"children_right" yaml:"children_right" msgpack:"children_right"`
	Feature       []int       `json:"feature" yaml:"feature" msgpack:"feature"`
	Threshold     []float64   `json:"threshold" yaml:"threshold" msgpack:"threshold"`
	Value         [][]float64 `json:"value" yaml:"value" msgpack:"value"`
}

const leaf = -1

func (t Tree) validate(nClasses, nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			if r != leaf {
				return fmt.Errorf("node %d has only one child", i)
			}
			if len(t.Value[i]) != nClasses {
				return fmt.Errorf("leaf %d has %d class weights, expected %d", i, len(t.Value[i]), nClasses)
			}
			var sum float64
			for _, v := range t.Value[i] {
				if v < 0 {
					return fmt.Errorf("leaf %d has a negative weight", i)
				}
				sum += v
			}
			if sum == 0 {
				return fmt.Errorf("leaf %d has no weight", i)
			}
			continue
		}
		// Children always come after their parent, which rules out cycles.
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if f := t.Feature[i]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, f, nFeatures)
		}
	}
	return nil
}

func (t Tree) leafFor(x []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// forest averages the normalised leaf distributions of its trees.
type forest struct {
	trees     []Tree
	nClasses  int
	nFeatures int
}

func newForest(spec Spec, nClasses, nFeatures int) (*forest, error) {
	if len(spec.Trees) == 0 {
		return nil, errors.New("no trees")
	}
	for i, t := range spec.Trees {
		if err := t.validate(nClasses, nFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &forest{trees: spec.Trees, nClasses: nClasses, nFeatures: nFeatures}, nil
}

func (m *forest) PredictProbability(x []float64) ([]float64, error) {
	if err := checkRow(x, m.nFeatures); err != nil {
		return nil, err
	}
	p := make([]float64, m.nClasses)
	for _, t := range m.trees {
		v := t.leafFor(x)
		var sum float64
		for _, w := range v {
			sum += w
		}
		for k, w := range v {
			p[k] += w / sum
		}
	}
	for k := range p {
		p[k] /= float64(len(m.trees))
	}
	return p, nil
}

func (m *forest) Predict(x []float64) (int, error) {
	p, err := m.PredictProbability(x)
	if err != nil {
		return 0, err
	}
	return argmax(p), nil
}
