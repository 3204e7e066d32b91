package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/CrySense/pkg/crysense/features"
)

var (
	testClasses  = []string{"hungry", "tired", "discomfort"}
	testFeatures = []string{"f1", "f2"}
)

func logisticSpec() Spec {
	return Spec{
		Type:        KindLogistic,
		Coef:        [][]float64{{1, 0}, {0, 1}, {-1, -1}},
		Intercept:   []float64{0, 0, 0.5},
		ScalerMean:  []float64{0, 0},
		ScalerScale: []float64{1, 1},
	}
}

func forestSpec() Spec {
	// Splits on f1 <= 0.5: left leaf favours class 0, right leaf class 2.
	tree := Tree{
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{0, -2, -2},
		Threshold:     []float64{0.5, -2, -2},
		Value:         [][]float64{{5, 5, 5}, {8, 2, 0}, {0, 1, 3}},
	}
	stump := Tree{
		ChildrenLeft:  []int{-1},
		ChildrenRight: []int{-1},
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		Value:         [][]float64{{0.2, 0.6, 0.2}},
	}
	return Spec{Type: KindRandomForest, Trees: []Tree{tree, stump}}
}

func knnSpec() Spec {
	return Spec{
		Type:    KindKNN,
		K:       3,
		Weights: "distance",
		Prototypes: []Prototype{
			{Class: 0, Features: []float64{0, 0}},
			{Class: 1, Features: []float64{10, 10}},
			{Class: 1, Features: []float64{11, 10}},
			{Class: 2, Features: []float64{-10, 5}},
		},
	}
}

func sum(p []float64) float64 {
	var s float64
	for _, v := range p {
		s += v
	}
	return s
}

func TestPredictors(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		x    []float64
		want int
	}{
		{"logistic", logisticSpec(), []float64{3, 0}, 0},
		{"logistic second class", logisticSpec(), []float64{0, 3}, 1},
		{"forest left", forestSpec(), []float64{0, 0}, 0},
		{"forest right", forestSpec(), []float64{1, 0}, 2},
		{"knn", knnSpec(), []float64{9, 9}, 1},
		{"knn exact", knnSpec(), []float64{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromSpec(tt.spec, testClasses, testFeatures, nil)
			if err != nil {
				t.Fatalf("FromSpec failed: %v", err)
			}
			idx, err := a.Predictor().Predict(tt.x)
			if err != nil {
				t.Fatalf("Predict failed: %v", err)
			}
			if idx != tt.want {
				t.Errorf("Expected class %d, got %d", tt.want, idx)
			}
			p, err := a.Predictor().PredictProbability(tt.x)
			if err != nil {
				t.Fatalf("PredictProbability failed: %v", err)
			}
			if len(p) != len(testClasses) {
				t.Fatalf("Expected %d probabilities, got %d", len(testClasses), len(p))
			}
			if math.Abs(sum(p)-1) > 1e-9 {
				t.Errorf("Probabilities sum to %f", sum(p))
			}
			if argmax(p) != idx {
				t.Errorf("Predict disagrees with PredictProbability")
			}
			if _, err := a.Predictor().Predict([]float64{1}); err == nil {
				t.Error("Expected error for wrong feature count")
			}
		})
	}
}

func TestForestProbability(t *testing.T) {
	a, err := FromSpec(forestSpec(), testClasses, testFeatures, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := a.Predictor().PredictProbability([]float64{0, 0})
	want := []float64{(0.8 + 0.2) / 2, (0.2 + 0.6) / 2, (0 + 0.2) / 2}
	for i := range want {
		if math.Abs(p[i]-want[i]) > 1e-12 {
			t.Errorf("p[%d]: expected %f, got %f", i, want[i], p[i])
		}
	}
}

func TestBinaryLogistic(t *testing.T) {
	spec := Spec{Type: KindLogistic, Coef: [][]float64{{2, 0}}, Intercept: []float64{0}}
	a, err := FromSpec(spec, []string{"no", "yes"}, testFeatures, nil)
	if err != nil {
		t.Fatal(err)
	}
	p, err := a.Predictor().PredictProbability([]float64{0, 7})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p[0]-0.5) > 1e-12 || math.Abs(p[1]-0.5) > 1e-12 {
		t.Errorf("Expected even odds at the boundary, got %v", p)
	}
	idx, _ := a.Predictor().Predict([]float64{1, 0})
	if idx != 1 {
		t.Errorf("Expected class 1, got %d", idx)
	}
}

func TestFromSpecRejectsInconsistentModels(t *testing.T) {
	badTree := forestSpec()
	badTree.Trees[0].Feature[0] = 5

	tests := []struct {
		name string
		spec Spec
	}{
		{"no type", Spec{}},
		{"unknown type", Spec{Type: "svm"}},
		{"coef rows", Spec{Type: KindLogistic, Coef: [][]float64{{1, 1}}}},
		{"coef width", Spec{Type: KindLogistic, Coef: [][]float64{{1}, {1}, {1}}}},
		{"tree feature", badTree},
		{"knn class", Spec{Type: KindKNN, Prototypes: []Prototype{{Class: 7, Features: []float64{0, 0}}}}},
		{"knn weights", Spec{Type: KindKNN, Weights: "gaussian", Prototypes: []Prototype{{Class: 0, Features: []float64{0, 0}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromSpec(tt.spec, testClasses, testFeatures, nil)
			if !errors.Is(err, ErrModelCorrupt) {
				t.Errorf("Expected ErrModelCorrupt, got %v", err)
			}
			if a != nil {
				t.Error("Expected no artifact with an error")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	params := features.ParamsV1
	for _, ext := range []string{".msgpack", ".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			a, err := FromSpec(knnSpec(), testClasses, testFeatures, &params)
			if err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(t.TempDir(), "model"+ext)
			if err := Save(path, a); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if loaded.Kind() != KindKNN {
				t.Errorf("Expected kind knn, got %s", loaded.Kind())
			}
			got := loaded.ClassNames()
			for i := range testClasses {
				if got[i] != testClasses[i] {
					t.Errorf("Class %d: expected %s, got %s", i, testClasses[i], got[i])
				}
			}
			if loaded.NumFeatures() != 2 {
				t.Errorf("Expected 2 features, got %d", loaded.NumFeatures())
			}
			p, ok := loaded.Params()
			if !ok || !p.Equal(features.ParamsV1) {
				t.Errorf("Feature params did not round trip: %+v", p)
			}
			if loaded.Checksum() == "" {
				t.Error("Expected checksum to be set")
			}

			x := []float64{9, 9}
			want, _ := a.Predictor().PredictProbability(x)
			have, _ := loaded.Predictor().PredictProbability(x)
			for i := range want {
				if math.Abs(want[i]-have[i]) > 1e-12 {
					t.Errorf("Probability %d: expected %f, got %f", i, want[i], have[i])
				}
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.msgpack")); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
	if _, err := Load(dir); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound for a directory, got %v", err)
	}

	cases := map[string]string{
		"garbage.json":     "{not json",
		"no_classes.json":  `{"model": {"type": "knn", "prototypes": [{"class": 0, "features": [1]}]}, "feature_names": ["a"]}`,
		"no_features.json": `{"model": {"type": "knn"}, "class_names": ["a"]}`,
		"no_model.json":    `{"class_names": ["a"], "feature_names": ["b"]}`,
		"dup_classes.json": `{"model": {"type": "knn", "prototypes": [{"class": 0, "features": [1]}]}, "class_names": ["a", "a"], "feature_names": ["x"]}`,
		"future.json":      `{"format_version": 99, "model": {"type": "knn"}, "class_names": ["a"], "feature_names": ["b"]}`,
		"garbage.msgpack":  "\xc1\xc1\xc1",
		"bad_shape.yaml":   "model:\n  type: logistic\n  coef: [[1, 2, 3]]\nclass_names: [a, b, c]\nfeature_names: [x]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			a, err := Load(path)
			if !errors.Is(err, ErrModelCorrupt) {
				t.Errorf("Expected ErrModelCorrupt, got %v", err)
			}
			if a != nil {
				t.Error("Expected no artifact with an error")
			}
		})
	}
}

type constPredictor struct{}

func (constPredictor) Predict([]float64) (int, error)                  { return 0, nil }
func (constPredictor) PredictProbability([]float64) ([]float64, error) { return []float64{1, 0}, nil }

func TestNewArtifact(t *testing.T) {
	if _, err := NewArtifact(constPredictor{}, nil, testFeatures, nil); !errors.Is(err, ErrModelCorrupt) {
		t.Errorf("Expected ErrModelCorrupt for missing classes, got %v", err)
	}
	if _, err := NewArtifact(constPredictor{}, []string{"hungry", "tired", "hungry"}, testFeatures, nil); !errors.Is(err, ErrModelCorrupt) {
		t.Errorf("Expected ErrModelCorrupt for duplicate classes, got %v", err)
	}
	a, err := NewArtifact(constPredictor{}, []string{"a", "b"}, testFeatures, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.Kind() != "custom" {
		t.Errorf("Expected custom kind, got %s", a.Kind())
	}
	if err := Save(filepath.Join(t.TempDir(), "m.json"), a); err == nil {
		t.Error("Expected Save to fail without a spec")
	}

	names := a.ClassNames()
	names[0] = "changed"
	if n, _ := a.ClassName(0); n != "a" {
		t.Error("ClassNames exposed internal state")
	}
}

func TestCheckParams(t *testing.T) {
	other := features.ParamsV1
	other.NMFCC = 20
	a, err := FromSpec(knnSpec(), testClasses, testFeatures, &other)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.CheckParams(features.ParamsV1); !errors.Is(err, ErrModelCorrupt) {
		t.Errorf("Expected ErrModelCorrupt, got %v", err)
	}

	untagged, err := FromSpec(knnSpec(), testClasses, testFeatures, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := untagged.CheckParams(features.ParamsV1); err != nil {
		t.Errorf("Expected untagged artifact to pass, got %v", err)
	}
}
