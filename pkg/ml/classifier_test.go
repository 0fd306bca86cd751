package ml

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/features"
)

// writeArtifact serializes a model to a temp file and returns its path.
func writeArtifact(t *testing.T, m Model) string {
	t.Helper()
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ensemble.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

// stumpModel builds a two-tree ensemble splitting on the first feature:
// value > 0.5 predicts high, otherwise low.
func stumpModel(low, high float64) Model {
	tree := Tree{Nodes: []Node{
		{FeatureIndex: 0, Threshold: 0.5, Left: 1, Right: 2},
		{Leaf: true, Value: low},
		{Leaf: true, Value: high},
	}}
	return Model{
		SchemaVersion: SupportedSchemaVersion,
		FeatureOrder:  calibration.ModelFeatureOrder,
		Trees:         []Tree{tree, tree},
	}
}

func TestPredictAveragesTrees(t *testing.T) {
	path := writeArtifact(t, stumpModel(0.1, 0.9))
	clf, err := NewClassifier(path, nil)
	if err != nil {
		t.Fatalf("load classifier: %v", err)
	}

	v := features.NewVector()
	v.Set(calibration.FeatURLLength, 0.8)

	pred, err := clf.Predict(v)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(pred.Probability-0.9) > 1e-9 {
		t.Fatalf("expected probability 0.9, got %f", pred.Probability)
	}
	if !pred.IsPhishing {
		t.Fatalf("0.9 should cross the verdict threshold %f", VerdictThreshold)
	}
	if math.Abs(pred.Confidence-0.8) > 1e-9 {
		t.Fatalf("expected confidence 0.8, got %f", pred.Confidence)
	}
}

func TestConfidenceIsBoundaryDistance(t *testing.T) {
	cases := []struct{ p, want float64 }{
		{0.5, 0},
		{0.0, 1},
		{1.0, 1},
		{0.75, 0.5},
		{0.25, 0.5},
	}
	for _, tc := range cases {
		if got := confidence(tc.p); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("confidence(%f) = %f, want %f", tc.p, got, tc.want)
		}
	}
}

func TestMissingFeaturesDefaultToZeroOnlyAtModelInput(t *testing.T) {
	path := writeArtifact(t, stumpModel(0.2, 0.8))
	clf, err := NewClassifier(path, nil)
	if err != nil {
		t.Fatalf("load classifier: %v", err)
	}

	// Empty vector: the split feature defaults to 0 and takes the low
	// branch.
	pred, err := clf.Predict(features.NewVector())
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if math.Abs(pred.Probability-0.2) > 1e-9 {
		t.Fatalf("expected 0.2 on the low branch, got %f", pred.Probability)
	}
	if pred.IsPhishing {
		t.Fatalf("low branch should not label phishing")
	}
}

func TestTopContributionsRankedAndCapped(t *testing.T) {
	path := writeArtifact(t, stumpModel(0.1, 0.9))
	clf, err := NewClassifier(path, nil)
	if err != nil {
		t.Fatalf("load classifier: %v", err)
	}

	v := features.NewVector()
	for _, name := range calibration.ModelFeatureOrder {
		v.Set(name, 1)
	}
	pred, err := clf.Predict(v)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if len(pred.TopContributions) != 5 {
		t.Fatalf("expected top 5 contributions, got %d", len(pred.TopContributions))
	}
	for i := 1; i < len(pred.TopContributions); i++ {
		if pred.TopContributions[i].Impact > pred.TopContributions[i-1].Impact {
			t.Fatalf("contributions not sorted by impact: %+v", pred.TopContributions)
		}
	}
	// externalFormAction carries the largest static importance.
	if pred.TopContributions[0].Feature != calibration.FeatExternalFormAction {
		t.Fatalf("expected externalFormAction first, got %s", pred.TopContributions[0].Feature)
	}
}

func TestNilClassifierIsNotReady(t *testing.T) {
	var clf *Classifier
	if clf.IsReady() {
		t.Fatalf("nil classifier must report not ready")
	}
}

func TestLoadModelRejectsBadArtifacts(t *testing.T) {
	cases := []struct {
		name  string
		model Model
	}{
		{"wrong schema", Model{SchemaVersion: 99, FeatureOrder: []string{"a"}, Trees: []Tree{{Nodes: []Node{{Leaf: true}}}}}},
		{"no trees", Model{SchemaVersion: 1, FeatureOrder: []string{"a"}}},
		{"empty feature order", Model{SchemaVersion: 1, Trees: []Tree{{Nodes: []Node{{Leaf: true}}}}}},
		{"feature index out of range", Model{
			SchemaVersion: 1,
			FeatureOrder:  []string{"a"},
			Trees:         []Tree{{Nodes: []Node{{FeatureIndex: 7, Left: 0, Right: 0}}}},
		}},
	}
	for _, tc := range cases {
		path := writeArtifact(t, tc.model)
		if _, err := LoadModel(path); err == nil {
			t.Fatalf("%s: expected load error", tc.name)
		}
	}
}

func TestAutoDetectedReturnsNilWithoutArtifact(t *testing.T) {
	t.Setenv("PHISHGUARD_MODEL_PATH", filepath.Join(t.TempDir(), "missing.json"))
	if clf := NewAutoDetected(nil); clf != nil {
		t.Fatalf("expected nil classifier when no artifact exists")
	}
}
