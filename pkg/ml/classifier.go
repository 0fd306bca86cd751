// Package ml wraps the pre-trained phishing ensemble model. The model is
// an offline-trained artifact (fixed 20-feature schema); this package only
// loads and evaluates it. When no artifact is present the classifier
// reports unavailable rather than fabricating a score.
package ml

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/features"
)

// VerdictThreshold is this component's own labeling threshold. It is
// deliberately stricter than the fusion engine's phishing threshold and
// is used only for the classifier's internal label.
const VerdictThreshold = 0.7

// DefaultModelPath is probed when no explicit path is configured.
const DefaultModelPath = "models/ensemble.json"

// Contribution is one feature's share of the prediction, ranked by
// static importance weight times feature value.
type Contribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	Weight  float64 `json:"weight"`
	Impact  float64 `json:"impact"`
}

// Prediction is the classifier output for one feature vector.
type Prediction struct {
	Probability float64 `json:"probability"`
	// Confidence is distance from the decision boundary, scaled to [0,1].
	Confidence float64 `json:"confidence"`
	// IsPhishing is the classifier's own label at VerdictThreshold.
	IsPhishing bool `json:"isPhishing"`
	// TopContributions are the five highest-impact features.
	TopContributions []Contribution `json:"topContributions,omitempty"`
}

// Classifier evaluates the loaded ensemble. Safe for concurrent use;
// the model is immutable after load.
type Classifier struct {
	mu    sync.RWMutex
	model *Model
	calib *calibration.Table
}

// NewClassifier loads the artifact at path. A load failure returns an
// error; callers wanting graceful degradation use NewAutoDetected.
func NewClassifier(path string, calib *calibration.Table) (*Classifier, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	if calib == nil {
		calib = calibration.Default()
	}
	return &Classifier{model: model, calib: calib}, nil
}

// NewAutoDetected probes PHISHGUARD_MODEL_PATH and then the default
// location, returning nil when no usable artifact exists. Callers must
// check IsReady before predicting.
func NewAutoDetected(calib *calibration.Table) *Classifier {
	path := os.Getenv("PHISHGUARD_MODEL_PATH")
	if path == "" {
		path = DefaultModelPath
	}
	c, err := NewClassifier(path, calib)
	if err != nil {
		log.Printf("[WARN] ML classifier unavailable: %v", err)
		return nil
	}
	return c
}

// IsReady reports whether a model is loaded.
func (c *Classifier) IsReady() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// FeatureOrder returns the artifact's fixed serialization order.
func (c *Classifier) FeatureOrder() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model.FeatureOrder
}

// Predict evaluates the ensemble over the vector. The vector is
// serialized using the artifact's own feature order; only here does a
// missing feature default to 0.
func (c *Classifier) Predict(v features.Vector) (Prediction, error) {
	if !c.IsReady() {
		return Prediction{}, fmt.Errorf("classifier unavailable: no model loaded")
	}
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()

	input := v.ToModelInput(model.FeatureOrder)

	sum := 0.0
	for i := range model.Trees {
		sum += model.Trees[i].eval(input)
	}
	p := sum / float64(len(model.Trees))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	pred := Prediction{
		Probability:      p,
		Confidence:       confidence(p),
		IsPhishing:       p >= VerdictThreshold,
		TopContributions: c.topContributions(model.FeatureOrder, input),
	}
	return pred, nil
}

// confidence maps boundary distance onto [0,1]: 0.5 is a coin flip,
// either extreme is certainty.
func confidence(p float64) float64 {
	d := p - 0.5
	if d < 0 {
		d = -d
	}
	return d * 2
}

// topContributions ranks features by static importance weight times
// feature value and keeps the top five. This is calibration-table
// attribution, not a per-prediction explanation technique.
func (c *Classifier) topContributions(order []string, input []float64) []Contribution {
	contribs := make([]Contribution, 0, len(order))
	for i, name := range order {
		w := c.calib.MLImportance[name]
		impact := w * input[i]
		if impact == 0 {
			continue
		}
		contribs = append(contribs, Contribution{
			Feature: name,
			Value:   input[i],
			Weight:  w,
			Impact:  impact,
		})
	}
	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].Impact > contribs[j].Impact
	})
	if len(contribs) > 5 {
		contribs = contribs[:5]
	}
	return contribs
}
