package features

import "github.com/brightfort/phishguard/pkg/calibration"

// Vector is a partial, named feature vector. Every stored value is
// normalized to [0,1]. A feature that was never computed is simply absent,
// which is different from a feature computed as zero; the distinction only
// collapses when the vector is serialized for the model.
type Vector struct {
	values map[string]float64
}

// NewVector returns an empty vector.
func NewVector() Vector {
	return Vector{values: make(map[string]float64)}
}

// Set stores a normalized value, clamping into [0,1] defensively.
func (v Vector) Set(name string, value float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	v.values[name] = value
}

// Get returns the value and whether the feature was computed.
func (v Vector) Get(name string) (float64, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Has reports whether the feature was computed.
func (v Vector) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Len returns the number of computed features.
func (v Vector) Len() int {
	return len(v.values)
}

// Merge copies all features from other into v, overwriting collisions.
func (v Vector) Merge(other Vector) {
	for name, val := range other.values {
		v.values[name] = val
	}
}

// ToModelInput serializes the vector into the given fixed feature order.
// This is the only place a missing feature becomes 0.
func (v Vector) ToModelInput(order []string) []float64 {
	out := make([]float64, len(order))
	for i, name := range order {
		out[i] = v.values[name]
	}
	return out
}

// HasContentFeatures reports whether any content-derived feature was
// computed, i.e. whether page content was available at extraction time.
func (v Vector) HasContentFeatures() bool {
	return v.Has(calibration.FeatFormCount)
}
