// Package detect implements the local scorers: deterministic content
// rules, text pattern signals, and the stateful runtime behavior
// accumulator. Every scorer produces the same SignalResult shape so the
// fusion engine can combine whatever subset happens to be available.
package detect

// Source identifies which scorer produced a signal.
type Source string

const (
	SourceRule     Source = "rule"
	SourceText     Source = "text"
	SourceBehavior Source = "behavior"
	SourceML       Source = "ml"
)

// SignalResult is the common output shape of every scorer.
type SignalResult struct {
	// Score is the scorer's risk estimate on the common 0-100 scale.
	Score float64 `json:"score"`

	// Indicators are human-readable reasons contributing to the score.
	Indicators []string `json:"indicators,omitempty"`

	// Confidence, when non-zero, is how much the scorer trusts its own
	// score (0-1). Zero means the scorer does not model confidence.
	Confidence float64 `json:"confidence,omitempty"`

	Source Source `json:"source"`
}

// AddIndicator appends a reason, skipping duplicates.
func (s *SignalResult) AddIndicator(indicator string) {
	for _, existing := range s.Indicators {
		if existing == indicator {
			return
		}
	}
	s.Indicators = append(s.Indicators, indicator)
}

// Capped returns the score clamped to [0,100].
func (s *SignalResult) Capped() float64 {
	if s.Score < 0 {
		return 0
	}
	if s.Score > 100 {
		return 100
	}
	return s.Score
}
