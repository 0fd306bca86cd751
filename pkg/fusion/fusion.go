// Package fusion combines whichever scorer signals are currently
// available, plus the authoritative external verdict, into one calibrated
// RiskAssessment.
//
// Three strategies apply depending on signal availability, and the engine
// supports incremental recomputation as later signals arrive for the same
// navigation. Scores may legitimately move in either direction across
// recomputations, since a cautious heuristic can turn out to be a false alarm.
// The single exception is the authoritative override: a confirmed-unsafe
// external verdict pins the assessment at 100 and is sticky for the
// remainder of the navigation.
package fusion

import (
	"fmt"
	"math"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/detect"
	"github.com/brightfort/phishguard/pkg/ml"
	"github.com/brightfort/phishguard/pkg/oracle"
)

// Strategy names recorded on the assessment for observability.
const (
	StrategyBaseline     = "baseline"
	StrategyMLAugmented  = "ml_augmented"
	StrategySessionFused = "session_fused"
)

// RiskAssessment is the engine's single output shape.
type RiskAssessment struct {
	URL             string             `json:"url"`
	CombinedScore   int                `json:"combinedScore"`
	IsPhishing      bool               `json:"isPhishing"`
	Indicators      []string           `json:"indicators,omitempty"`
	SourceBreakdown map[string]float64 `json:"sourceBreakdown,omitempty"`

	// Fallback marks degraded assessments: the oracle or a configured ML
	// layer was unavailable and local fusion carried the verdict alone.
	Fallback bool `json:"fallback"`

	// Authoritative marks an oracle-unsafe override; once set it is
	// sticky for the navigation and later recomputations keep it.
	Authoritative bool   `json:"authoritative,omitempty"`
	ThreatType    string `json:"threatType,omitempty"`
	Strategy      string `json:"strategy,omitempty"`
}

// Suspicious reports whether the score sits in the warn band.
func (a *RiskAssessment) Suspicious(calib *calibration.Table) bool {
	return !a.IsPhishing && a.CombinedScore >= calib.Fusion.SuspiciousThreshold
}

// Input carries whatever signals exist at recomputation time. Nil
// pointers mean "no opinion", which is different from a zero score.
type Input struct {
	URL string

	Rule     *detect.SignalResult
	Text     *detect.SignalResult
	Behavior *detect.SignalResult

	// InteractionScore is the behavior sub-signal for events correlated
	// with sensitive-field interaction; nil falls back to the behavior
	// score in the session-fused strategy.
	InteractionScore *float64

	// ML is the classifier prediction; nil when unavailable.
	ML *ml.Prediction
	// MLConfigured records that an ML layer exists, so a nil ML marks a
	// degraded (fallback) assessment rather than an unconfigured one.
	MLConfigured bool
	// MLSkipped records that a ready classifier was deliberately not run
	// because the scan had no content features. A skip is not
	// degradation and does not mark the assessment as fallback.
	MLSkipped bool

	Oracle oracle.Result
	// OracleConfigured mirrors MLConfigured for the external verdict.
	OracleConfigured bool

	// PriorAuthoritative carries the sticky override from an earlier
	// recomputation within the same navigation.
	PriorAuthoritative bool
	PriorThreatType    string
}

// Engine fuses signals against one calibration table. Stateless; the
// per-navigation stickiness lives in the tab state and flows back in
// through Input.PriorAuthoritative.
type Engine struct {
	calib *calibration.Table
}

// NewEngine returns a fusion engine bound to a calibration table.
func NewEngine(calib *calibration.Table) *Engine {
	if calib == nil {
		calib = calibration.Default()
	}
	return &Engine{calib: calib}
}

// Fuse computes the assessment for the currently-available signal set.
func (e *Engine) Fuse(in Input) RiskAssessment {
	a := RiskAssessment{
		URL:             in.URL,
		SourceBreakdown: make(map[string]float64),
	}

	a.Fallback = (in.OracleConfigured && !in.Oracle.Available()) ||
		(in.MLConfigured && !in.MLSkipped && in.ML == nil)

	score := e.combine(in, &a)

	// Authoritative override: confirmed-unsafe beats every local signal,
	// and once applied it never unwinds within the navigation.
	if in.Oracle.Unsafe() || in.PriorAuthoritative {
		a.Authoritative = true
		a.ThreatType = in.PriorThreatType
		if in.Oracle.Unsafe() && in.Oracle.Verdict.ThreatType != "" {
			a.ThreatType = in.Oracle.Verdict.ThreatType
		}
		if a.ThreatType != "" {
			prependIndicator(&a, a.ThreatType)
			prependIndicator(&a, fmt.Sprintf("confirmed unsafe by external verdict (%s)", a.ThreatType))
		} else {
			prependIndicator(&a, "confirmed unsafe by external verdict")
		}
		score = 100
	}

	a.CombinedScore = clampScore(score)
	a.IsPhishing = a.Authoritative || a.CombinedScore >= e.calib.Fusion.PhishingThreshold
	return a
}

// combine picks the fusion strategy from signal availability and returns
// the pre-override combined score.
func (e *Engine) combine(in Input, a *RiskAssessment) float64 {
	w := e.calib.Fusion

	if in.Rule != nil {
		a.SourceBreakdown["rule"] = in.Rule.Capped()
		mergeIndicators(a, in.Rule.Indicators)
	}
	if in.Text != nil {
		a.SourceBreakdown["text"] = in.Text.Capped()
		mergeIndicators(a, in.Text.Indicators)
	}
	if in.Behavior != nil {
		a.SourceBreakdown["behavior"] = in.Behavior.Capped()
		mergeIndicators(a, in.Behavior.Indicators)
	}
	if in.ML != nil {
		a.SourceBreakdown["ml"] = in.ML.Probability * 100
		if in.ML.IsPhishing {
			mergeIndicators(a, []string{fmt.Sprintf("classifier flagged page (p=%.2f)", in.ML.Probability)})
		}
	}

	// Session-fused: behavior/text signals exist client-side.
	if in.Text != nil || in.Behavior != nil {
		a.Strategy = StrategySessionFused
		type part struct {
			weight, score float64
		}
		var parts []part
		if in.Text != nil {
			parts = append(parts, part{w.TextWeight, in.Text.Capped()})
		}
		if in.Behavior != nil {
			behaviorScore := in.Behavior.Capped()
			parts = append(parts, part{w.BehaviorWeight, behaviorScore})
			interaction := behaviorScore
			if in.InteractionScore != nil {
				interaction = *in.InteractionScore
			}
			parts = append(parts, part{w.InteractionWeight, interaction})
		}
		// Renormalize over the available sub-signals; with all three
		// present the weights already sum to 1 and this is the plain
		// text*0.4 + behavior*0.35 + interaction*0.25 combination.
		sum, wsum := 0.0, 0.0
		for _, p := range parts {
			sum += p.weight * p.score
			wsum += p.weight
		}
		if wsum == 0 {
			return 0
		}
		return math.Round(sum / wsum)
	}

	// ML-augmented: classifier plus deterministic rules.
	if in.ML != nil {
		a.Strategy = StrategyMLAugmented
		ruleScore := 0.0
		ruleWeight := 0.0
		if in.Rule != nil {
			ruleScore = in.Rule.Capped()
			ruleWeight = w.RuleWeight
		}
		mlScore := in.ML.Probability * 100
		return math.Round((mlScore*w.MLWeight + ruleScore*ruleWeight) / (w.MLWeight + ruleWeight))
	}

	// Baseline: oracle plus rules only.
	a.Strategy = StrategyBaseline
	if in.Rule != nil {
		return math.Round(in.Rule.Capped())
	}
	return 0
}

func mergeIndicators(a *RiskAssessment, indicators []string) {
	for _, ind := range indicators {
		dup := false
		for _, existing := range a.Indicators {
			if existing == ind {
				dup = true
				break
			}
		}
		if !dup {
			a.Indicators = append(a.Indicators, ind)
		}
	}
}

func prependIndicator(a *RiskAssessment, indicator string) {
	for _, existing := range a.Indicators {
		if existing == indicator {
			return
		}
	}
	a.Indicators = append([]string{indicator}, a.Indicators...)
}

func clampScore(s float64) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return int(math.Round(s))
}
