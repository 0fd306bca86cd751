// Package calibration is the single source of truth for every tunable in
// the detection pipeline: rule points, phrase lists, brand/domain maps,
// behavior pattern weights, fusion weights, feature normalization ranges,
// model importance weights, and cache capacities.
//
// Design principles:
// - ONE TABLE: scorers never carry literal weights; they receive a *Table
// - VERSIONED: the table carries a version string so golden fixtures can
//   pin the calibration they were tuned against
// - OVERRIDABLE: Load unmarshals a YAML file over the compiled defaults,
//   so a deployment can retune without a rebuild
package calibration

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Range is a per-feature normalization calibration. Raw values are clamped
// into [Min,Max] and linearly scaled to [0,1].
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// RuleWeights holds the point values for the deterministic content rules.
type RuleWeights struct {
	UnencryptedLogin       float64 `yaml:"unencrypted_login"`
	CrossDomainAction      float64 `yaml:"cross_domain_action"`
	LoginWithoutHTTPS      float64 `yaml:"login_without_https"`
	BrandImpersonation     float64 `yaml:"brand_impersonation"`
	UrgencyLanguage        float64 `yaml:"urgency_language"`
	ExcessSecurityClaims   float64 `yaml:"excess_security_claims"`
	ExternalLinkSkew       float64 `yaml:"external_link_skew"`
	MultiplePasswordFields float64 `yaml:"multiple_password_fields"`

	// ExternalLinkSkew fires only above this ratio and link count.
	ExternalLinkRatioThreshold float64 `yaml:"external_link_ratio_threshold"`
	ExternalLinkMinCount       int     `yaml:"external_link_min_count"`
}

// TextWeights holds the increments and trigger counts for the text
// sub-detectors.
type TextWeights struct {
	UrgencyPoints     float64 `yaml:"urgency_points"`
	UrgencyMinMatches int     `yaml:"urgency_min_matches"`

	ClaimPoints     float64 `yaml:"claim_points"`
	ClaimMinMatches int     `yaml:"claim_min_matches"`

	BrandPoints          float64 `yaml:"brand_points"`
	BrandTextMinMentions int     `yaml:"brand_text_min_mentions"`

	GrammarPoints        float64 `yaml:"grammar_points"`
	GrammarTriggerWeight float64 `yaml:"grammar_trigger_weight"`

	// Readability heuristic weights, summed with phrase hits against
	// GrammarTriggerWeight.
	GrammarShortSentenceWeight float64 `yaml:"grammar_short_sentence_weight"`
	GrammarLongSentenceWeight  float64 `yaml:"grammar_long_sentence_weight"`

	// TyposquatSimilarity is the Levenshtein similarity (0-100) above which
	// a domain counts as a near-miss of a legitimate brand domain.
	TyposquatSimilarity float64 `yaml:"typosquat_similarity"`
}

// WeightedPhrase is a grammar-quality phrase with its trigger weight.
type WeightedPhrase struct {
	Phrase string  `yaml:"phrase"`
	Weight float64 `yaml:"weight"`
}

// Phrases holds every phrase list used by the scorers.
type Phrases struct {
	Urgency        []string         `yaml:"urgency"`
	SecurityClaims []string         `yaml:"security_claims"`
	PoorGrammar    []WeightedPhrase `yaml:"poor_grammar"`

	// TransmissionHints flag password-field handler source as exfiltrating.
	TransmissionHints []string `yaml:"transmission_hints"`

	// CookieAccessHints flag cookie setter call sites as session theft.
	CookieAccessHints []string `yaml:"cookie_access_hints"`
}

// BehaviorWeights holds the runtime pattern catalog and burst windows.
type BehaviorWeights struct {
	// Weights maps pattern type name to severity weight in [0,1].
	Weights map[string]float64 `yaml:"weights"`

	RedirectBurstWindow time.Duration `yaml:"redirect_burst_window"`
	RedirectBurstCount  int           `yaml:"redirect_burst_count"`
	PopupBurstWindow    time.Duration `yaml:"popup_burst_window"`
	PopupBurstCount     int           `yaml:"popup_burst_count"`
	ExfilWindow         time.Duration `yaml:"exfil_window"`

	// HotWeight is the severity above which a newly detected pattern
	// triggers an immediate out-of-band report.
	HotWeight float64 `yaml:"hot_weight"`
}

// FusionWeights holds the fusion strategy weights and verdict thresholds.
type FusionWeights struct {
	MLWeight   float64 `yaml:"ml_weight"`
	RuleWeight float64 `yaml:"rule_weight"`

	TextWeight        float64 `yaml:"text_weight"`
	BehaviorWeight    float64 `yaml:"behavior_weight"`
	InteractionWeight float64 `yaml:"interaction_weight"`

	PhishingThreshold   int `yaml:"phishing_threshold"`
	SuspiciousThreshold int `yaml:"suspicious_threshold"`

	// MLVerdictThreshold is the classifier's own labeling threshold,
	// stricter than and distinct from PhishingThreshold.
	MLVerdictThreshold float64 `yaml:"ml_verdict_threshold"`
}

// CacheCaps bounds the three known-URL sets.
type CacheCaps struct {
	Phishing   int `yaml:"phishing"`
	Suspicious int `yaml:"suspicious"`
	Safe       int `yaml:"safe"`
}

// Table is the full declarative calibration table.
type Table struct {
	Version string `yaml:"version"`

	Features map[string]Range `yaml:"features"`
	Rules    RuleWeights      `yaml:"rules"`
	Text     TextWeights      `yaml:"text"`
	Phrases  Phrases          `yaml:"phrases"`

	// Brands maps a lowercase brand name to the set of registrable domains
	// legitimately allowed to carry it.
	Brands map[string][]string `yaml:"brands"`

	Behavior BehaviorWeights `yaml:"behavior"`
	Fusion   FusionWeights   `yaml:"fusion"`

	// MLImportance is the static per-feature importance table used to rank
	// feature contributions; it is calibration, not a per-prediction
	// attribution technique.
	MLImportance map[string]float64 `yaml:"ml_importance"`

	Cache CacheCaps `yaml:"cache"`
}

// Load reads a YAML calibration file over the compiled defaults, so a
// partial file retunes only what it names.
func Load(path string) (*Table, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("parse calibration: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("calibration %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects tables that would make scores undefined.
func (t *Table) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("missing version")
	}
	for name, r := range t.Features {
		if r.Max <= r.Min {
			return fmt.Errorf("feature %q: max (%v) must exceed min (%v)", name, r.Max, r.Min)
		}
	}
	for name, w := range t.Behavior.Weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("behavior weight %q out of [0,1]: %v", name, w)
		}
	}
	if t.Fusion.SuspiciousThreshold > t.Fusion.PhishingThreshold {
		return fmt.Errorf("suspicious threshold %d exceeds phishing threshold %d",
			t.Fusion.SuspiciousThreshold, t.Fusion.PhishingThreshold)
	}
	if t.Cache.Phishing <= 0 || t.Cache.Suspicious <= 0 || t.Cache.Safe <= 0 {
		return fmt.Errorf("cache capacities must be positive")
	}
	return nil
}

// BrandDomains returns the legitimate domain set for a brand, or nil.
func (t *Table) BrandDomains(brand string) []string {
	return t.Brands[brand]
}

// BrandNames returns the brand names in sorted order. Scorers iterate
// this rather than the map, so which brand a multi-brand page reports
// does not depend on map iteration order.
func (t *Table) BrandNames() []string {
	names := make([]string, 0, len(t.Brands))
	for name := range t.Brands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeatureRange returns the normalization range for a feature. Features
// without an explicit range are treated as already-normalized flags.
func (t *Table) FeatureRange(name string) (Range, bool) {
	r, ok := t.Features[name]
	return r, ok
}
