package detect

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/features"
	"github.com/brightfort/phishguard/pkg/page"
)

// TextSignalScorer runs four independent pattern sub-detectors over a
// single lowercase corpus aggregated from the page's visible text. Each
// sub-detector contributes a fixed increment when triggered; the final
// score is capped at 100.
type TextSignalScorer struct {
	calib *calibration.Table
}

// NewTextSignalScorer returns a text scorer bound to a calibration table.
func NewTextSignalScorer(calib *calibration.Table) *TextSignalScorer {
	if calib == nil {
		calib = calibration.Default()
	}
	return &TextSignalScorer{calib: calib}
}

// Score builds the corpus and evaluates the sub-detectors.
func (s *TextSignalScorer) Score(rawURL string, content *page.Content) SignalResult {
	result := SignalResult{Source: SourceText}
	if content == nil {
		return result
	}

	corpus := BuildCorpus(content)
	title := strings.ToLower(content.Title)
	cfg := s.calib.Text

	if n, sample := countDistinctPhrases(corpus, s.calib.Phrases.Urgency); n >= cfg.UrgencyMinMatches {
		result.Score += cfg.UrgencyPoints
		result.AddIndicator(fmt.Sprintf("urgency language (%d phrases, e.g. %q)", n, sample))
	}

	if n, sample := countDistinctPhrases(corpus, s.calib.Phrases.SecurityClaims); n >= cfg.ClaimMinMatches {
		result.Score += cfg.ClaimPoints
		result.AddIndicator(fmt.Sprintf("excessive security claims (%d phrases, e.g. %q)", n, sample))
	}

	if brand, detail, ok := s.brandMismatch(rawURL, title, corpus); ok {
		result.Score += cfg.BrandPoints
		result.AddIndicator(fmt.Sprintf("mentions %s but hosted on unrelated domain%s", brand, detail))
	}

	if weight := s.grammarWeight(corpus); weight >= cfg.GrammarTriggerWeight {
		result.Score += cfg.GrammarPoints
		result.AddIndicator(fmt.Sprintf("poor language quality (weight %.1f)", weight))
	}

	if result.Score > 100 {
		result.Score = 100
	}
	result.Confidence = textConfidence(result.Score, len(result.Indicators), len(corpus))
	return result
}

// BuildCorpus aggregates title, meta description, text sample, visible
// link text, and form label/placeholder/id/name strings into one
// lowercase NFKC-normalized corpus.
func BuildCorpus(content *page.Content) string {
	var b strings.Builder
	add := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	add(content.Title)
	add(content.MetaDescription)
	add(content.TextSample)
	for _, l := range content.Links {
		add(l.Text)
	}
	for _, f := range content.Forms {
		for _, label := range f.Labels {
			add(label)
		}
	}
	return norm.NFKC.String(strings.ToLower(b.String()))
}

// countDistinctPhrases counts how many distinct phrases from the list
// appear in the corpus and returns the first match as a sample.
func countDistinctPhrases(corpus string, phrases []string) (int, string) {
	n := 0
	sample := ""
	for _, p := range phrases {
		if strings.Contains(corpus, p) {
			if n == 0 {
				sample = p
			}
			n++
		}
	}
	return n, sample
}

// brandMismatch fires when a known brand is named in the title, or at
// least BrandTextMinMentions times in the corpus, while the page domain
// is neither one of the brand's legitimate domains nor a typosquat-safe
// exact match. Near-miss domains (Levenshtein similarity above the
// calibrated threshold) get flagged in the indicator detail.
func (s *TextSignalScorer) brandMismatch(rawURL, title, corpus string) (string, string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	pageDomain := features.RegistrableDomain(u.Hostname())

	for _, brand := range s.calib.BrandNames() {
		domains := s.calib.BrandDomains(brand)
		mentioned := strings.Contains(title, brand) ||
			strings.Count(corpus, brand) >= s.calib.Text.BrandTextMinMentions
		if !mentioned || domainInSet(pageDomain, domains) {
			continue
		}

		detail := ""
		for _, legit := range domains {
			if sim := levenshteinSimilarity(pageDomain, legit); sim > s.calib.Text.TyposquatSimilarity && sim < 100 {
				detail = fmt.Sprintf(" (%.0f%% similar to %s)", sim, legit)
				break
			}
		}
		return brand, detail, true
	}
	return "", "", false
}

// grammarWeight sums weighted phrase hits with two readability
// heuristics: suspiciously choppy text (average sentence under 10 chars
// across more than 3 sentences) and run-on sentences (over 25 words).
func (s *TextSignalScorer) grammarWeight(corpus string) float64 {
	weight := 0.0
	for _, wp := range s.calib.Phrases.PoorGrammar {
		if strings.Contains(corpus, wp.Phrase) {
			weight += wp.Weight
		}
	}

	sentences := splitSentences(corpus)
	if len(sentences) > 3 {
		total := 0
		for _, sent := range sentences {
			total += len(sent)
		}
		if float64(total)/float64(len(sentences)) < 10 {
			weight += s.calib.Text.GrammarShortSentenceWeight
		}
	}
	for _, sent := range sentences {
		if len(strings.Fields(sent)) > 25 {
			weight += s.calib.Text.GrammarLongSentenceWeight
			break
		}
	}
	return weight
}

func splitSentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// textConfidence derives confidence from score strength, indicator
// density, and how much text there was to judge. Clamped to [0.1, 0.95]
// so the scorer never claims certainty either way.
func textConfidence(score float64, indicators, textLen int) float64 {
	ind := float64(indicators)
	if ind > 5 {
		ind = 5
	}
	sizeFactor := float64(textLen) / 500.0
	if sizeFactor > 1 {
		sizeFactor = 1
	}
	c := (score / 100.0) * (0.7 + ind/10.0) * (0.8 + sizeFactor*0.2)
	if c < 0.1 {
		return 0.1
	}
	if c > 0.95 {
		return 0.95
	}
	return c
}

// levenshteinSimilarity returns percent similarity between two strings.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 100
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	return (1.0 - float64(levenshtein(a, b))/float64(maxLen)) * 100
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, minInt(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
