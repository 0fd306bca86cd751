package detect

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/page"
)

// HotReporter receives an immediate out-of-band report when a recorded
// event detects a pattern whose severity exceeds the calibrated hot
// threshold. Periodic reporting still happens through Snapshot.
type HotReporter func(pattern string, snapshot SignalResult)

// BehaviorScorer is the stateful accumulator over runtime observations
// for a single navigation. It maintains the fixed pattern catalog,
// deduplicates detail strings per detected pattern, and scores with the
// severity-weighted sophistication formula.
//
// One scorer instance covers exactly one (tab, navigation token); the
// engine discards it when the tab navigates away.
type BehaviorScorer struct {
	calib    *calibration.Table
	reporter HotReporter

	mu          sync.Mutex
	details     map[string][]string // pattern type -> deduped details, in arrival order
	historyHits []time.Time
	popupHits   []time.Time

	lastSensitiveFocus time.Time
	interactionHits    int
}

// NewBehaviorScorer returns an empty accumulator. reporter may be nil.
func NewBehaviorScorer(calib *calibration.Table, reporter HotReporter) *BehaviorScorer {
	if calib == nil {
		calib = calibration.Default()
	}
	return &BehaviorScorer{
		calib:    calib,
		reporter: reporter,
		details:  make(map[string][]string),
	}
}

// Record consumes one observation. Unknown event types are ignored:
// the instrumentation collaborator may grow new observations before the
// scorer learns to use them.
func (s *BehaviorScorer) Record(ev page.ObservedEvent) {
	s.mu.Lock()
	var detected []string

	switch ev.Type {
	case page.EventFormActionChanged:
		if ev.CrossDomain {
			if s.addDetail(calibration.PatternFormHijacking, fmt.Sprintf("form action rewritten to %s", ev.Detail)) {
				detected = append(detected, calibration.PatternFormHijacking)
			}
		}

	case page.EventInputHandlerAdded:
		if s.looksLikeTransmission(ev.Detail) {
			if s.addDetail(calibration.PatternKeyLogging, "password field handler with outbound transmission") {
				detected = append(detected, calibration.PatternKeyLogging)
			}
		}

	case page.EventSensitiveFocus:
		s.lastSensitiveFocus = ev.Timestamp

	case page.EventOutboundRequest:
		if ev.CrossDomain && !s.lastSensitiveFocus.IsZero() &&
			ev.Timestamp.Sub(s.lastSensitiveFocus) >= 0 &&
			ev.Timestamp.Sub(s.lastSensitiveFocus) <= s.calib.Behavior.ExfilWindow {
			s.interactionHits++
			if s.addDetail(calibration.PatternKeyLogging, fmt.Sprintf("outbound call to %s after sensitive input", ev.Detail)) {
				detected = append(detected, calibration.PatternKeyLogging)
			}
		}

	case page.EventCookieAccess:
		if s.looksLikeCookieTheft(ev.Detail) {
			if s.addDetail(calibration.PatternCookieTheft, "script reads session cookies") {
				detected = append(detected, calibration.PatternCookieTheft)
			}
		}

	case page.EventHistoryChange:
		s.historyHits = pruneWindow(append(s.historyHits, ev.Timestamp), s.calib.Behavior.RedirectBurstWindow)
		if len(s.historyHits) >= s.calib.Behavior.RedirectBurstCount {
			if s.addDetail(calibration.PatternRedirectChain, fmt.Sprintf("%d rapid URL changes", len(s.historyHits))) {
				detected = append(detected, calibration.PatternRedirectChain)
			}
		}

	case page.EventIframeInserted:
		if s.addDetail(calibration.PatternInvisibleIframes, ev.Detail) {
			detected = append(detected, calibration.PatternInvisibleIframes)
		}

	case page.EventPopupOpened:
		s.popupHits = pruneWindow(append(s.popupHits, ev.Timestamp), s.calib.Behavior.PopupBurstWindow)
		if len(s.popupHits) >= s.calib.Behavior.PopupBurstCount {
			if s.addDetail(calibration.PatternPopupAbuse, fmt.Sprintf("%d rapid popups", len(s.popupHits))) {
				detected = append(detected, calibration.PatternPopupAbuse)
			}
		}

	case page.EventUnloadHandlerAdded:
		detail := "navigation handler registered"
		if ev.ReturnsValue {
			detail = "navigation-blocking handler returns a value"
		}
		if s.addDetail(calibration.PatternEventBlockers, detail) {
			detected = append(detected, calibration.PatternEventBlockers)
		}
	}

	hot := s.hotPatterns(detected)
	var snapshot SignalResult
	if len(hot) > 0 {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	// Reporter runs outside the lock: it may re-enter the engine.
	if s.reporter != nil {
		for _, p := range hot {
			s.reporter(p, snapshot)
		}
	}
}

// RecordAll consumes a batch of observations.
func (s *BehaviorScorer) RecordAll(events []page.ObservedEvent) {
	for _, ev := range events {
		s.Record(ev)
	}
}

// Snapshot computes the current behavior signal.
//
// Per detected type: weight * (0.7 + 0.3*min(detailCount/2, 1)) * 100.
// Types are summed, then multiplied by (1 + 0.1*(typeCount-1)) when more
// than one distinct pattern type was detected, and capped at 100. The
// score never decreases as new distinct pattern types are detected.
func (s *BehaviorScorer) Snapshot() SignalResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *BehaviorScorer) snapshotLocked() SignalResult {
	result := SignalResult{Source: SourceBehavior}

	types := 0
	sum := 0.0
	for _, pattern := range behaviorPatternOrder {
		det := s.details[pattern]
		if len(det) == 0 {
			continue
		}
		types++
		sum += s.patternScore(pattern, len(det))
		result.AddIndicator(fmt.Sprintf("%s: %s", pattern, det[0]))
	}
	if types > 1 {
		sum *= 1 + 0.1*float64(types-1)
	}
	if sum > 100 {
		sum = 100
	}
	result.Score = sum
	if types > 0 {
		// More corroborating detail means more trust in the signal.
		result.Confidence = 0.5 + 0.1*float64(types)
		if result.Confidence > 0.95 {
			result.Confidence = 0.95
		}
	}
	return result
}

// InteractionScore reports the sub-signal for events correlated with
// sensitive-field interaction. ok is false when no such events were seen.
func (s *BehaviorScorer) InteractionScore() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interactionHits == 0 {
		return 0, false
	}
	score := s.patternScore(calibration.PatternKeyLogging, s.interactionHits)
	if score > 100 {
		score = 100
	}
	return score, true
}

func (s *BehaviorScorer) patternScore(pattern string, detailCount int) float64 {
	weight := s.calib.Behavior.Weights[pattern]
	density := float64(detailCount) / 2.0
	if density > 1 {
		density = 1
	}
	return weight * (0.7 + 0.3*density) * 100
}

// addDetail records a deduplicated detail, reporting whether it was new.
func (s *BehaviorScorer) addDetail(pattern, detail string) bool {
	for _, existing := range s.details[pattern] {
		if existing == detail {
			return false
		}
	}
	s.details[pattern] = append(s.details[pattern], detail)
	return true
}

// hotPatterns filters newly-detected patterns down to those above the
// immediate-report severity threshold.
func (s *BehaviorScorer) hotPatterns(detected []string) []string {
	var hot []string
	for _, p := range detected {
		if s.calib.Behavior.Weights[p] > s.calib.Behavior.HotWeight {
			hot = append(hot, p)
		}
	}
	return hot
}

func (s *BehaviorScorer) looksLikeTransmission(handlerSrc string) bool {
	lower := strings.ToLower(handlerSrc)
	for _, hint := range s.calib.Phrases.TransmissionHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func (s *BehaviorScorer) looksLikeCookieTheft(src string) bool {
	lower := strings.ToLower(src)
	for _, hint := range s.calib.Phrases.CookieAccessHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// behaviorPatternOrder fixes indicator ordering for deterministic output.
var behaviorPatternOrder = []string{
	calibration.PatternFormHijacking,
	calibration.PatternKeyLogging,
	calibration.PatternRedirectChain,
	calibration.PatternCookieTheft,
	calibration.PatternInvisibleIframes,
	calibration.PatternPopupAbuse,
	calibration.PatternEventBlockers,
}

func pruneWindow(hits []time.Time, window time.Duration) []time.Time {
	if len(hits) == 0 {
		return hits
	}
	newest := hits[len(hits)-1]
	kept := hits[:0]
	for _, t := range hits {
		if newest.Sub(t) <= window {
			kept = append(kept, t)
		}
	}
	return kept
}
