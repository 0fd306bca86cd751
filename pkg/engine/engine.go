// Package engine wires the scorers, the classifier, the verdict oracle,
// and the per-tab state machine into one explicitly-owned context. There
// are no package-level registries: every cache and table lives on the
// Engine, constructed at service start and torn down with Close.
package engine

import (
	"context"
	"log"
	"net/url"
	"sync"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/detect"
	"github.com/brightfort/phishguard/pkg/features"
	"github.com/brightfort/phishguard/pkg/fusion"
	"github.com/brightfort/phishguard/pkg/ml"
	"github.com/brightfort/phishguard/pkg/oracle"
	"github.com/brightfort/phishguard/pkg/page"
	"github.com/brightfort/phishguard/pkg/tabstate"
	"github.com/brightfort/phishguard/pkg/telemetry"
)

// Options configures an Engine. Nil collaborators are allowed and
// disable the corresponding layer.
type Options struct {
	Calibration *calibration.Table
	Classifier  *ml.Classifier
	Oracle      *oracle.Client
	Alerter     tabstate.Alerter
	Telemetry   *telemetry.Client
}

// Engine is the risk engine context: the single owner of all mutable
// scan state. Safe for concurrent use.
type Engine struct {
	calib     *calibration.Table
	extractor *features.Extractor
	rules     *detect.ContentRuleScorer
	text      *detect.TextSignalScorer
	clf       *ml.Classifier
	oracle    *oracle.Client
	fuser     *fusion.Engine
	tabs      *tabstate.Manager
	known     *tabstate.KnownURLCache
	tel       *telemetry.Client

	mu       sync.Mutex
	sessions map[string]*session // tabID -> current navigation's session
}

// session carries the per-navigation scan context: the behavior
// accumulator plus the most recent page-scan signals, so event-driven
// recomputation can re-fuse without rescanning the page.
type session struct {
	token    string
	url      string
	behavior *detect.BehaviorScorer

	mu     sync.Mutex
	rule   *detect.SignalResult
	text   *detect.SignalResult
	mlPred *ml.Prediction
	mlSkip bool
	verdct oracle.Result
}

// ScanOutcome reports what a scan or recomputation did.
type ScanOutcome struct {
	Assessment fusion.RiskAssessment `json:"assessment"`
	// Applied is false when the navigation token was stale and the
	// result was discarded.
	Applied    bool `json:"applied"`
	AlertFired bool `json:"alertFired"`
	// CacheHit marks a short-circuit from the known-URL cache.
	CacheHit bool            `json:"cacheHit,omitempty"`
	Status   tabstate.Status `json:"status,omitempty"`
}

// New constructs an engine from options.
func New(opts Options) *Engine {
	calib := opts.Calibration
	if calib == nil {
		calib = calibration.Default()
	}
	return &Engine{
		calib:     calib,
		extractor: features.NewExtractor(calib),
		rules:     detect.NewContentRuleScorer(calib),
		text:      detect.NewTextSignalScorer(calib),
		clf:       opts.Classifier,
		oracle:    opts.Oracle,
		fuser:     fusion.NewEngine(calib),
		tabs:      tabstate.NewManager(calib, opts.Alerter),
		known: tabstate.NewKnownURLCache(tabstate.CacheCaps{
			Phishing:   calib.Cache.Phishing,
			Suspicious: calib.Cache.Suspicious,
			Safe:       calib.Cache.Safe,
		}),
		tel:      opts.Telemetry,
		sessions: make(map[string]*session),
	}
}

// Navigate registers a page load for the tab and returns the navigation
// token that tags every scoring job for this load. The previous load's
// session, including its behavior accumulator, is discarded.
func (e *Engine) Navigate(tabID, rawURL string) string {
	token := e.tabs.Navigate(tabID, rawURL)

	s := &session{token: token, url: rawURL}
	s.behavior = detect.NewBehaviorScorer(e.calib, func(pattern string, snapshot detect.SignalResult) {
		e.tel.Incr("behavior.hot_report")
		log.Printf("[WARN] hot behavior report for tab %s: %s (score %.0f)", tabID, pattern, snapshot.Score)
		e.recompute(context.Background(), tabID, token)
	})

	e.mu.Lock()
	e.sessions[tabID] = s
	e.mu.Unlock()

	e.tel.Incr("engine.navigate")
	return token
}

// ScanPage runs the full scan pipeline for a page load: known-URL
// short-circuit, feature extraction, local scorers, classifier, oracle,
// fusion, and state application. Results tagged with a stale navigation
// token are discarded rather than applied to the new page's state.
func (e *Engine) ScanPage(ctx context.Context, tabID, token, rawURL string, content *page.Content) ScanOutcome {
	e.tel.Incr("engine.scan")

	domain := scanDomain(rawURL)
	if status, ok := e.known.Lookup(rawURL, domain); ok {
		e.tel.Incr("engine.cache_hit")
		return e.applyCached(tabID, token, rawURL, status)
	}

	s := e.currentSession(tabID, token)

	vec := e.extractor.Extract(rawURL, content)

	ruleSig := e.runScorer("rule", func() detect.SignalResult {
		return e.rules.Score(rawURL, content)
	})
	var textSig *detect.SignalResult
	if content != nil {
		textSig = e.runScorer("text", func() detect.SignalResult {
			return e.text.Score(rawURL, content)
		})
	}

	var pred *ml.Prediction
	mlSkipped := false
	if e.clf.IsReady() {
		if !vec.HasContentFeatures() {
			// A URL-only scan has nothing for the model; that is a skip,
			// not a degraded assessment.
			mlSkipped = true
		} else if p, err := e.clf.Predict(vec); err == nil {
			pred = &p
		} else {
			log.Printf("[WARN] classifier prediction failed for %s: %v", rawURL, err)
		}
	}

	var verdict oracle.Result
	if e.oracle != nil {
		verdict = e.oracle.Check(ctx, rawURL)
	} else {
		verdict = oracle.Result{Source: "unavailable"}
	}

	if s != nil {
		s.mu.Lock()
		s.rule = ruleSig
		s.text = textSig
		s.mlPred = pred
		s.mlSkip = mlSkipped
		s.verdct = verdict
		s.mu.Unlock()
	}

	return e.fuseAndApply(tabID, token, rawURL, ruleSig, textSig, nil, nil, pred, mlSkipped, verdict)
}

// RecordEvents feeds runtime observations into the navigation's behavior
// accumulator and re-fuses the assessment with the new behavior signal.
// Events tagged with a stale token are dropped.
func (e *Engine) RecordEvents(ctx context.Context, tabID, token string, events []page.ObservedEvent) ScanOutcome {
	s := e.currentSession(tabID, token)
	if s == nil {
		return ScanOutcome{}
	}
	e.tel.Add("engine.events", int64(len(events)))
	s.behavior.RecordAll(events)
	return e.recompute(ctx, tabID, token)
}

// TabStatus returns the current state snapshot for a tab.
func (e *Engine) TabStatus(tabID string) (tabstate.TabState, bool) {
	return e.tabs.Status(tabID)
}

// CloseTab discards all state for the tab, including its behavior
// accumulator.
func (e *Engine) CloseTab(tabID string) {
	e.tabs.CloseTab(tabID)
	e.mu.Lock()
	delete(e.sessions, tabID)
	e.mu.Unlock()
}

// Reset drops all tabs, sessions, and known-URL entries. The calibration
// table and collaborators survive.
func (e *Engine) Reset() {
	e.tabs.Reset()
	e.known.Clear()
	e.mu.Lock()
	e.sessions = make(map[string]*session)
	e.mu.Unlock()
}

// Close tears the engine down.
func (e *Engine) Close() {
	e.Reset()
}

// Telemetry exposes the counter snapshot for the health endpoint.
func (e *Engine) Telemetry() map[string]int64 {
	return e.tel.Snapshot()
}

// recompute rebuilds the fused assessment from the session's stored
// signals plus the current behavior snapshot.
func (e *Engine) recompute(ctx context.Context, tabID, token string) ScanOutcome {
	s := e.currentSession(tabID, token)
	if s == nil {
		return ScanOutcome{}
	}

	behaviorSig := s.behavior.Snapshot()
	var interaction *float64
	if score, ok := s.behavior.InteractionScore(); ok {
		interaction = &score
	}

	s.mu.Lock()
	ruleSig, textSig, pred, mlSkipped, verdict := s.rule, s.text, s.mlPred, s.mlSkip, s.verdct
	s.mu.Unlock()

	return e.fuseAndApply(tabID, token, s.url, ruleSig, textSig, &behaviorSig, interaction, pred, mlSkipped, verdict)
}

func (e *Engine) fuseAndApply(tabID, token, rawURL string, rule, text, behavior *detect.SignalResult,
	interaction *float64, pred *ml.Prediction, mlSkipped bool, verdict oracle.Result) ScanOutcome {

	priorAuth, priorThreat := e.tabs.Prior(tabID, token)

	assessment := e.fuser.Fuse(fusion.Input{
		URL:                rawURL,
		Rule:               rule,
		Text:               text,
		Behavior:           behavior,
		InteractionScore:   interaction,
		ML:                 pred,
		MLConfigured:       e.clf.IsReady(),
		MLSkipped:          mlSkipped,
		Oracle:             verdict,
		OracleConfigured:   e.oracle != nil,
		PriorAuthoritative: priorAuth,
		PriorThreatType:    priorThreat,
	})

	applied, alertFired := e.tabs.Apply(tabID, token, assessment)
	out := ScanOutcome{Assessment: assessment, Applied: applied, AlertFired: alertFired}
	if !applied {
		e.tel.Incr("engine.stale_discard")
		return out
	}

	if st, ok := e.tabs.Status(tabID); ok {
		out.Status = st.Status
		e.known.Record(st.Status, rawURL, scanDomain(rawURL))
	}
	if alertFired {
		e.tel.Incr("engine.alert")
	}
	return out
}

// applyCached turns a known-URL cache hit into an assessment without
// running the scorers.
func (e *Engine) applyCached(tabID, token, rawURL string, status tabstate.Status) ScanOutcome {
	a := fusion.RiskAssessment{URL: rawURL, Strategy: "cached"}
	switch status {
	case tabstate.StatusDanger:
		a.CombinedScore = 100
		a.IsPhishing = true
		a.Indicators = []string{"previously confirmed phishing"}
	case tabstate.StatusSuspicious:
		a.CombinedScore = e.calib.Fusion.SuspiciousThreshold
		a.Indicators = []string{"previously flagged suspicious"}
	case tabstate.StatusSafe:
		a.Indicators = []string{"previously verified safe"}
	}

	applied, alertFired := e.tabs.Apply(tabID, token, a)
	out := ScanOutcome{Assessment: a, Applied: applied, AlertFired: alertFired, CacheHit: true}
	if applied {
		if st, ok := e.tabs.Status(tabID); ok {
			out.Status = st.Status
		}
	}
	return out
}

// runScorer isolates a scorer panic so one failing scorer never keeps
// the others' signals from reaching fusion.
func (e *Engine) runScorer(name string, fn func() detect.SignalResult) (sig *detect.SignalResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] %s scorer panicked, continuing without its signal: %v", name, r)
			e.tel.Incr("engine.scorer_panic")
			sig = nil
		}
	}()
	result := fn()
	return &result
}

// currentSession returns the tab's session iff the token is current.
func (e *Engine) currentSession(tabID, token string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[tabID]
	if !ok || s.token != token {
		return nil
	}
	return s
}

func scanDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return features.RegistrableDomain(u.Hostname())
}
