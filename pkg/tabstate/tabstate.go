// Package tabstate tracks per-tab risk state: the navigation lifecycle,
// the alert-once policy, and stale-result rejection for scoring jobs that
// outlive the page they were scanning.
package tabstate

import (
	"sync"

	"github.com/google/uuid"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/fusion"
)

// Status is a tab's position in the risk lifecycle.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusScanning   Status = "scanning"
	StatusSafe       Status = "safe"
	StatusSuspicious Status = "suspicious"
	StatusDanger     Status = "danger"
)

// Alerter is the outward-facing alert collaborator. Implementations must
// tolerate being called from multiple goroutines.
type Alerter interface {
	Alert(tabID string, assessment fusion.RiskAssessment)
}

// AlerterFunc adapts a function to the Alerter interface.
type AlerterFunc func(tabID string, assessment fusion.RiskAssessment)

func (f AlerterFunc) Alert(tabID string, assessment fusion.RiskAssessment) {
	f(tabID, assessment)
}

// TabState is the mutable record for one tab. The navigation token
// distinguishes the current page load from all prior and later loads;
// results tagged with a stale token are discarded, and AlertIssued resets
// whenever the token changes.
type TabState struct {
	TabID           string                 `json:"tabId"`
	NavigationToken string                 `json:"navigationToken"`
	URL             string                 `json:"url"`
	Status          Status                 `json:"status"`
	LastAssessment  *fusion.RiskAssessment `json:"lastAssessment,omitempty"`
	AlertIssued     bool                   `json:"alertIssued"`
}

// Manager owns the per-tab state table and enforces the alert-once and
// stale-token rules. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	calib   *calibration.Table
	alerter Alerter
	tabs    map[string]*TabState
}

// NewManager builds an empty tab table. A nil alerter is allowed and
// simply drops alerts.
func NewManager(calib *calibration.Table, alerter Alerter) *Manager {
	if calib == nil {
		calib = calibration.Default()
	}
	return &Manager{
		calib:   calib,
		alerter: alerter,
		tabs:    make(map[string]*TabState),
	}
}

// Navigate records a new page load for the tab and mints its navigation
// token. Any in-flight job holding the previous token becomes stale.
func (m *Manager) Navigate(tabID, url string) string {
	token := uuid.NewString()
	m.mu.Lock()
	m.tabs[tabID] = &TabState{
		TabID:           tabID,
		NavigationToken: token,
		URL:             url,
		Status:          StatusScanning,
	}
	m.mu.Unlock()
	return token
}

// Prior returns the sticky-override inputs for a recomputation: whether
// an authoritative unsafe verdict was already applied to this navigation,
// and its threat type. False for unknown tabs or stale tokens.
func (m *Manager) Prior(tabID, token string) (authoritative bool, threatType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tabs[tabID]
	if !ok || st.NavigationToken != token || st.LastAssessment == nil {
		return false, ""
	}
	return st.LastAssessment.Authoritative, st.LastAssessment.ThreatType
}

// Apply installs an assessment produced for the given navigation token.
// A stale token means the tab navigated away while the job ran; the
// result is discarded without touching the new page's state. Returns
// whether the assessment was applied and whether an alert fired.
func (m *Manager) Apply(tabID, token string, a fusion.RiskAssessment) (applied, alertFired bool) {
	m.mu.Lock()
	st, ok := m.tabs[tabID]
	if !ok || st.NavigationToken != token {
		m.mu.Unlock()
		return false, false
	}

	// An authoritative Danger already shown to the user never unwinds
	// within the navigation, even if a later local-only recomputation
	// scored lower.
	if st.Status == StatusDanger && st.LastAssessment != nil &&
		st.LastAssessment.Authoritative && !a.Authoritative {
		m.mu.Unlock()
		return false, false
	}

	assessment := a
	st.LastAssessment = &assessment
	st.Status = m.statusFor(&assessment)

	fire := st.Status == StatusDanger && !st.AlertIssued
	if fire {
		st.AlertIssued = true
	}
	m.mu.Unlock()

	// Alert outside the lock; the collaborator may be slow.
	if fire && m.alerter != nil {
		m.alerter.Alert(tabID, assessment)
	}
	return true, fire
}

// Status returns a snapshot of the tab's state.
func (m *Manager) Status(tabID string) (TabState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.tabs[tabID]
	if !ok {
		return TabState{}, false
	}
	snapshot := *st
	if st.LastAssessment != nil {
		a := *st.LastAssessment
		snapshot.LastAssessment = &a
	}
	return snapshot, true
}

// CloseTab discards all state for the tab.
func (m *Manager) CloseTab(tabID string) {
	m.mu.Lock()
	delete(m.tabs, tabID)
	m.mu.Unlock()
}

// Reset discards every tab. Used on engine teardown.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.tabs = make(map[string]*TabState)
	m.mu.Unlock()
}

func (m *Manager) statusFor(a *fusion.RiskAssessment) Status {
	switch {
	case a.IsPhishing:
		return StatusDanger
	case a.CombinedScore >= m.calib.Fusion.SuspiciousThreshold:
		return StatusSuspicious
	default:
		return StatusSafe
	}
}
