// Package page defines the wire contracts consumed from the browser-side
// collaborators: the DOM scraper that snapshots page content and the
// runtime instrumentation that streams observed behavior events.
//
// These types are inputs only. The engine never scrapes or instruments
// anything itself; it scores whatever the host environment hands it.
package page

import "time"

// Content is the snapshot of a rendered page produced by the DOM scraper.
// Every field is optional: a snapshot taken before the DOM settles may be
// missing forms, links, or even a title, and scorers must treat absent
// fields as "nothing observed", never as an error.
type Content struct {
	Title                  string `json:"title"`
	MetaDescription        string `json:"metaDescription"`
	TextSample             string `json:"textSample"`
	Forms                  []Form `json:"forms"`
	Links                  []Link `json:"links"`
	HasHTTPS               bool   `json:"hasHttps"`
	ClaimsSecureOrVerified bool   `json:"claimsSecureOrVerified"`
	HasUrgencyLanguage     bool   `json:"hasUrgencyLanguage"`
}

// Form describes a single <form> element.
type Form struct {
	// Action is the raw action attribute. May be empty, relative, or
	// malformed; consumers skip unparseable actions at the element level.
	Action string `json:"action"`
	Method string `json:"method"`

	// HasLoginField is true when the form contains a username/email input.
	HasLoginField bool `json:"hasLoginField"`

	// PasswordFields counts <input type="password"> elements in this form.
	PasswordFields int `json:"passwordFields"`

	// Labels collects label text, placeholders, ids and name attributes
	// of the form's inputs, in document order.
	Labels []string `json:"labels,omitempty"`
}

// IsLoginForm reports whether the form looks like a credential prompt.
func (f Form) IsLoginForm() bool {
	return f.HasLoginField || f.PasswordFields > 0
}

// Link describes a single anchor element.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// EventType identifies a raw runtime observation from the instrumentation
// collaborator. These are observations, not conclusions: the BehaviorScorer
// decides which observations amount to a detected attack pattern.
type EventType string

const (
	// EventFormActionChanged fires when a form's action attribute mutates
	// after load. Detail carries the new destination host.
	EventFormActionChanged EventType = "form_action_changed"

	// EventInputHandlerAdded fires when an event handler is registered on a
	// password field. Detail carries a snippet of the handler source.
	EventInputHandlerAdded EventType = "input_handler_added"

	// EventSensitiveFocus fires when the user focuses a password or
	// payment field. Used only to open the exfiltration correlation window.
	EventSensitiveFocus EventType = "sensitive_focus"

	// EventOutboundRequest fires on fetch/XHR/beacon calls. Detail carries
	// the destination host.
	EventOutboundRequest EventType = "outbound_request"

	// EventCookieAccess fires on document.cookie setter calls. Detail
	// carries a snippet of the accessing code.
	EventCookieAccess EventType = "cookie_access"

	// EventHistoryChange fires on pushState/replaceState/location changes.
	EventHistoryChange EventType = "history_change"

	// EventIframeInserted fires when a hidden, near-zero-size, or
	// cross-domain iframe is attached.
	EventIframeInserted EventType = "iframe_inserted"

	// EventPopupOpened fires on window.open or modal dialog calls.
	EventPopupOpened EventType = "popup_opened"

	// EventUnloadHandlerAdded fires when a beforeunload/unload/blur handler
	// is registered.
	EventUnloadHandlerAdded EventType = "unload_handler_added"
)

// ObservedEvent is one runtime observation.
type ObservedEvent struct {
	Type      EventType `json:"type"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`

	// CrossDomain is set by the instrumentation when the event's target
	// host differs from the page's host (form action destination, request
	// destination, iframe source).
	CrossDomain bool `json:"crossDomain,omitempty"`

	// ReturnsValue marks unload/beforeunload handlers that return a value
	// and therefore block navigation.
	ReturnsValue bool `json:"returnsValue,omitempty"`
}
