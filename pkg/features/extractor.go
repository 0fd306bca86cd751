// Package features turns a URL and an optional page-content snapshot into
// a fixed-schema normalized feature vector for the rule scorers and the
// ensemble classifier.
//
// The extractor never fails past its boundary: a malformed URL or a
// half-empty snapshot produces a partial vector, and downstream consumers
// treat absent features as "no opinion".
package features

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/page"
)

// Extractor computes normalized feature vectors against one calibration
// table. It is stateless and safe for concurrent use.
type Extractor struct {
	calib *calibration.Table
}

// NewExtractor returns an extractor bound to the given calibration table.
func NewExtractor(calib *calibration.Table) *Extractor {
	if calib == nil {
		calib = calibration.Default()
	}
	return &Extractor{calib: calib}
}

// Extract builds the full vector: URL-lexical features always, content
// features only when a snapshot is supplied. Content features are omitted
// entirely (not zero-filled) without a snapshot.
func (e *Extractor) Extract(rawURL string, content *page.Content) Vector {
	v := e.ExtractURL(rawURL)
	if content != nil {
		v.Merge(e.ExtractContent(rawURL, content))
	}
	return v
}

// ExtractURL computes the ten URL-lexical features. A URL that fails to
// parse yields whatever can still be measured (at minimum urlLength).
func (e *Extractor) ExtractURL(rawURL string) Vector {
	v := NewVector()
	v.Set(calibration.FeatURLLength, e.scale(calibration.FeatURLLength, float64(len(rawURL))))

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return v
	}

	host := NormalizeHost(u.Hostname())
	v.Set(calibration.FeatDomainLength, e.scale(calibration.FeatDomainLength, float64(len(host))))
	v.Set(calibration.FeatSubdomainCount, e.scale(calibration.FeatSubdomainCount, float64(subdomainCount(host))))
	v.Set(calibration.FeatDomainHasHyphen, flag(strings.Contains(host, "-")))
	v.Set(calibration.FeatPathLength, e.scale(calibration.FeatPathLength, float64(len(u.Path))))
	v.Set(calibration.FeatPathSegmentCount, e.scale(calibration.FeatPathSegmentCount, float64(pathSegments(u.Path))))
	v.Set(calibration.FeatSpecialCharCount, e.scale(calibration.FeatSpecialCharCount, float64(specialChars(rawURL))))
	v.Set(calibration.FeatURLHTTPS, flag(strings.EqualFold(u.Scheme, "https")))

	params := u.Query()
	v.Set(calibration.FeatHasQueryParams, flag(len(params) > 0))
	v.Set(calibration.FeatQueryParamCount, e.scale(calibration.FeatQueryParamCount, float64(len(params))))
	return v
}

// ExtractContent computes the ten content-derived features. Per-element
// parse failures (a malformed form action, a junk href) are skipped at the
// element level and never abort extraction.
func (e *Extractor) ExtractContent(rawURL string, content *page.Content) Vector {
	v := NewVector()
	if content == nil {
		return v
	}

	pageDomain := ""
	if u, err := url.Parse(rawURL); err == nil {
		pageDomain = RegistrableDomain(u.Hostname())
	}

	formCount := len(content.Forms)
	loginForms := 0
	passwordFields := 0
	externalAction := false
	for _, f := range content.Forms {
		if f.IsLoginForm() {
			loginForms++
		}
		passwordFields += f.PasswordFields
		if pageDomain != "" && ActionDomain(f.Action) != "" && ActionDomain(f.Action) != pageDomain {
			externalAction = true
		}
	}

	linkCount := len(content.Links)
	external := 0
	for _, l := range content.Links {
		d := ActionDomain(l.Href)
		if d != "" && pageDomain != "" && d != pageDomain {
			external++
		}
	}
	ratio := 0.0
	if linkCount > 0 {
		ratio = float64(external) / float64(linkCount)
	}

	v.Set(calibration.FeatFormCount, e.scale(calibration.FeatFormCount, float64(formCount)))
	v.Set(calibration.FeatLoginFormCount, e.scale(calibration.FeatLoginFormCount, float64(loginForms)))
	v.Set(calibration.FeatPasswordFieldCount, e.scale(calibration.FeatPasswordFieldCount, float64(passwordFields)))
	v.Set(calibration.FeatExternalFormAction, flag(externalAction))
	v.Set(calibration.FeatLinkCount, e.scale(calibration.FeatLinkCount, float64(linkCount)))
	v.Set(calibration.FeatExternalLinkRatio, ratio)
	v.Set(calibration.FeatSecurityClaim, flag(content.ClaimsSecureOrVerified))
	v.Set(calibration.FeatUrgencyLanguage, flag(content.HasUrgencyLanguage))
	v.Set(calibration.FeatContentHTTPS, flag(content.HasHTTPS))
	v.Set(calibration.FeatLoginFormWithoutHTTPS, flag(loginForms > 0 && !content.HasHTTPS))
	return v
}

// scale clamps a raw value into the feature's calibrated range and maps it
// linearly onto [0,1]. Features without a range pass through clamped.
func (e *Extractor) scale(name string, raw float64) float64 {
	r, ok := e.calib.FeatureRange(name)
	if !ok {
		if raw < 0 {
			return 0
		}
		if raw > 1 {
			return 1
		}
		return raw
	}
	if raw <= r.Min {
		return 0
	}
	if raw >= r.Max {
		return 1
	}
	return (raw - r.Min) / (r.Max - r.Min)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// NormalizeHost lowercases a hostname, decodes punycode labels, and
// applies NFKC so visually-confusable unicode hosts compare sanely
// against the brand/domain calibration.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if decoded, err := idna.ToUnicode(host); err == nil && decoded != "" {
		host = decoded
	}
	return norm.NFKC.String(host)
}

// RegistrableDomain approximates eTLD+1: the last two labels, or three
// when the second-level label is a known multi-part suffix (co.uk style).
// Good enough for same-site comparison without shipping a suffix list.
func RegistrableDomain(host string) string {
	host = NormalizeHost(host)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	second := labels[len(labels)-2]
	switch second {
	case "co", "com", "org", "net", "ac", "gov", "edu":
		if len(labels) >= 3 {
			return strings.Join(labels[len(labels)-3:], ".")
		}
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// ActionDomain extracts the registrable domain of a form action or href.
// Relative and unparseable targets return "" (same-site / unknown).
func ActionDomain(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return ""
	}
	return RegistrableDomain(u.Hostname())
}

func subdomainCount(host string) int {
	registrable := RegistrableDomain(host)
	if host == registrable {
		return 0
	}
	prefix := strings.TrimSuffix(host, "."+registrable)
	if prefix == host {
		return 0
	}
	return len(strings.Split(prefix, "."))
}

func pathSegments(path string) int {
	n := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}

func specialChars(raw string) int {
	n := 0
	for _, r := range raw {
		switch r {
		case '@', '%', '&', '=', '?', '_', '~', '#', '-':
			n++
		}
	}
	return n
}
