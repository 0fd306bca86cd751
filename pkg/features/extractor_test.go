package features

import (
	"testing"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/page"
)

func assertNormalized(t *testing.T, v Vector) {
	t.Helper()
	for _, name := range calibration.ModelFeatureOrder {
		got, ok := v.Get(name)
		if !ok {
			continue
		}
		if got < 0 || got > 1 {
			t.Fatalf("feature %s = %f outside [0,1]", name, got)
		}
	}
}

func TestAllFeaturesNormalized(t *testing.T) {
	e := NewExtractor(nil)
	contents := []*page.Content{
		nil,
		{},
		{
			Title:    "Verify Account",
			HasHTTPS: false,
			Forms: []page.Form{
				{Action: "https://evil.example/post", HasLoginField: true, PasswordFields: 3},
				{Action: "/search", PasswordFields: 0},
			},
			Links: []page.Link{
				{Href: "https://other.example/a"},
				{Href: "/local"},
			},
			ClaimsSecureOrVerified: true,
			HasUrgencyLanguage:     true,
		},
	}
	urls := []string{
		"https://example.com/",
		"http://a-very-long-subdomain.chain.of.labels.example-host.co.uk/deep/path/with/many/segments?a=1&b=2&c=3",
		"https://xn--pypal-4ve.com/signin",
		"not a url at all ::",
		"",
	}
	for _, u := range urls {
		for _, c := range contents {
			assertNormalized(t, e.Extract(u, c))
		}
	}
}

func TestMalformedURLYieldsPartialVector(t *testing.T) {
	e := NewExtractor(nil)
	v := e.ExtractURL("http://[::broken/")
	if !v.Has(calibration.FeatURLLength) {
		t.Fatalf("urlLength should survive a parse failure")
	}
	if v.Has(calibration.FeatDomainLength) {
		t.Fatalf("host-derived features should be absent for a malformed URL")
	}
}

func TestContentFeaturesOmittedWithoutSnapshot(t *testing.T) {
	e := NewExtractor(nil)
	v := e.Extract("https://example.com/login", nil)
	if v.Has(calibration.FeatFormCount) {
		t.Fatalf("content features should be omitted, not zero-filled")
	}
	if v.HasContentFeatures() {
		t.Fatalf("HasContentFeatures should be false for a URL-only vector")
	}

	full := e.Extract("https://example.com/login", &page.Content{})
	if !full.HasContentFeatures() {
		t.Fatalf("HasContentFeatures should be true once a snapshot was extracted")
	}
}

func TestScaleClampsToRange(t *testing.T) {
	e := NewExtractor(nil)
	if got := e.scale(calibration.FeatURLLength, 5); got != 0 {
		t.Fatalf("below-range value should scale to 0, got %f", got)
	}
	if got := e.scale(calibration.FeatURLLength, 10000); got != 1 {
		t.Fatalf("above-range value should scale to 1, got %f", got)
	}
	if got := e.scale(calibration.FeatURLLength, 65); got <= 0 || got >= 1 {
		t.Fatalf("mid-range value should scale strictly inside (0,1), got %f", got)
	}
}

func TestNormalizeHostDecodesPunycode(t *testing.T) {
	got := NormalizeHost("XN--PYPAL-4VE.COM")
	if got == "xn--pypal-4ve.com" {
		t.Fatalf("punycode label should have been decoded, got %q", got)
	}
}

func TestRegistrableDomain(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"www.example.com", "example.com"},
		{"example.com", "example.com"},
		{"a.b.login.bank.co.uk", "bank.co.uk"},
		{"localhost", "localhost"},
		{"deep.sub.example.org", "example.org"},
	}
	for _, tc := range cases {
		if got := RegistrableDomain(tc.host); got != tc.want {
			t.Fatalf("RegistrableDomain(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestActionDomain(t *testing.T) {
	if got := ActionDomain("https://collector.evil.net/drop"); got != "evil.net" {
		t.Fatalf("expected evil.net, got %q", got)
	}
	if got := ActionDomain("/relative/path"); got != "" {
		t.Fatalf("relative action should be same-site, got %q", got)
	}
	if got := ActionDomain(""); got != "" {
		t.Fatalf("empty action should be same-site, got %q", got)
	}
}

func TestVectorSetClamps(t *testing.T) {
	v := NewVector()
	v.Set("x", -3)
	v.Set("y", 7)
	x, _ := v.Get("x")
	y, _ := v.Get("y")
	if x != 0 || y != 1 {
		t.Fatalf("Set should clamp into [0,1], got %f and %f", x, y)
	}
}

func TestToModelInputDefaultsMissingToZero(t *testing.T) {
	v := NewVector()
	v.Set("a", 0.5)
	input := v.ToModelInput([]string{"a", "b"})
	if len(input) != 2 || input[0] != 0.5 || input[1] != 0 {
		t.Fatalf("unexpected model input %v", input)
	}
}
