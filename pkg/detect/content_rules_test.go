package detect

import (
	"reflect"
	"testing"

	"github.com/brightfort/phishguard/pkg/page"
)

func TestCrossDomainLoginWithoutHTTPS(t *testing.T) {
	// Plain-HTTP page whose login form posts to a foreign domain over
	// https. Exactly two rules fire: cross-domain action and login
	// without site-wide HTTPS. The unencrypted-submit rule must not,
	// because the action itself uses https.
	s := NewContentRuleScorer(nil)
	content := &page.Content{
		HasHTTPS: false,
		Forms: []page.Form{{
			Action:         "https://collector-host.example/drop",
			Method:         "post",
			HasLoginField:  true,
			PasswordFields: 1,
		}},
	}

	result := s.Score("http://signin.bankmail.top/login", content)
	if result.Score != 60 {
		t.Fatalf("expected score 60, got %f (indicators %v)", result.Score, result.Indicators)
	}
	if len(result.Indicators) != 2 {
		t.Fatalf("expected exactly 2 indicators, got %v", result.Indicators)
	}
}

func TestUnencryptedLoginSubmit(t *testing.T) {
	s := NewContentRuleScorer(nil)
	content := &page.Content{
		HasHTTPS: true,
		Forms: []page.Form{{
			Action:         "http://signin.bankmail.top/auth",
			HasLoginField:  true,
			PasswordFields: 1,
		}},
	}

	result := s.Score("https://signin.bankmail.top/login", content)
	if result.Score != 30 {
		t.Fatalf("expected score 30 for http action only, got %f (%v)", result.Score, result.Indicators)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	// The title names two mismatched brands; the reported brand must be
	// the same on every call, not whichever the map yields first.
	s := NewContentRuleScorer(nil)
	content := &page.Content{
		Title:              "PayPal and Apple Account Verification",
		HasHTTPS:           false,
		HasUrgencyLanguage: true,
		Forms: []page.Form{{
			Action:         "https://harvest.example/submit",
			HasLoginField:  true,
			PasswordFields: 2,
		}},
	}

	first := s.Score("http://verify-accounts.top/confirm", content)
	for i := 0; i < 50; i++ {
		next := s.Score("http://verify-accounts.top/confirm", content)
		if next.Score != first.Score {
			t.Fatalf("scores differ across calls: %f vs %f", first.Score, next.Score)
		}
		if !reflect.DeepEqual(next.Indicators, first.Indicators) {
			t.Fatalf("indicator sets differ: %v vs %v", first.Indicators, next.Indicators)
		}
	}

	found := false
	for _, ind := range first.Indicators {
		if ind == "title claims apple but domain is verify-accounts.top" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the alphabetically first brand in the indicator, got %v", first.Indicators)
	}
}

func TestBrandImpersonationAndSecurityClaims(t *testing.T) {
	s := NewContentRuleScorer(nil)
	content := &page.Content{
		Title:                  "Sign in to PayPal",
		HasHTTPS:               true,
		ClaimsSecureOrVerified: true,
	}

	result := s.Score("https://paypal-account-check.top/", content)
	// Brand mismatch (30) plus excess security claims (10). The claims
	// rule only counts against an already-suspicious page.
	if result.Score != 40 {
		t.Fatalf("expected 40, got %f (%v)", result.Score, result.Indicators)
	}

	clean := s.Score("https://paypal.com/signin", &page.Content{
		Title:                  "Sign in to PayPal",
		HasHTTPS:               true,
		ClaimsSecureOrVerified: true,
	})
	if clean.Score != 0 {
		t.Fatalf("legitimate domain should score 0, got %f (%v)", clean.Score, clean.Indicators)
	}
}

func TestExternalLinkSkew(t *testing.T) {
	s := NewContentRuleScorer(nil)
	links := make([]page.Link, 0, 8)
	for i := 0; i < 7; i++ {
		links = append(links, page.Link{Href: "https://elsewhere.example/p"})
	}
	links = append(links, page.Link{Href: "https://mysite.top/about"})

	result := s.Score("https://mysite.top/", &page.Content{HasHTTPS: true, Links: links})
	if result.Score != 15 {
		t.Fatalf("expected link-skew score 15, got %f (%v)", result.Score, result.Indicators)
	}

	// Too few links to judge.
	few := s.Score("https://mysite.top/", &page.Content{HasHTTPS: true, Links: links[:4]})
	if few.Score != 0 {
		t.Fatalf("expected 0 below the minimum link count, got %f", few.Score)
	}
}

func TestNilAndEmptyContent(t *testing.T) {
	s := NewContentRuleScorer(nil)
	if got := s.Score("https://example.com/", nil); got.Score != 0 || len(got.Indicators) != 0 {
		t.Fatalf("nil content should be no opinion, got %+v", got)
	}
	if got := s.Score("https://example.com/", &page.Content{HasHTTPS: true}); got.Score != 0 {
		t.Fatalf("empty content should score 0, got %f", got.Score)
	}
}

func TestMalformedFormActionSkipped(t *testing.T) {
	s := NewContentRuleScorer(nil)
	content := &page.Content{
		HasHTTPS: true,
		Forms: []page.Form{{
			Action:         "http://[::bad/",
			HasLoginField:  true,
			PasswordFields: 1,
		}},
	}
	result := s.Score("https://example.com/", content)
	// The junk action parses to neither an http scheme nor a foreign
	// domain; nothing fires and nothing panics.
	if result.Score != 0 {
		t.Fatalf("malformed action should be skipped, got %f (%v)", result.Score, result.Indicators)
	}
}
