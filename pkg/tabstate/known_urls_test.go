package tabstate

import (
	"fmt"
	"testing"
)

func smallCache() *KnownURLCache {
	return NewKnownURLCache(CacheCaps{Phishing: 3, Suspicious: 3, Safe: 3})
}

func TestLookupPrecedence(t *testing.T) {
	c := smallCache()
	c.Record(StatusSafe, "https://site.example/page", "site.example")
	c.Record(StatusSuspicious, "https://site.example/page", "site.example")
	c.Record(StatusDanger, "https://site.example/page", "site.example")

	status, ok := c.Lookup("https://site.example/page", "site.example")
	if !ok || status != StatusDanger {
		t.Fatalf("phishing must win precedence, got %s (ok=%v)", status, ok)
	}
}

func TestDomainPoisoningForPhishing(t *testing.T) {
	c := smallCache()
	c.Record(StatusDanger, "https://bad.example/login", "bad.example")

	// A sibling page on the same domain short-circuits to danger.
	status, ok := c.Lookup("https://bad.example/other", "bad.example")
	if !ok || status != StatusDanger {
		t.Fatalf("domain-wide phishing verdict expected, got %s (ok=%v)", status, ok)
	}

	// Safe verdicts are per-URL only.
	c.Record(StatusSafe, "https://fine.example/a", "fine.example")
	if _, ok := c.Lookup("https://fine.example/b", "fine.example"); ok {
		t.Fatalf("safe verdict must not extend to the whole domain")
	}
}

func TestWholesaleClearOnOverflow(t *testing.T) {
	// Overflowing a set clears it entirely: earlier entries are gone and
	// will be re-scanned, only the newest insert survives.
	c := smallCache()
	for i := 0; i < 3; i++ {
		c.Record(StatusSafe, fmt.Sprintf("https://ok.example/%d", i), "")
	}
	for i := 0; i < 3; i++ {
		if _, ok := c.Lookup(fmt.Sprintf("https://ok.example/%d", i), ""); !ok {
			t.Fatalf("entry %d missing before overflow", i)
		}
	}

	c.Record(StatusSafe, "https://ok.example/overflow", "")

	for i := 0; i < 3; i++ {
		if _, ok := c.Lookup(fmt.Sprintf("https://ok.example/%d", i), ""); ok {
			t.Fatalf("entry %d survived the wholesale clear", i)
		}
	}
	if _, ok := c.Lookup("https://ok.example/overflow", ""); !ok {
		t.Fatalf("overflow entry should be present after the clear")
	}
}

func TestDuplicateInsertDoesNotClear(t *testing.T) {
	c := smallCache()
	for i := 0; i < 3; i++ {
		c.Record(StatusSafe, fmt.Sprintf("https://ok.example/%d", i), "")
	}
	// Re-recording an existing URL at capacity must not wipe the set.
	c.Record(StatusSafe, "https://ok.example/0", "")
	if _, ok := c.Lookup("https://ok.example/1", ""); !ok {
		t.Fatalf("duplicate insert cleared the set")
	}
}

func TestClearEmptiesEverything(t *testing.T) {
	c := smallCache()
	c.Record(StatusDanger, "https://bad.example/", "bad.example")
	c.Record(StatusSafe, "https://ok.example/", "")
	c.Clear()

	if p, s, safe := c.Len(); p != 0 || s != 0 || safe != 0 {
		t.Fatalf("expected empty cache, got %d/%d/%d", p, s, safe)
	}
}
