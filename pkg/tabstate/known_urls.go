package tabstate

import "sync"

// KnownURLCache holds three bounded verdict sets keyed by both exact URL
// and registrable domain. Eviction is wholesale clear-on-overflow rather
// than per-entry LRU, which keeps the structure trivially correct at the
// cost of occasional full re-scans after a clear.
type KnownURLCache struct {
	mu         sync.Mutex
	phishing   *boundedSet
	suspicious *boundedSet
	safe       *boundedSet
}

// NewKnownURLCache sizes the sets from the calibration cache caps.
func NewKnownURLCache(caps CacheCaps) *KnownURLCache {
	return &KnownURLCache{
		phishing:   newBoundedSet(caps.Phishing),
		suspicious: newBoundedSet(caps.Suspicious),
		safe:       newBoundedSet(caps.Safe),
	}
}

// CacheCaps mirrors the calibration table's cache section so this
// package does not import it directly.
type CacheCaps struct {
	Phishing   int
	Suspicious int
	Safe       int
}

// Record files a terminal assessment under both the URL and its domain.
// Confirmed phishing additionally poisons the whole domain; safe and
// suspicious verdicts are recorded per URL only, since one safe page
// says nothing about its siblings.
func (c *KnownURLCache) Record(status Status, url, domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch status {
	case StatusDanger:
		c.phishing.add(url)
		if domain != "" {
			c.phishing.add(domain)
		}
	case StatusSuspicious:
		c.suspicious.add(url)
	case StatusSafe:
		c.safe.add(url)
	}
}

// Lookup short-circuits a scan when the URL or its domain was already
// classified. Precedence: phishing beats suspicious beats safe, so a
// domain-wide phishing verdict wins over a stale safe entry for one page.
func (c *KnownURLCache) Lookup(url, domain string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phishing.contains(url) || (domain != "" && c.phishing.contains(domain)) {
		return StatusDanger, true
	}
	if c.suspicious.contains(url) {
		return StatusSuspicious, true
	}
	if c.safe.contains(url) {
		return StatusSafe, true
	}
	return StatusIdle, false
}

// Clear empties all three sets.
func (c *KnownURLCache) Clear() {
	c.mu.Lock()
	c.phishing.clear()
	c.suspicious.clear()
	c.safe.clear()
	c.mu.Unlock()
}

// Len reports the current entry counts, for telemetry.
func (c *KnownURLCache) Len() (phishing, suspicious, safe int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.phishing.items), len(c.suspicious.items), len(c.safe.items)
}

// boundedSet is a set with a hard capacity. Inserting into a full set
// clears it in full first; entries never trickle out one at a time.
type boundedSet struct {
	cap   int
	items map[string]struct{}
}

func newBoundedSet(capacity int) *boundedSet {
	if capacity <= 0 {
		capacity = 1
	}
	return &boundedSet{cap: capacity, items: make(map[string]struct{}, capacity)}
}

func (s *boundedSet) add(key string) {
	if _, ok := s.items[key]; ok {
		return
	}
	if len(s.items) >= s.cap {
		s.clear()
	}
	s.items[key] = struct{}{}
}

func (s *boundedSet) contains(key string) bool {
	_, ok := s.items[key]
	return ok
}

func (s *boundedSet) clear() {
	s.items = make(map[string]struct{}, s.cap)
}
