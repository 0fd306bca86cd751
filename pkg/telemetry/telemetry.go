// Package telemetry provides a minimal in-process counter client for
// operational visibility. It is deliberately dependency-free so the scan
// path never blocks on metrics.
package telemetry

import "sync"

// Client accumulates named counters. The zero value is not usable; a nil
// Client is and drops everything, so callers can wire it unconditionally.
type Client struct {
	mu       sync.Mutex
	counters map[string]int64
}

// New returns an empty client.
func New() *Client {
	return &Client{counters: make(map[string]int64)}
}

// Incr bumps a counter by one. No-op on a nil client.
func (c *Client) Incr(name string) {
	c.Add(name, 1)
}

// Add bumps a counter by n. No-op on a nil client.
func (c *Client) Add(name string, n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[name] += n
	c.mu.Unlock()
}

// Snapshot copies the current counter values.
func (c *Client) Snapshot() map[string]int64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}
