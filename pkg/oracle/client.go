// Package oracle implements the client for the external URL verdict
// service, the one authoritative signal in the pipeline.
//
// Failure policy (fail-open, named and deliberate): a timeout or error
// makes the verdict UNAVAILABLE. It is never treated as "safe asserted
// with confidence"; it only disables the authoritative override and
// pushes the assessment into local-fusion fallback. The caller is never
// blocked beyond one bounded timeout plus a single retry.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Verdict is a definitive answer from the oracle.
type Verdict struct {
	IsSafe     bool   `json:"isSafe"`
	ThreatType string `json:"threatType,omitempty"`
}

// Result wraps a lookup outcome. A nil Verdict means the oracle was
// unavailable (timeout, error, or not configured), the fail-open case.
type Result struct {
	Verdict *Verdict
	// Source records where the answer came from: "oracle", "cache",
	// "shared-cache", or "unavailable".
	Source string
}

// Unsafe reports whether the oracle definitively flagged the URL.
func (r Result) Unsafe() bool {
	return r.Verdict != nil && !r.Verdict.IsSafe
}

// Available reports whether a definitive verdict exists.
func (r Result) Available() bool {
	return r.Verdict != nil
}

// Options configures the client.
type Options struct {
	// BaseURL of the verdict service; empty disables remote lookups.
	BaseURL string
	// Timeout per attempt. Short by design: the engine must never hang
	// behind a slow oracle. Default 2s.
	Timeout time.Duration
	// CacheTTL for definitive verdicts in the in-process cache.
	// Default 10 minutes.
	CacheTTL time.Duration
	// Shared is an optional fleet-wide verdict cache (Redis). May be nil.
	Shared *SharedCache
}

// Client queries the oracle with a bounded timeout, one retry, and a
// two-level verdict cache. Only definitive verdicts are cached; failures
// are never remembered as answers.
type Client struct {
	baseURL string
	timeout time.Duration
	ttl     time.Duration
	local   *gocache.Cache
	shared  *SharedCache
}

// NewClient builds an oracle client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &Client{
		baseURL: opts.BaseURL,
		timeout: opts.Timeout,
		ttl:     opts.CacheTTL,
		local:   gocache.New(opts.CacheTTL, opts.CacheTTL),
		shared:  opts.Shared,
	}
}

// Check resolves a verdict for the URL: local cache, shared cache, then
// the remote service with at most one retry. Unavailable on any failure.
func (c *Client) Check(ctx context.Context, rawURL string) Result {
	if v, found := c.local.Get(rawURL); found {
		verdict := v.(Verdict)
		return Result{Verdict: &verdict, Source: "cache"}
	}

	if c.shared != nil {
		if verdict, found := c.shared.Get(ctx, rawURL); found {
			c.local.Set(rawURL, *verdict, c.ttl)
			return Result{Verdict: verdict, Source: "shared-cache"}
		}
	}

	if c.baseURL == "" {
		return Result{Source: "unavailable"}
	}

	verdict, err := c.query(ctx, rawURL)
	if err != nil {
		// One retry; the oracle call is the only suspension point on the
		// scan path, so two bounded attempts is the most we spend.
		verdict, err = c.query(ctx, rawURL)
	}
	if err != nil {
		log.Printf("[WARN] verdict oracle unavailable for %s: %v", rawURL, err)
		return Result{Source: "unavailable"}
	}

	c.local.Set(rawURL, *verdict, c.ttl)
	if c.shared != nil {
		c.shared.Put(ctx, rawURL, *verdict, c.ttl)
	}
	return Result{Verdict: verdict, Source: "oracle"}
}

func (c *Client) query(ctx context.Context, rawURL string) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/check", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(c.timeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle status %d", resp.StatusCode)
	}

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var verdict Verdict
	if err := json.Unmarshal(body, &verdict); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &verdict, nil
}
