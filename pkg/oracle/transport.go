package oracle

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// maxResponseSize bounds verdict response reads. Oracle responses are a
// few hundred bytes; anything larger is a misbehaving upstream.
const maxResponseSize = 1 << 20 // 1MB

// Shared transport with connection pooling. The oracle is queried on
// every navigation, so connection reuse matters far more than per-call
// transport tuning.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          50,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   5 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

var (
	httpClients sync.Map // time.Duration -> *http.Client
)

// httpClient returns a pooled client with the given total timeout.
// Clients share one transport; a new timeout tier is built at most once.
func httpClient(timeout time.Duration) *http.Client {
	if c, ok := httpClients.Load(timeout); ok {
		return c.(*http.Client)
	}
	c := &http.Client{Timeout: timeout, Transport: sharedTransport}
	actual, _ := httpClients.LoadOrStore(timeout, c)
	return actual.(*http.Client)
}

// readBody safely reads a response body with the size cap, then lets the
// caller close it for connection reuse.
func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseSize))
}

// drainAndClose drains and closes a response body so the connection
// returns to the pool.
func drainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseSize))
		_ = body.Close()
	}
}
