package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verdictServer(t *testing.T, verdict Verdict) (*httptest.Server, *int64) {
	t.Helper()
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req["url"])
		require.NoError(t, json.NewEncoder(w).Encode(verdict))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCheckReturnsDefinitiveVerdict(t *testing.T) {
	srv, _ := verdictServer(t, Verdict{IsSafe: false, ThreatType: "SOCIAL_ENGINEERING"})
	c := NewClient(Options{BaseURL: srv.URL})

	res := c.Check(context.Background(), "https://bad.example/")
	require.True(t, res.Available())
	assert.True(t, res.Unsafe())
	assert.Equal(t, "SOCIAL_ENGINEERING", res.Verdict.ThreatType)
	assert.Equal(t, "oracle", res.Source)
}

func TestCheckCachesDefinitiveVerdicts(t *testing.T) {
	srv, hits := verdictServer(t, Verdict{IsSafe: true})
	c := NewClient(Options{BaseURL: srv.URL})

	first := c.Check(context.Background(), "https://ok.example/")
	second := c.Check(context.Background(), "https://ok.example/")

	require.True(t, first.Available())
	require.True(t, second.Available())
	assert.Equal(t, "cache", second.Source)
	assert.EqualValues(t, 1, atomic.LoadInt64(hits), "second lookup must not hit the oracle")
}

func TestCheckUnavailableOnErrorNeverSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL})

	res := c.Check(context.Background(), "https://flaky.example/")
	assert.False(t, res.Available(), "errors are unavailable, not safe")
	assert.False(t, res.Unsafe())
	assert.Equal(t, "unavailable", res.Source)
}

func TestCheckRetriesOnce(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(Verdict{IsSafe: true})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL})

	res := c.Check(context.Background(), "https://retry.example/")
	require.True(t, res.Available())
	assert.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func TestCheckTimeoutIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(Verdict{IsSafe: true})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	res := c.Check(context.Background(), "https://slow.example/")
	elapsed := time.Since(start)

	assert.False(t, res.Available())
	// Two bounded attempts plus slack; the caller is never held hostage.
	assert.Less(t, elapsed, 2*time.Second)
}

func TestFailuresAreNotCached(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(Verdict{IsSafe: true})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL})

	first := c.Check(context.Background(), "https://later.example/")
	require.False(t, first.Available())

	second := c.Check(context.Background(), "https://later.example/")
	require.True(t, second.Available(), "failure must not be remembered as an answer")
}

func TestUnconfiguredClientIsUnavailable(t *testing.T) {
	c := NewClient(Options{})
	res := c.Check(context.Background(), "https://anything.example/")
	assert.False(t, res.Available())
	assert.Equal(t, "unavailable", res.Source)
}

func TestSharedCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	shared := NewSharedCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	ctx := context.Background()
	shared.Put(ctx, "https://bad.example/", Verdict{IsSafe: false, ThreatType: "PHISHING"}, time.Minute)

	v, ok := shared.Get(ctx, "https://bad.example/")
	require.True(t, ok)
	assert.False(t, v.IsSafe)
	assert.Equal(t, "PHISHING", v.ThreatType)

	_, ok = shared.Get(ctx, "https://unknown.example/")
	assert.False(t, ok)
}

func TestSharedCacheServesOtherClients(t *testing.T) {
	mr := miniredis.RunT(t)
	shared := NewSharedCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	srv, hits := verdictServer(t, Verdict{IsSafe: false, ThreatType: "PHISHING"})
	warm := NewClient(Options{BaseURL: srv.URL, Shared: shared})
	warm.Check(context.Background(), "https://bad.example/")
	require.EqualValues(t, 1, atomic.LoadInt64(hits))

	// A second client instance with a cold local cache hits Redis, not
	// the oracle.
	cold := NewClient(Options{BaseURL: srv.URL, Shared: shared})
	res := cold.Check(context.Background(), "https://bad.example/")
	require.True(t, res.Available())
	assert.Equal(t, "shared-cache", res.Source)
	assert.EqualValues(t, 1, atomic.LoadInt64(hits))
}

func TestSharedCacheErrorsAreMisses(t *testing.T) {
	mr := miniredis.RunT(t)
	shared := NewSharedCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	srv, _ := verdictServer(t, Verdict{IsSafe: true})
	c := NewClient(Options{BaseURL: srv.URL, Shared: shared})

	// Redis being down degrades to a direct oracle query.
	res := c.Check(context.Background(), "https://ok.example/")
	require.True(t, res.Available())
	assert.Equal(t, "oracle", res.Source)
}

func TestNewSharedCacheEmptyAddr(t *testing.T) {
	assert.Nil(t, NewSharedCache(""))
}
