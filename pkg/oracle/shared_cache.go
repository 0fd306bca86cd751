package oracle

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// sharedKeyPrefix namespaces verdict keys in Redis.
const sharedKeyPrefix = "pg:verdict:"

// SharedCache mirrors definitive oracle verdicts across a fleet of
// gateway instances through Redis. It is strictly best-effort: any Redis
// error is treated as a miss, never as an answer, so the fail-open
// verdict policy is preserved end to end.
type SharedCache struct {
	rdb *redis.Client
}

// NewSharedCache connects a shared cache at the given address. Returns
// nil for an empty address so callers can wire it unconditionally.
func NewSharedCache(addr string) *SharedCache {
	if addr == "" {
		return nil
	}
	return &SharedCache{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewSharedCacheFromClient wraps an existing Redis client (tests).
func NewSharedCacheFromClient(rdb *redis.Client) *SharedCache {
	return &SharedCache{rdb: rdb}
}

// Get fetches a cached verdict. Misses and errors both report not-found.
func (s *SharedCache) Get(ctx context.Context, rawURL string) (*Verdict, bool) {
	raw, err := s.rdb.Get(ctx, key(rawURL)).Bytes()
	if err != nil {
		return nil, false
	}
	var v Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Put stores a definitive verdict with a TTL. Errors are dropped: the
// shared cache is an optimization, not a dependency.
func (s *SharedCache) Put(ctx context.Context, rawURL string, v Verdict, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.rdb.Set(ctx, key(rawURL), raw, ttl).Err()
}

// Close releases the Redis connection.
func (s *SharedCache) Close() error {
	return s.rdb.Close()
}

func key(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return sharedKeyPrefix + hex.EncodeToString(sum[:])
}
