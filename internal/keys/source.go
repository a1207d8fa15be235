package keys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/time/rate"
)

// ErrKeyNotFound means the key identifier could not be resolved, either
// because the discovery endpoint does not publish it or because the
// endpoint was unreachable. Callers surface it as a verification
// failure, never as a crash.
var ErrKeyNotFound = errors.New("signing key not found")

type Options struct {
	CacheTTL     time.Duration // max age of a cached key, default 10m
	CacheMax     int           // max cached keys, default 5
	FetchPerMin  int           // discovery calls per minute, default 10
	FetchTimeout time.Duration // per-fetch bound, default 5s
}

type entry struct {
	key       jwk.Key
	fetchedAt time.Time
}

// Source resolves signing keys from an issuer's discovery endpoint,
// caching results so credential verification does not hammer the
// issuer, and rate limiting refills to tolerate kid-scanning abuse.
// Safe for concurrent use; concurrent refills are unordered and the
// last successful fetch wins.
type Source struct {
	url     string
	ttl     time.Duration
	max     int
	timeout time.Duration
	limiter *rate.Limiter

	mu    sync.RWMutex
	cache map[string]entry
}

func NewSource(jwksURL string, opts Options) *Source {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.CacheMax <= 0 {
		opts.CacheMax = 5
	}
	if opts.FetchPerMin <= 0 {
		opts.FetchPerMin = 10
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &Source{
		url:     jwksURL,
		ttl:     opts.CacheTTL,
		max:     opts.CacheMax,
		timeout: opts.FetchTimeout,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.FetchPerMin)), opts.FetchPerMin),
		cache:   make(map[string]entry),
	}
}

// Lookup returns the public verification key for kid, consulting the
// cache first and the discovery endpoint on a miss.
func (s *Source) Lookup(ctx context.Context, kid string) (jwk.Key, error) {
	s.mu.RLock()
	e, ok := s.cache[kid]
	s.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < s.ttl {
		return e.key, nil
	}

	if !s.limiter.Allow() {
		if ok {
			// Stale beats unavailable when the issuer is being hammered.
			return e.key, nil
		}
		return nil, fmt.Errorf("%w: discovery rate limit exceeded for kid %q", ErrKeyNotFound, kid)
	}

	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	set, err := jwk.Fetch(fctx, s.url)
	if err != nil {
		slog.Error("jwks fetch failed", "url", s.url, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
	}

	key, found := set.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("%w: kid %q not in key set", ErrKeyNotFound, kid)
	}

	s.mu.Lock()
	s.cache[kid] = entry{key: key, fetchedAt: time.Now()}
	s.evictLocked()
	s.mu.Unlock()

	return key, nil
}

// evictLocked drops the oldest entries until the cache fits. Caller
// holds the write lock.
func (s *Source) evictLocked() {
	for len(s.cache) > s.max {
		oldestKid := ""
		var oldest time.Time
		for kid, e := range s.cache {
			if oldestKid == "" || e.fetchedAt.Before(oldest) {
				oldestKid = kid
				oldest = e.fetchedAt
			}
		}
		delete(s.cache, oldestKid)
	}
}
