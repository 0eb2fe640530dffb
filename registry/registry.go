// Package registry maps opaque session keys to provider-issued polling URLs
// with a fixed TTL. Entries are evicted lazily on expired reads and by a
// periodic background sweep. The registry is process-local by design; losing
// it only forces clients back through prepare.
package registry

import (
	"log/slog"
	"sync"
	"time"
)

// Defaults match the reference behavior: sessions live five minutes and the
// sweeper runs once a minute.
const (
	DefaultTTL           = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

type entry struct {
	pollingURL string
	expiresAt  time.Time
}

// SessionRegistry is a concurrency-safe key->polling URL map with TTL-based
// expiry. The zero value is not usable; construct with New.
type SessionRegistry struct {
	ttl           time.Duration
	sweepInterval time.Duration
	log           *slog.Logger
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]entry

	stopOnce sync.Once
	done     chan struct{}
}

// Option configures a SessionRegistry.
type Option func(*SessionRegistry)

// WithNowFunc overrides the clock, primarily for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(r *SessionRegistry) {
		r.now = now
	}
}

// New creates a SessionRegistry. Non-positive ttl or sweepInterval fall back
// to the defaults. The background sweeper does not run until Start is called.
func New(ttl, sweepInterval time.Duration, log *slog.Logger, opts ...Option) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	r := &SessionRegistry{
		ttl:           ttl,
		sweepInterval: sweepInterval,
		log:           log,
		now:           time.Now,
		sessions:      make(map[string]entry),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Put inserts or overwrites the entry for sessionKey with a fresh TTL.
// Idempotent per key.
func (r *SessionRegistry) Put(sessionKey, pollingURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionKey] = entry{
		pollingURL: pollingURL,
		expiresAt:  r.now().Add(r.ttl),
	}
}

// Get returns the polling URL for sessionKey. A key that was never inserted,
// or whose entry has expired, reports false; an expired entry is removed on
// the way out (lazy eviction). The expiry of a live entry is never touched,
// so polling cannot extend a session's lifetime.
func (r *SessionRegistry) Get(sessionKey string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sessionKey]
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(r.now()) {
		delete(r.sessions, sessionKey)
		return "", false
	}
	return e.pollingURL, true
}

// Sweep removes every entry whose expiry has passed. Idempotent.
func (r *SessionRegistry) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for key, e := range r.sessions {
		if !e.expiresAt.After(now) {
			delete(r.sessions, key)
			removed++
		}
	}
	if removed > 0 && r.log != nil {
		r.log.Debug("swept expired sessions", "removed", removed, "remaining", len(r.sessions))
	}
}

// Len returns the number of stored entries, expired or not.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Start launches the background sweeper. Call Stop to terminate it; Start
// must be called at most once.
func (r *SessionRegistry) Start() {
	go func() {
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep()
			case <-r.done:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper. Safe to call multiple times and
// without a prior Start.
func (r *SessionRegistry) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}
