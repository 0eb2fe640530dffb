package registry

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, ttl time.Duration) (*SessionRegistry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(ttl, time.Minute, logger, WithNowFunc(clock.Now)), clock
}

func TestGetBeforeExpiry(t *testing.T) {
	reg, clock := newTestRegistry(t, 5*time.Minute)
	reg.Put("sess-1", "https://provider.example/status/sess-1")

	clock.Advance(5*time.Minute - time.Second)

	url, ok := reg.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "https://provider.example/status/sess-1", url)
}

func TestGetAfterExpiryEvictsLazily(t *testing.T) {
	reg, clock := newTestRegistry(t, 5*time.Minute)
	reg.Put("sess-1", "https://provider.example/status/sess-1")

	// Exactly at the TTL boundary the entry is already gone, no sweep needed.
	clock.Advance(5 * time.Minute)

	_, ok := reg.Get("sess-1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len(), "expired read should remove the entry")
}

func TestGetUnknownKey(t *testing.T) {
	reg, _ := newTestRegistry(t, 5*time.Minute)
	_, ok := reg.Get("never-inserted")
	assert.False(t, ok)
}

func TestPutOverwritesAndRefreshesTTL(t *testing.T) {
	reg, clock := newTestRegistry(t, 5*time.Minute)
	reg.Put("sess-1", "https://provider.example/status/old")

	clock.Advance(4 * time.Minute)
	reg.Put("sess-1", "https://provider.example/status/new")

	// Past the original expiry but within the refreshed one.
	clock.Advance(2 * time.Minute)

	url, ok := reg.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "https://provider.example/status/new", url)
}

func TestGetDoesNotExtendExpiry(t *testing.T) {
	reg, clock := newTestRegistry(t, 5*time.Minute)
	reg.Put("sess-1", "https://provider.example/status/sess-1")

	// Repeated reads must not push the expiry out.
	for i := 0; i < 10; i++ {
		clock.Advance(29 * time.Second)
		_, ok := reg.Get("sess-1")
		require.True(t, ok, "read %d within TTL", i)
	}

	clock.Advance(time.Minute)
	_, ok := reg.Get("sess-1")
	assert.False(t, ok, "entry must expire relative to insertion, not last read")
}

func TestSweepRemovesExactlyExpired(t *testing.T) {
	reg, clock := newTestRegistry(t, 5*time.Minute)

	reg.Put("old-1", "https://provider.example/status/old-1")
	reg.Put("old-2", "https://provider.example/status/old-2")
	clock.Advance(3 * time.Minute)
	reg.Put("fresh", "https://provider.example/status/fresh")

	clock.Advance(2 * time.Minute) // old-* expired, fresh has 3m left
	reg.Sweep()

	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Get("fresh")
	assert.True(t, ok)
	_, ok = reg.Get("old-1")
	assert.False(t, ok)
}

func TestSweepIdempotent(t *testing.T) {
	reg, clock := newTestRegistry(t, time.Minute)
	reg.Put("sess-1", "u")
	clock.Advance(2 * time.Minute)

	reg.Sweep()
	reg.Sweep()
	assert.Equal(t, 0, reg.Len())
}

func TestConcurrentAccess(t *testing.T) {
	reg, _ := newTestRegistry(t, 5*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("sess-%d", n)
			reg.Put(key, "https://provider.example/status/"+key)
			for j := 0; j < 100; j++ {
				reg.Get(key)
				reg.Sweep()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, reg.Len())
}

func TestStopWithoutStart(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	reg.Stop()
	reg.Stop() // must not panic
}
