package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// idleWindow is how long a source IP's limiter may sit untouched before
// it becomes eligible for eviction on the next Get that finds the store
// over evictThreshold.
const idleWindow = 60 * time.Second

// limiter is a single source IP's token bucket.
type limiter struct {
	rl *rate.Limiter
}

// LimiterStore holds one token-bucket limiter per source IP, evicting
// the oldest-touched entries once the map grows past a size threshold.
type LimiterStore struct {
	mu       sync.RWMutex
	limiters map[uint64]*timestampedLimiter
	maxSize  int
	rate     int
}

type timestampedLimiter struct {
	limiter *limiter
	// lastSeen is UnixNano, touched under RLock on the fast path via
	// atomic.Int64 so concurrent Gets of the same key don't race.
	lastSeen atomic.Int64
}

func (tl *timestampedLimiter) touch() {
	tl.lastSeen.Store(time.Now().UnixNano())
}

func (tl *timestampedLimiter) seenAt() time.Time {
	return time.Unix(0, tl.lastSeen.Load())
}

// NewLimiterStore creates a store admitting rateLimit queries/sec/IP.
// rateLimit == 0 still builds a usable store (New's caller is expected
// to skip consulting it entirely in that case, per §4.F).
func NewLimiterStore(maxSize, rateLimit int) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[uint64]*timestampedLimiter),
		maxSize:  maxSize,
		rate:     rateLimit,
	}
}

// Get retrieves or creates the limiter for key, touching its last-seen
// timestamp and opportunistically evicting idle entries when the store
// is over its size threshold.
func (s *LimiterStore) Get(key uint64) *limiter {
	s.mu.RLock()
	if tl, ok := s.limiters[key]; ok {
		tl.touch()
		s.mu.RUnlock()
		return tl.limiter
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if tl, ok := s.limiters[key]; ok {
		tl.touch()
		return tl.limiter
	}

	if len(s.limiters) >= s.maxSize {
		s.evictIdle()
	}
	if len(s.limiters) >= s.maxSize {
		s.evictOne()
	}

	l := &limiter{rl: rate.NewLimiter(rate.Limit(s.rate), s.rate)}

	tl := &timestampedLimiter{limiter: l}
	tl.touch()
	s.limiters[key] = tl

	return l
}

// evictIdle removes every entry untouched for longer than idleWindow.
func (s *LimiterStore) evictIdle() {
	cutoff := time.Now().Add(-idleWindow)
	for k, v := range s.limiters {
		if v.seenAt().Before(cutoff) {
			delete(s.limiters, k)
		}
	}
}

// evictOne removes a single oldest-touched entry as a last resort when
// evictIdle freed nothing and the store is still at capacity.
func (s *LimiterStore) evictOne() {
	var oldestKey uint64
	var oldestTime time.Time
	first := true

	for k, v := range s.limiters {
		seen := v.seenAt()
		if first || seen.Before(oldestTime) {
			oldestKey = k
			oldestTime = seen
			first = false
		}
	}

	if !first {
		delete(s.limiters, oldestKey)
	}
}

// Len returns the number of tracked source IPs.
func (s *LimiterStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}
