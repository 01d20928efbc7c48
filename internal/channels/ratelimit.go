package channels

import (
	"sync"
	"time"
)

const (
	// maxTrackedKeys caps the number of tracked rate-limit keys to prevent
	// memory exhaustion from attackers rotating sender identifiers.
	maxTrackedKeys = 4096

	// rateLimitWindow is the rolling window duration for rate counting.
	rateLimitWindow = 60 * time.Second
)

type rateLimitEntry struct {
	windowStart time.Time
	count       int
}

// SenderRateLimiter bounds per-sender message rates over a one-minute rolling
// window. Keys are composite (channel, account, sender) strings built by the
// pipeline. Safe for concurrent use; calls for the same key are serialized by
// the mutex so a burst cannot over-admit.
type SenderRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	now     func() time.Time
}

// NewSenderRateLimiter creates a bounded sender rate limiter.
func NewSenderRateLimiter() *SenderRateLimiter {
	return &SenderRateLimiter{
		entries: make(map[string]*rateLimitEntry),
		now:     time.Now,
	}
}

// Allow returns true if the key is within limitPerMinute for the current
// window. A non-positive limit means unlimited. Once the count reaches the
// limit, further calls return false until the window rolls over.
func (r *SenderRateLimiter) Allow(key string, limitPerMinute int) bool {
	if limitPerMinute <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// Prune stale entries when approaching the cap.
	if len(r.entries) >= maxTrackedKeys {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= rateLimitWindow {
				delete(r.entries, k)
			}
		}
		// Hard eviction if still at cap.
		for len(r.entries) >= maxTrackedKeys {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[key]
	if !ok || now.Sub(e.windowStart) >= rateLimitWindow {
		r.entries[key] = &rateLimitEntry{windowStart: now, count: 1}
		return true
	}

	if e.count >= limitPerMinute {
		return false
	}
	e.count++
	return true
}

// RateLimitKey builds the composite limiter key for one sender on one account.
func RateLimitKey(channel, accountID, senderID string) string {
	return channel + ":" + accountID + ":" + senderID
}
