package applemidi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-source invitation rate limiting, the
// flood protection AcceptAny and AcceptNone policies need since any host
// on the network can address an IN at them.
type RateLimitConfig struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

// DefaultRateLimitConfig allows 5 invitations/second per source address
// with a burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            rate.Limit(5),
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

type sourceLimitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// InvitationLimiter rate-limits inbound IN commands per source address.
type InvitationLimiter struct {
	mu      sync.Mutex
	entries map[string]*sourceLimitEntry
	cfg     RateLimitConfig
	stopCh  chan struct{}
}

// NewInvitationLimiter starts a limiter with a background eviction loop.
// Callers must call Stop to release it.
func NewInvitationLimiter(cfg RateLimitConfig) *InvitationLimiter {
	l := &InvitationLimiter{
		entries: make(map[string]*sourceLimitEntry),
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether an invitation from source should be accepted for
// processing, consuming one token from its bucket if so.
func (l *InvitationLimiter) Allow(source string) bool {
	l.mu.Lock()
	entry, ok := l.entries[source]
	if !ok {
		entry = &sourceLimitEntry{limiter: rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)}
		l.entries[source] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()
	return entry.limiter.Allow()
}

// Stop terminates the background cleanup goroutine.
func (l *InvitationLimiter) Stop() {
	close(l.stopCh)
}

func (l *InvitationLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

func (l *InvitationLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-l.cfg.MaxAge)
	for source, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, source)
		}
	}
}
