package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type logKey struct {
	client string
	bucket Bucket
}

// MemoryLimiter keeps the admission log in process memory.
type MemoryLimiter struct {
	mu        sync.Mutex
	policies  map[Bucket]Policy
	log       map[logKey][]time.Time
	now       func() time.Time
	lastSweep time.Time
	maxWindow time.Duration
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(policies map[Bucket]Policy) *MemoryLimiter {
	l := &MemoryLimiter{
		policies: policies,
		log:      make(map[logKey][]time.Time),
		now:      time.Now,
	}
	for _, p := range policies {
		l.maxWindow = max(l.maxWindow, p.Window)
	}
	return l
}

// WithClock replaces the time source.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	l.lastSweep = now()
	return l
}

func (l *MemoryLimiter) Allow(ctx context.Context, clientID string, bucket Bucket) (bool, error) {
	p, err := lookup(l.policies, bucket)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	k := logKey{client: clientID, bucket: bucket}
	entries := prune(l.log[k], now, p.Window)
	if len(entries) >= p.Limit {
		l.log[k] = entries
		return false, nil
	}
	l.log[k] = append(entries, now)
	return true, nil
}

// Clients returns the number of tracked client/bucket pairs.
func (l *MemoryLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.log)
}

// prune drops entries at least window old. Entries are in time order.
func prune(entries []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(entries) && now.Sub(entries[i]) >= window {
		i++
	}
	if i == 0 {
		return entries
	}
	return append(entries[:0], entries[i:]...)
}

func (l *MemoryLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for k, entries := range l.log {
		if len(entries) == 0 || now.Sub(entries[len(entries)-1]) >= l.maxWindow {
			delete(l.log, k)
		}
	}
}
