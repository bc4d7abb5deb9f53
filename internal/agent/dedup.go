package agent

import (
	"sync"
	"time"
)

// Dedup drops repeated deliveries of the same message within a TTL window.
// Expired entries are swept lazily on access.
type Dedup struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate reports whether key was seen within the TTL. A new key is
// recorded. Empty keys are never duplicates.
func (d *Dedup) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastSweep) >= d.ttl {
		d.sweep(now)
	}
	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Len returns the number of tracked keys.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Dedup) sweep(now time.Time) {
	cutoff := now.Add(-d.ttl)
	for k, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, k)
		}
	}
	d.lastSweep = now
}
