package command

import (
	"context"
	"sync"
	"time"
)

// Pacing bounds per-participant moderation calls for kickall and promoteall.
type Pacing struct {
	PerMinute int // sustained calls per minute; 30 when unset
	Burst     int // calls allowed back to back; 5 when unset
}

// Pacer spaces calls at the configured rate, letting a burst through first.
// It keeps only the time the next call is due, so an idle pacer refills
// without bookkeeping.
type Pacer struct {
	mu        sync.Mutex
	interval  time.Duration
	tolerance time.Duration
	due       time.Time
	now       func() time.Time
}

func NewPacer(p Pacing) *Pacer {
	if p.PerMinute <= 0 {
		p.PerMinute = 30
	}
	if p.Burst <= 0 {
		p.Burst = 5
	}
	interval := time.Minute / time.Duration(p.PerMinute)
	return &Pacer{
		interval:  interval,
		tolerance: interval * time.Duration(p.Burst-1),
		now:       time.Now,
	}
}

// reserve claims the next slot when it is open and otherwise reports how
// long until it opens.
func (p *Pacer) reserve() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	due := p.due
	if due.Before(now) {
		due = now
	}
	if wait := due.Sub(now) - p.tolerance; wait > 0 {
		return wait
	}
	p.due = due.Add(p.interval)
	return 0
}

// Wait blocks until the caller may make its next call or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	for {
		wait := p.reserve()
		if wait == 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
