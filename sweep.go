package respool

import (
	"time"
)

const maxSweepInterval = 600 * time.Second

// isExpired reports whether e should be destroyed under the pool's current
// MaxLifetime/MaxIdleTime options, and bumps the matching counter as a side
// effect when it does. Must be called with p.mu held.
func (p *Pool[T]) isExpired(e *element[T], now time.Time) bool {
	if positive(p.options.MaxLifetime) && now.Sub(e.createdAt) > p.options.MaxLifetime {
		p.maxLifetimeClosed++
		return true
	}
	if positive(p.options.MaxIdleTime) && e.hasIdledAt && now.Sub(e.idledAt) > p.options.MaxIdleTime {
		p.maxIdleTimeClosed++
		return true
	}
	return false
}

// ttl returns the smaller of e's positive remaining lifetime/idle budgets, or
// (0, false) if both caps are off. Must be called with p.mu held.
func (p *Pool[T]) ttl(e *element[T], now time.Time) (time.Duration, bool) {
	var best time.Duration
	have := false

	if positive(p.options.MaxLifetime) {
		remaining := p.options.MaxLifetime - now.Sub(e.createdAt)
		best, have = remaining, true
	}
	if positive(p.options.MaxIdleTime) && e.hasIdledAt {
		remaining := p.options.MaxIdleTime - now.Sub(e.idledAt)
		if !have || remaining < best {
			best = remaining
		}
		have = true
	}

	return best, have
}

// pushSweep schedules a sweep at now+ttl, unless an earlier sweep is already
// scheduled with a strictly sooner deadline. Must be called with p.mu held.
func (p *Pool[T]) pushSweep(ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}
	deadline := p.now().Add(ttl)

	if p.sweepTimer != nil && p.sweepDeadline.Before(deadline) {
		return
	}
	if p.sweepTimer != nil {
		p.sweepTimer.Stop()
	}

	p.sweepDeadline = deadline
	p.sweepTimer = time.AfterFunc(ttl, p.runSweep)
}

// cancelSweep cancels any pending sweep. Must be called with p.mu held.
func (p *Pool[T]) cancelSweep() {
	if p.sweepTimer != nil {
		p.sweepTimer.Stop()
		p.sweepTimer = nil
	}
}

// runSweep is the sweep timer callback. It reclaims expired idle elements and
// reschedules the next sweep for the soonest surviving deadline.
func (p *Pool[T]) runSweep() {
	p.mu.Lock()

	p.sweepTimer = nil

	now := p.now()
	var minTTL time.Duration
	haveMinTTL := false
	var toDestroy []*element[T]

	for i := len(p.idle) - 1; i >= 0; i-- {
		e := p.idle[i]
		if p.isExpired(e, now) {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			toDestroy = append(toDestroy, e)
			continue
		}
		if ttl, ok := p.ttl(e, now); ok {
			if !haveMinTTL || ttl < minTTL {
				minTTL, haveMinTTL = ttl, true
			}
		}
	}

	if len(p.idle) > 0 && haveMinTTL {
		if minTTL > maxSweepInterval {
			minTTL = maxSweepInterval
		}
		p.pushSweep(minTTL)
	}

	p.mu.Unlock()

	for _, e := range toDestroy {
		p.destroy(e.item)
	}
}
