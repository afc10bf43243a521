// Package keypool manages a pool of interchangeable, quota-limited
// credentials, rotating among them fairly while respecting per-credential
// quotas within a rolling window.
package keypool

import (
	"errors"
	"sync"
	"time"
)

// ErrNoKeys is returned when the pool was constructed without credentials.
var ErrNoKeys = errors.New("keypool: no credentials configured")

// Usage is a point-in-time view of one credential's consumption; keys are
// masked by the caller before exposure.
type Usage struct {
	Key       string
	Used      int
	Exhausted bool
}

// Pool is a rotating set of quota-limited credentials. All methods are safe
// for concurrent use; selection and usage accounting happen inside one
// critical section so two concurrent selections can never both act on stale
// counters.
type Pool struct {
	mu          sync.Mutex
	keys        []string
	used        map[string]int
	limit       int
	window      time.Duration
	windowStart time.Time
	pos         int

	now func() time.Time
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New creates a Pool over keys with a shared per-key quota limit and a
// rolling reset window.
func New(keys []string, limit int, window time.Duration, opts ...Option) *Pool {
	p := &Pool{
		keys:   append([]string(nil), keys...),
		used:   make(map[string]int, len(keys)),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.windowStart = p.now()

	return p
}

// Take selects the next usable credential and records cost against it, as
// one atomic step. Round-robin from the rotor position, skipping credentials
// at or over the quota limit; if the rolling window has elapsed, all usage
// resets first. When every credential is exhausted the least-used one is
// returned rather than failing (graceful degradation). Only an empty pool
// returns ErrNoKeys.
func (p *Pool) Take(cost int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", ErrNoKeys
	}

	p.maybeRollover()

	// Round-robin scan for a credential under quota.
	for i := 0; i < len(p.keys); i++ {
		idx := (p.pos + i) % len(p.keys)
		key := p.keys[idx]
		if p.used[key] < p.limit {
			p.pos = (idx + 1) % len(p.keys)
			p.used[key] += cost
			return key, nil
		}
	}

	// Everything at quota: fall back to the least-used credential.
	least := p.keys[0]
	for _, key := range p.keys[1:] {
		if p.used[key] < p.used[least] {
			least = key
		}
	}
	p.used[least] += cost

	return least, nil
}

// MarkExhausted pins the credential's usage to the quota limit until the
// window rolls over and advances the rotor past it. Called when the remote
// service explicitly rejected the credential (quota-exceeded response).
func (p *Pool) MarkExhausted(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, k := range p.keys {
		if k != key {
			continue
		}
		if p.used[key] < p.limit {
			p.used[key] = p.limit
		}
		p.pos = (i + 1) % len(p.keys)
		return
	}
}

// Remaining returns the credential's unspent quota in the current window.
func (p *Pool) Remaining(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maybeRollover()

	if r := p.limit - p.used[key]; r > 0 {
		return r
	}
	return 0
}

// Len returns the number of credentials in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.keys)
}

// Snapshot returns the current usage of every credential, in pool order.
func (p *Pool) Snapshot() []Usage {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.maybeRollover()

	out := make([]Usage, len(p.keys))
	for i, key := range p.keys {
		out[i] = Usage{
			Key:       key,
			Used:      p.used[key],
			Exhausted: p.used[key] >= p.limit,
		}
	}
	return out
}

// maybeRollover resets all usage when the window has elapsed. Callers must
// hold p.mu.
func (p *Pool) maybeRollover() {
	if p.window <= 0 {
		return
	}
	if now := p.now(); now.Sub(p.windowStart) >= p.window {
		p.used = make(map[string]int, len(p.keys))
		p.windowStart = now
	}
}
