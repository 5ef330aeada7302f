// Package connectivity answers whether the account service is reachable
// right now, without letting a burst of callers turn into a
// burst of probes.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTTL is how long a probe result stays trusted before re-checking.
const DefaultTTL = 3 * time.Second

// Pinger is the single remote operation the probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe performs bounded reachability checks and caches the last verdict
// for a short TTL, so one user action costs at most one round trip.
// Safe for concurrent use.
type Probe struct {
	pinger Pinger
	ttl    time.Duration
	clock  clockwork.Clock

	mu        sync.Mutex
	reachable bool
	checkedAt time.Time
	cached    bool
}

type Option func(*Probe)

// WithTTL overrides the verdict cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(p *Probe) { p.ttl = ttl }
}

// WithClock substitutes the clock (tests).
func WithClock(c clockwork.Clock) Option {
	return func(p *Probe) { p.clock = c }
}

func NewProbe(pinger Pinger, opts ...Option) *Probe {
	p := &Probe{
		pinger: pinger,
		ttl:    DefaultTTL,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Check reports whether the service is reachable. A cached verdict younger
// than the TTL is returned as is; otherwise one probe runs under the
// caller's context (the gateway applies its own deadline when the context
// has none). Check never returns an error: any failure means unreachable.
func (p *Probe) Check(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.cached && now.Sub(p.checkedAt) < p.ttl {
		return p.reachable
	}

	p.reachable = p.pinger.Ping(ctx) == nil
	p.checkedAt = now
	p.cached = true
	return p.reachable
}

// Invalidate drops the cached verdict so the next Check re-probes. Callers
// use it after a transport failure mid-operation.
func (p *Probe) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = false
}
