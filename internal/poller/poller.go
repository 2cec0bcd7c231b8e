// Package poller keeps the session's model readiness in step with the
// mapping service.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
)

// Status texts written to the session store.
const (
	StatusReady       = "Model ready"
	StatusNoModel     = "No model available"
	StatusNoSponsor   = "No sponsor selected"
	StatusUnreachable = "Model status unavailable"
)

// DefaultInterval is the pause between two status checks.
const DefaultInterval = 30 * time.Second

// State is the poller's view of model availability.
type State int

// Poller states.
const (
	StateUnknown State = iota
	StateChecking
	StateReady
	StateUnavailable
	StateUnreachable
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	case StateUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// StatusSource answers model status queries.
type StatusSource interface {
	ModelStatus(ctx context.Context, sponsor string) (service.ModelStatus, error)
}

// Poller periodically checks model availability for the active sponsor.
// At most one polling loop runs at a time; every restart bumps a generation
// counter and results tagged with an older generation are dropped.
//
// Store listeners are invoked while the poller holds its lock, so they must
// not call back into the poller synchronously.
type Poller struct {
	parent     context.Context
	source     StatusSource
	store      *session.Store
	logger     *slog.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	interval   time.Duration
	generation uint64
	state      State
	mu         sync.Mutex
}

// New creates a poller. A non-positive interval selects DefaultInterval.
func New(store *session.Store, source StatusSource, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		store:    store,
		source:   source,
		interval: interval,
		logger:   slog.Default().With("component", "poller"),
	}
}

// State returns the current availability state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start begins polling for the store's active sponsor. Polling stops when
// ctx is canceled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.parent = ctx
	p.restartLocked()
}

// SetSponsor switches the active sponsor and, if the poller is running,
// cancels the pending interval and checks the new sponsor immediately.
func (p *Poller) SetSponsor(sponsor string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.store.SetSponsor(sponsor)
	p.state = StateUnknown
	p.restartLocked()
}

// Stop cancels polling and waits for the loop to exit. No store updates
// happen after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.parent = nil
	p.mu.Unlock()

	p.wg.Wait()
}

// PollOnce performs a single synchronous status check for the active sponsor.
func (p *Poller) PollOnce(ctx context.Context) State {
	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()

	return p.check(ctx, gen, p.store.Sponsor())
}

// Refresh asks for a fresh status check. While the polling loop runs, the
// loop is restarted so that only one check is ever in flight, and
// StateChecking is returned; the result arrives through the store.
// Otherwise it behaves like PollOnce.
func (p *Poller) Refresh(ctx context.Context) State {
	p.mu.Lock()
	if p.parent != nil {
		p.restartLocked()
		p.state = StateChecking
		p.mu.Unlock()
		return StateChecking
	}
	p.mu.Unlock()

	return p.PollOnce(ctx)
}

func (p *Poller) restartLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	if p.parent == nil {
		return
	}

	ctx, cancel := context.WithCancel(p.parent)
	p.cancel = cancel
	gen := p.generation
	sponsor := p.store.Sponsor()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(ctx, gen, sponsor)
	}()
}

func (p *Poller) loop(ctx context.Context, gen uint64, sponsor string) {
	p.logger.Debug("Polling model status", "sponsor", sponsor, "interval", p.interval)
	p.check(ctx, gen, sponsor)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx, gen, sponsor)
		}
	}
}

// check queries the source and applies the result if gen is still current.
func (p *Poller) check(ctx context.Context, gen uint64, sponsor string) State {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return StateUnknown
	}
	p.state = StateChecking
	p.mu.Unlock()

	status, err := p.source.ModelStatus(ctx, sponsor)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation || ctx.Err() != nil {
		p.logger.Debug("Dropping stale model status", "sponsor", sponsor)
		return StateUnknown
	}

	if err != nil {
		p.logger.Warn("Model status check failed", "sponsor", sponsor, "error", err)
		p.state = StateUnreachable
		p.store.SetReady(false)
		p.store.SetStatus(StatusUnreachable)
		return p.state
	}

	if status.Sponsors != nil {
		p.store.SetSponsors(status.Sponsors)
		p.store.MergeStats(session.StatsPatch{AvailableSponsors: session.Value(status.Sponsors)})
	}

	ready := status.ReadyFor(sponsor)
	if status.Sponsors != nil && sponsor == "" {
		ready = false
	}
	p.store.SetReady(ready)

	switch {
	case ready:
		p.state = StateReady
		p.store.SetStatus(StatusReady)
	case sponsor == "" && status.Sponsors != nil:
		p.state = StateUnavailable
		p.store.SetStatus(StatusNoSponsor)
	default:
		p.state = StateUnavailable
		p.store.SetStatus(StatusNoModel)
	}
	return p.state
}
