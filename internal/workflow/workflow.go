// Package workflow implements the train, predict and validate workflows and
// the export gateway. Each workflow owns its inputs and results and talks to
// the rest of the application only through the session store.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/session"
	"golang.org/x/sync/semaphore"
)

// Kind tags a workflow for the presentation layer.
type Kind string

// Workflow kinds.
const (
	KindTrain    Kind = "train"
	KindPredict  Kind = "predict"
	KindValidate Kind = "validate"
)

// View is a read-only summary of a workflow's state.
type View struct {
	// Result is *TrainResult, PredictionState or ValidationState depending on Kind.
	Result any
	Err    error
	Kind   Kind
	Inputs []string
	Busy   bool
}

// Workflow is implemented by Trainer, Predictor and Validator.
type Workflow interface {
	Kind() Kind
	Submit(ctx context.Context) error
	View() View
}

// guard admits one request at a time.
type guard struct {
	sem     *semaphore.Weighted
	pending atomic.Bool
}

func newGuard() *guard {
	return &guard{sem: semaphore.NewWeighted(1)}
}

// acquire reserves the slot or fails with ErrInFlight.
func (g *guard) acquire() error {
	if !g.sem.TryAcquire(1) {
		return common.ErrInFlight
	}
	g.pending.Store(true)
	return nil
}

func (g *guard) release() {
	g.pending.Store(false)
	g.sem.Release(1)
}

func (g *guard) busy() bool {
	return g.pending.Load()
}

// base carries what every workflow shares: the session store, the in-flight
// guard, the detached flag and the last error.
type base struct {
	store    *session.Store
	logger   *slog.Logger
	guard    *guard
	lastErr  error
	detached atomic.Bool
	mu       sync.RWMutex
}

func (b *base) init(store *session.Store, component string) {
	b.store = store
	b.logger = slog.Default().With("component", component)
	b.guard = newGuard()
}

// Detach marks the workflow's owner as gone. Requests that complete after
// this no longer touch the workflow's local state.
func (b *base) Detach() {
	b.detached.Store(true)
}

// Attach reverses Detach.
func (b *base) Attach() {
	b.detached.Store(false)
}

// Err returns the last error, or nil after a successful request.
func (b *base) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastErr
}

func (b *base) setErr(err error) {
	if b.detached.Load() {
		return
	}
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// reject records a local validation failure. No request is issued.
func (b *base) reject(msg string, sentinel error) error {
	err := common.NewUserError(msg, sentinel)
	b.setErr(err)
	b.store.SetError(msg)
	return err
}

// begin marks a request as started.
func (b *base) begin(status string) {
	b.store.SetLoading(true)
	b.store.SetError("")
	b.store.SetStatus(status)
}

// fail records a failed request. Existing results are left alone.
func (b *base) fail(err error, fallback, status string) error {
	if errors.Is(err, context.Canceled) {
		b.logger.Debug("Request canceled", "error", err)
	} else {
		b.logger.Warn("Request failed", "error", err)
	}
	b.setErr(err)
	b.store.SetError(common.Surface(err, fallback))
	b.store.SetStatus(status)
	return err
}

func (b *base) succeed(status string) {
	b.setErr(nil)
	b.store.SetStatus(status)
}
