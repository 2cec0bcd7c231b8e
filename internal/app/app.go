// Package app wires the session store, the availability poller and the
// workflows into one application root.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/poller"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
	"github.com/Veraticus/edc-mapper/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// App owns all mutable state of a working session. Nothing is global; the
// presentation layer reaches every workflow through an App.
type App struct {
	Store     *session.Store
	Poller    *poller.Poller
	Trainer   *workflow.Trainer
	Predictor *workflow.Predictor
	Validator *workflow.Validator
	Exporter  *workflow.Exporter

	client    service.MappingService
	storage   service.Storage
	logger    *slog.Logger
	sessionID string
	// hydrated is set once the knowledge statistics come from a restored
	// session or a first fetch; later refreshes leave them alone.
	hydrated atomic.Bool
}

// Config holds configuration options for the application root.
type Config struct {
	Clock        func() time.Time
	PollInterval time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: poller.DefaultInterval,
	}
}

// New creates an application root with the default configuration. storage
// may be nil, in which case nothing survives the process.
func New(client service.MappingService, storage service.Storage) *App {
	return NewWithConfig(client, storage, DefaultConfig())
}

// NewWithConfig creates an application root with custom configuration.
func NewWithConfig(client service.MappingService, storage service.Storage, config Config) *App {
	var opts []session.Option
	if config.Clock != nil {
		opts = append(opts, session.WithClock(config.Clock))
	}
	store := session.New(opts...)

	return &App{
		Store:     store,
		Poller:    poller.New(store, client, config.PollInterval),
		Trainer:   workflow.NewTrainer(store, client),
		Predictor: workflow.NewPredictor(store, client, client),
		Validator: workflow.NewValidator(store, client),
		Exporter:  workflow.NewExporter(store, client),
		client:    client,
		storage:   storage,
		logger:    slog.Default().With("component", "app"),
	}
}

// Workflows returns the three submit-style workflows in display order.
func (a *App) Workflows() []workflow.Workflow {
	return []workflow.Workflow{a.Trainer, a.Predictor, a.Validator}
}

// SessionID identifies the persisted working session. It is empty until
// Load or Persist has run.
func (a *App) SessionID() string {
	return a.sessionID
}

// Start begins availability polling for the active sponsor.
func (a *App) Start(ctx context.Context) {
	a.Poller.Start(ctx)
}

// Stop halts polling and detaches the workflows so that requests still in
// flight no longer touch their local state.
func (a *App) Stop() {
	a.Poller.Stop()
	a.Trainer.Detach()
	a.Predictor.Detach()
	a.Validator.Detach()
	a.Exporter.Detach()
}

// SelectSponsor switches the active sponsor, invalidating readiness and
// restarting availability polling. It reports whether the sponsor changed.
func (a *App) SelectSponsor(sponsor string) bool {
	if a.Store.Sponsor() == sponsor {
		return false
	}
	a.Poller.SetSponsor(sponsor)
	a.Store.AppendActivity(model.ActivitySponsor, fmt.Sprintf("Selected sponsor %s", sponsor))
	a.logger.Info("Sponsor selected", "sponsor", sponsor)
	return true
}

// Bootstrap hydrates the store from the mapping service: the sponsor list,
// the knowledge statistics and the recent activity. Each fetch is
// independent and failures are logged, never returned.
//
// Server activity is merged into the local log, never replacing it. The
// statistics are taken from the service only while the session has none of
// its own; once restored or fetched, local counters are kept.
func (a *App) Bootstrap(ctx context.Context) {
	sponsor := a.Store.Sponsor()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status, err := a.client.ModelStatus(gctx, sponsor)
		if err != nil {
			a.logger.Warn("Failed to load sponsor list", "error", err)
			return nil
		}
		if status.Sponsors != nil {
			a.Store.SetSponsors(status.Sponsors)
			a.Store.MergeStats(session.StatsPatch{AvailableSponsors: session.Value(status.Sponsors)})
		}
		return nil
	})
	g.Go(func() error {
		if a.hydrated.Load() {
			return nil
		}
		stats, err := a.client.KnowledgeStats(gctx)
		if err != nil {
			a.logger.Warn("Failed to load knowledge stats", "error", err)
			return nil
		}
		patch := session.StatsPatch{
			Models:   session.Value(stats.Models),
			Mappings: session.Value(stats.Mappings),
		}
		if stats.Accuracy != nil {
			patch.Accuracy = session.Value(*stats.Accuracy)
		}
		if stats.LastUpdated != nil {
			patch.LastUpdated = session.Value(*stats.LastUpdated)
		}
		if a.hydrated.CompareAndSwap(false, true) {
			a.Store.MergeStats(patch)
		}
		return nil
	})
	g.Go(func() error {
		entries, err := a.client.RecentActivity(gctx)
		if err != nil {
			a.logger.Warn("Failed to load recent activity", "error", err)
			return nil
		}
		a.Store.MergeActivity(entries)
		return nil
	})
	_ = g.Wait()
}

// ResetStats zeroes the knowledge statistics, keeping the sponsor list.
func (a *App) ResetStats() {
	sponsors := a.Store.Snapshot().Stats.AvailableSponsors
	a.Store.ResetStats()
	if sponsors != nil {
		a.Store.MergeStats(session.StatsPatch{AvailableSponsors: session.Value(sponsors)})
	}
}
