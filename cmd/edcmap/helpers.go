package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Veraticus/edc-mapper/internal/app"
	"github.com/Veraticus/edc-mapper/internal/certs"
	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/config"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/storage"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
)

const persistTimeout = 10 * time.Second

// workspace is one invocation's handle on the persisted working session.
type workspace struct {
	app     *app.App
	storage *storage.SQLiteStorage
	config  *config.Config
}

// initStorage opens the session database and brings its schema up to date.
func initStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// currentConfig returns the configuration resolved by initConfig, loading it
// from viper when a command runs outside the root command.
func currentConfig() (*config.Config, error) {
	if appConfig != nil {
		return appConfig, nil
	}
	return config.Load(viper.GetViper())
}

// openWorkspace connects to the mapping service and restores the working
// session from the local database.
func openWorkspace(ctx context.Context) (*workspace, error) {
	cfg, err := currentConfig()
	if err != nil {
		return nil, err
	}

	tlsConfig, err := certs.TLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS configuration: %w", err)
	}
	var opts []mapper.Option
	if tlsConfig != nil {
		opts = append(opts, mapper.WithTLSConfig(tlsConfig))
	}

	client, err := mapper.New(cfg.BaseURL, cfg.Timeout, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mapping client: %w", err)
	}

	store, err := initStorage(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	appCfg := app.DefaultConfig()
	appCfg.PollInterval = cfg.PollInterval
	a := app.NewWithConfig(client, store, appCfg)

	if err := a.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	return &workspace{app: a, storage: store, config: cfg}, nil
}

// close stops background work, writes the session back and releases the
// database. It persists even when ctx has been canceled by an interrupt.
func (w *workspace) close(ctx context.Context) error {
	w.app.Stop()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	persistErr := w.app.Persist(ctx)
	if persistErr != nil {
		slog.Error("Failed to persist session", "error", persistErr)
	}
	return errors.Join(persistErr, w.storage.Close())
}

// withWorkspace runs fn against the working session and persists it
// afterwards, whatever fn returned.
func withWorkspace(ctx context.Context, fn func(context.Context, *workspace) error) error {
	w, err := openWorkspace(ctx)
	if err != nil {
		return err
	}

	runErr := fn(ctx, w)
	closeErr := w.close(ctx)
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// surfaced converts a workflow failure into the message the session
// recorded for it.
func surfaced(w *workspace, err error) error {
	if err == nil {
		return nil
	}
	if msg := w.app.Store.Snapshot().Error; msg != "" {
		return common.NewUserError(msg, err)
	}
	return err
}

// withSpinner shows an indeterminate progress spinner on stderr while fn
// runs.
func withSpinner(ctx context.Context, description string, fn func(context.Context) error) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := fn(ctx)
	close(done)
	wg.Wait()
	_ = bar.Finish()
	return err
}
