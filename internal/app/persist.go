package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
	"github.com/Veraticus/edc-mapper/internal/workflow"
	"github.com/google/uuid"
)

// Load restores the last persisted session, if any. Without storage it
// only assigns a fresh session ID.
func (a *App) Load(ctx context.Context) error {
	if a.storage == nil {
		a.sessionID = uuid.NewString()
		return nil
	}

	rec, err := a.storage.LoadSession(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		a.sessionID = uuid.NewString()
		a.logger.Debug("Starting new session", "session_id", a.sessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	activity, err := a.storage.ListActivity(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load activity: %w", err)
	}

	a.sessionID = rec.ID
	a.hydrated.Store(true)
	a.Store.Restore(session.Snapshot{
		Sponsor:  rec.Sponsor,
		Status:   rec.Status,
		Error:    rec.LastError,
		Sponsors: rec.Sponsors,
		Activity: activity,
		Stats:    rec.Stats,
		Ready:    rec.Ready,
	})

	var last workflow.TrainResult
	found, err := a.loadWorkspace(ctx, workflow.KindTrain, &last)
	if err != nil {
		return err
	}
	if found {
		a.Trainer.Restore(&last)
	}

	var prediction workflow.PredictionState
	if found, err = a.loadWorkspace(ctx, workflow.KindPredict, &prediction); err != nil {
		return err
	}
	if found {
		a.Predictor.Restore(prediction)
	}

	var validation workflow.ValidationState
	if found, err = a.loadWorkspace(ctx, workflow.KindValidate, &validation); err != nil {
		return err
	}
	if found {
		a.Validator.Restore(validation)
	}

	a.logger.Debug("Restored session",
		"session_id", a.sessionID,
		"sponsor", rec.Sponsor,
		"activity", len(activity))
	return nil
}

// Persist writes the session and every workflow's local state to storage.
func (a *App) Persist(ctx context.Context) error {
	if a.storage == nil {
		return nil
	}
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}

	snap := a.Store.Snapshot()
	if err := a.storage.SaveSession(ctx, service.SessionRecord{
		UpdatedAt: a.Store.Now(),
		ID:        a.sessionID,
		Sponsor:   snap.Sponsor,
		Status:    snap.Status,
		LastError: snap.Error,
		Sponsors:  snap.Sponsors,
		Stats:     snap.Stats,
		Ready:     snap.Ready,
	}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := a.storage.ReplaceActivity(ctx, snap.Activity); err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}

	last := a.Trainer.Last()
	if err := a.saveWorkspace(ctx, workflow.KindTrain, snap.Sponsor, last, last != nil); err != nil {
		return err
	}

	prediction := a.Predictor.State()
	if err := a.saveWorkspace(ctx, workflow.KindPredict, prediction.Sponsor, prediction, prediction.SourceFile != ""); err != nil {
		return err
	}

	validation := a.Validator.State()
	return a.saveWorkspace(ctx, workflow.KindValidate, validation.Sponsor, validation, validation.SourceFile != "")
}

func (a *App) loadWorkspace(ctx context.Context, kind workflow.Kind, out any) (bool, error) {
	rec, err := a.storage.LoadWorkspace(ctx, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s workspace: %w", kind, err)
	}
	if err := json.Unmarshal(rec.Payload, out); err != nil {
		a.logger.Warn("Discarding unreadable workspace", "kind", kind, "error", err)
		return false, nil
	}
	return true, nil
}

// saveWorkspace stores state for kind, or removes it when present is false.
func (a *App) saveWorkspace(ctx context.Context, kind workflow.Kind, sponsor string, state any, present bool) error {
	if !present {
		if err := a.storage.DeleteWorkspace(ctx, string(kind)); err != nil {
			return fmt.Errorf("failed to clear %s workspace: %w", kind, err)
		}
		return nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode %s workspace: %w", kind, err)
	}
	if err := a.storage.SaveWorkspace(ctx, service.WorkspaceRecord{
		UpdatedAt: a.Store.Now(),
		Kind:      string(kind),
		Sponsor:   sponsor,
		Payload:   payload,
	}); err != nil {
		return fmt.Errorf("failed to save %s workspace: %w", kind, err)
	}
	return nil
}
