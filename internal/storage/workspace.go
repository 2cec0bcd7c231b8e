package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/edc-mapper/internal/service"
)

// SaveWorkspace stores the local state of one workflow, replacing any
// previous state of the same kind.
func (s *SQLiteStorage) SaveWorkspace(ctx context.Context, rec service.WorkspaceRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateWorkspace(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace (kind, sponsor, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			sponsor = excluded.sponsor,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, rec.Kind, rec.Sponsor, string(rec.Payload), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workspace %s: %w", rec.Kind, err)
	}
	return nil
}

// LoadWorkspace returns the stored state for kind, or sql.ErrNoRows.
func (s *SQLiteStorage) LoadWorkspace(ctx context.Context, kind string) (*service.WorkspaceRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(kind, "kind"); err != nil {
		return nil, err
	}

	var (
		rec     service.WorkspaceRecord
		payload string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT kind, sponsor, payload, updated_at
		FROM workspace
		WHERE kind = ?
	`, kind).Scan(&rec.Kind, &rec.Sponsor, &payload, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %s: %w", kind, err)
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}

// DeleteWorkspace removes the stored state for kind. Missing state is not
// an error.
func (s *SQLiteStorage) DeleteWorkspace(ctx context.Context, kind string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(kind, "kind"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspace WHERE kind = ?`, kind); err != nil {
		return fmt.Errorf("failed to delete workspace %s: %w", kind, err)
	}
	return nil
}
