package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/model"
)

// AppendActivity records one activity entry.
func (s *SQLiteStorage) AppendActivity(ctx context.Context, entry model.ActivityEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateActivity(entry); err != nil {
		return err
	}
	return s.appendActivityTx(ctx, s.db, entry)
}

func (s *SQLiteStorage) appendActivityTx(ctx context.Context, q queryable, entry model.ActivityEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO activity (type, message, created_at)
		VALUES (?, ?, ?)
	`, string(entry.Type), entry.Message, entry.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

// ReplaceActivity swaps the whole log for entries, which are ordered newest
// first.
func (s *SQLiteStorage) ReplaceActivity(ctx context.Context, entries []model.ActivityEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for i, entry := range entries {
		if err := validateActivity(entry); err != nil {
			return fmt.Errorf("activity at index %d: %w", i, err)
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM activity`); err != nil {
			return fmt.Errorf("failed to clear activity: %w", err)
		}
		// Oldest first so row ids follow age.
		for i := len(entries) - 1; i >= 0; i-- {
			if err := s.appendActivityTx(ctx, tx, entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListActivity returns up to limit entries, newest first. A limit of zero
// or less returns everything.
func (s *SQLiteStorage) ListActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, message, created_at
		FROM activity
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]model.ActivityEntry, 0)
	for rows.Next() {
		var (
			entry model.ActivityEntry
			kind  string
		)
		if err := rows.Scan(&kind, &entry.Message, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		entry.Type = model.ActivityType(kind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return entries, nil
}

// ClearActivity deletes every activity entry.
func (s *SQLiteStorage) ClearActivity(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activity`); err != nil {
		return fmt.Errorf("failed to clear activity: %w", err)
	}
	return nil
}
