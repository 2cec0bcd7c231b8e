package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/edc-mapper/internal/service"
)

// SaveSession replaces the persisted session row and its knowledge stats.
func (s *SQLiteStorage) SaveSession(ctx context.Context, rec service.SessionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	sponsors, err := marshalStrings(rec.Sponsors)
	if err != nil {
		return fmt.Errorf("failed to encode sponsors: %w", err)
	}
	available, err := marshalStrings(rec.Stats.AvailableSponsors)
	if err != nil {
		return fmt.Errorf("failed to encode available sponsors: %w", err)
	}

	var lastUpdated sql.NullTime
	if !rec.Stats.LastUpdated.IsZero() {
		lastUpdated = sql.NullTime{Time: rec.Stats.LastUpdated, Valid: true}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session (id, session_id, sponsor, sponsors, ready, status, last_error, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				session_id = excluded.session_id,
				sponsor = excluded.sponsor,
				sponsors = excluded.sponsors,
				ready = excluded.ready,
				status = excluded.status,
				last_error = excluded.last_error,
				updated_at = excluded.updated_at
		`, rec.ID, rec.Sponsor, sponsors, rec.Ready, rec.Status, rec.LastError, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO knowledge_stats (id, models, mappings, accuracy, available_sponsors, last_updated)
			VALUES (1, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				models = excluded.models,
				mappings = excluded.mappings,
				accuracy = excluded.accuracy,
				available_sponsors = excluded.available_sponsors,
				last_updated = excluded.last_updated
		`, rec.Stats.Models, rec.Stats.Mappings, rec.Stats.Accuracy, available, lastUpdated)
		if err != nil {
			return fmt.Errorf("failed to save knowledge stats: %w", err)
		}
		return nil
	})
}

// LoadSession returns the persisted session, or sql.ErrNoRows if none has
// been saved yet.
func (s *SQLiteStorage) LoadSession(ctx context.Context) (*service.SessionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.loadSessionTx(ctx, s.db)
}

func (s *SQLiteStorage) loadSessionTx(ctx context.Context, q queryable) (*service.SessionRecord, error) {
	var (
		rec         service.SessionRecord
		sponsors    string
		available   sql.NullString
		models      sql.NullInt64
		mappings    sql.NullInt64
		accuracy    sql.NullFloat64
		lastUpdated sql.NullTime
	)

	err := q.QueryRowContext(ctx, `
		SELECT s.session_id, s.sponsor, s.sponsors, s.ready, s.status, s.last_error, s.updated_at,
			k.models, k.mappings, k.accuracy, k.available_sponsors, k.last_updated
		FROM session s
		LEFT JOIN knowledge_stats k ON k.id = 1
		WHERE s.id = 1
	`).Scan(
		&rec.ID,
		&rec.Sponsor,
		&sponsors,
		&rec.Ready,
		&rec.Status,
		&rec.LastError,
		&rec.UpdatedAt,
		&models,
		&mappings,
		&accuracy,
		&available,
		&lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if rec.Sponsors, err = unmarshalStrings(sponsors); err != nil {
		return nil, fmt.Errorf("failed to decode sponsors: %w", err)
	}
	if available.Valid {
		if rec.Stats.AvailableSponsors, err = unmarshalStrings(available.String); err != nil {
			return nil, fmt.Errorf("failed to decode available sponsors: %w", err)
		}
	}
	rec.Stats.Models = int(models.Int64)
	rec.Stats.Mappings = int(mappings.Int64)
	rec.Stats.Accuracy = accuracy.Float64
	if lastUpdated.Valid {
		rec.Stats.LastUpdated = lastUpdated.Time
	}

	return &rec, nil
}

func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	return values, nil
}
