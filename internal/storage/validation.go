// Package storage persists an edcmap working session in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidActivity = errors.New("invalid activity entry")
	ErrInvalidSession  = errors.New("invalid session record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateActivity(entry model.ActivityEntry) error {
	if entry.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidActivity)
	}
	if entry.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidActivity)
	}
	return nil
}

func validateSession(rec service.SessionRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("%w: missing session ID", ErrInvalidSession)
	}
	return nil
}

func validateWorkspace(rec service.WorkspaceRecord) error {
	if err := validateString(rec.Kind, "kind"); err != nil {
		return err
	}
	if rec.Payload == nil {
		return fmt.Errorf("%w: payload", ErrNilParameter)
	}
	return nil
}
