// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Local validation errors. These never reach the network.
var (
	ErrNoSponsor        = errors.New("no sponsor selected")
	ErrMissingDocument  = errors.New("missing required document")
	ErrNoSourceDocument = errors.New("no source document recorded for these mappings")
	ErrInFlight         = errors.New("a request for this workflow is already in progress")
	ErrUnknownGroup     = errors.New("unknown unmapped group")
	ErrUnknownMapping   = errors.New("unknown mapping")
	ErrInvalidCandidate = errors.New("item is not a candidate for this group")
	ErrInvalidAction    = errors.New("invalid group action")
	ErrInvalidField     = errors.New("invalid field")
)

// Transport errors.
var (
	// ErrUnavailable indicates the mapping service could not be reached or
	// answered with something that could not be decoded.
	ErrUnavailable = errors.New("mapping service unavailable")
)

// Configuration errors.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// ServerError is implemented by errors that carry a message reported by the
// mapping service itself.
type ServerError interface {
	error
	ServerMessage() string
}

// Surface turns err into the single line shown to the user as the last error.
// Server-reported messages are passed through verbatim.
func Surface(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var serverErr ServerError
	if errors.As(err, &serverErr) {
		if msg := serverErr.ServerMessage(); msg != "" {
			return msg
		}
		return fallback
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}

	if errors.Is(err, ErrUnavailable) {
		return "Mapping service unavailable"
	}

	return fallback
}

// IsLocal reports whether err is a local validation failure that was raised
// before any request was issued.
func IsLocal(err error) bool {
	for _, target := range []error{
		ErrNoSponsor, ErrMissingDocument, ErrNoSourceDocument, ErrInFlight,
		ErrUnknownGroup, ErrUnknownMapping, ErrInvalidCandidate, ErrInvalidAction,
		ErrInvalidField,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
