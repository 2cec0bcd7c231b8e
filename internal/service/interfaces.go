// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"io"
	"time"

	"github.com/Veraticus/edc-mapper/internal/model"
)

// ModelStatus is the mapping service's view of which models exist.
// Sponsors is nil when the service answered with the legacy boolean shape.
type ModelStatus struct {
	Sponsors  []string
	Available bool
}

// ReadyFor reports whether a usable model exists for sponsor.
func (s ModelStatus) ReadyFor(sponsor string) bool {
	if s.Sponsors == nil {
		return s.Available
	}
	for _, candidate := range s.Sponsors {
		if candidate == sponsor {
			return true
		}
	}
	return false
}

// RemoteStats is the knowledge snapshot reported by the mapping service.
// Nil pointers mean the service had no value.
type RemoteStats struct {
	Accuracy    *float64
	LastUpdated *time.Time
	Models      int
	Mappings    int
}

// TrainRequest carries the two source documents a model is trained from.
type TrainRequest struct {
	Reference *model.Document
	ViewMap   *model.Document
	Sponsor   string
}

// PredictResult partitions a prediction response.
type PredictResult struct {
	Mapped   []model.Mapping
	Unmapped []model.RawRow
}

// ValidateResult holds the per-row verdicts of a validation run.
type ValidateResult struct {
	Summary *model.ValidationSummary
	Records []model.ValidationRecord
}

// SaveRequest is the payload persisted by the save gateway.
type SaveRequest struct {
	ODMFilename string          `json:"odm_filename"`
	Mappings    []model.Mapping `json:"mappings"`
}

// MappingService is the HTTP boundary of the external mapping model.
type MappingService interface {
	ModelStatus(ctx context.Context, sponsor string) (ModelStatus, error)
	KnowledgeStats(ctx context.Context) (RemoteStats, error)
	RecentActivity(ctx context.Context) ([]model.ActivityEntry, error)
	Train(ctx context.Context, req TrainRequest) error
	Predict(ctx context.Context, sponsor string, doc *model.Document) (PredictResult, error)
	Validate(ctx context.Context, sponsor string, doc *model.Document) (ValidateResult, error)
	Gateway
}

// Gateway persists corrected mappings and retrieves the updated document.
type Gateway interface {
	SaveMappings(ctx context.Context, req SaveRequest) error
	ExportDocument(ctx context.Context, w io.Writer) (int64, error)
}

// SessionRecord is the persisted form of the session store.
type SessionRecord struct {
	UpdatedAt time.Time
	ID        string
	Sponsor   string
	Status    string
	LastError string
	Sponsors  []string
	Stats     model.KnowledgeStats
	Ready     bool
}

// WorkspaceRecord is the persisted local state of one workflow.
type WorkspaceRecord struct {
	UpdatedAt time.Time
	Kind      string
	Sponsor   string
	Payload   []byte
}

// Storage persists one working session between CLI invocations.
type Storage interface {
	SaveSession(ctx context.Context, rec SessionRecord) error
	LoadSession(ctx context.Context) (*SessionRecord, error)

	AppendActivity(ctx context.Context, entry model.ActivityEntry) error
	ReplaceActivity(ctx context.Context, entries []model.ActivityEntry) error
	ListActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error)
	ClearActivity(ctx context.Context) error

	SaveWorkspace(ctx context.Context, rec WorkspaceRecord) error
	LoadWorkspace(ctx context.Context, kind string) (*WorkspaceRecord, error)
	DeleteWorkspace(ctx context.Context, kind string) error

	Migrate(ctx context.Context) error
	Close() error
}
