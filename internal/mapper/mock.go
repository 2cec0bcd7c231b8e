package mapper

import (
	"context"
	"io"
	"sync"

	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
)

var _ service.MappingService = (*MockClient)(nil)

// MockClient is a mock implementation of service.MappingService for testing.
type MockClient struct {
	// Functions that can be set by tests to control behavior
	ModelStatusFn    func(ctx context.Context, sponsor string) (service.ModelStatus, error)
	KnowledgeStatsFn func(ctx context.Context) (service.RemoteStats, error)
	RecentActivityFn func(ctx context.Context) ([]model.ActivityEntry, error)
	TrainFn          func(ctx context.Context, req service.TrainRequest) error
	PredictFn        func(ctx context.Context, sponsor string, doc *model.Document) (service.PredictResult, error)
	ValidateFn       func(ctx context.Context, sponsor string, doc *model.Document) (service.ValidateResult, error)
	SaveMappingsFn   func(ctx context.Context, req service.SaveRequest) error
	ExportDocumentFn func(ctx context.Context, w io.Writer) (int64, error)

	// Call tracking
	TrainCalls    []service.TrainRequest
	PredictCalls  []string
	ValidateCalls []string
	SaveCalls     []service.SaveRequest
	StatusCalls   []string
	ExportCalls   int

	mu sync.Mutex
}

// NewMockClient creates a new mock mapping client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Calls returns the total number of requests issued, across all endpoints
// that carry user documents or edits.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TrainCalls) + len(m.PredictCalls) + len(m.ValidateCalls) + len(m.SaveCalls) + m.ExportCalls
}

// ModelStatus implements service.MappingService.
func (m *MockClient) ModelStatus(ctx context.Context, sponsor string) (service.ModelStatus, error) {
	m.mu.Lock()
	m.StatusCalls = append(m.StatusCalls, sponsor)
	m.mu.Unlock()

	if m.ModelStatusFn != nil {
		return m.ModelStatusFn(ctx, sponsor)
	}
	return service.ModelStatus{Sponsors: []string{}}, nil
}

// KnowledgeStats implements service.MappingService.
func (m *MockClient) KnowledgeStats(ctx context.Context) (service.RemoteStats, error) {
	if m.KnowledgeStatsFn != nil {
		return m.KnowledgeStatsFn(ctx)
	}
	return service.RemoteStats{}, nil
}

// RecentActivity implements service.MappingService.
func (m *MockClient) RecentActivity(ctx context.Context) ([]model.ActivityEntry, error) {
	if m.RecentActivityFn != nil {
		return m.RecentActivityFn(ctx)
	}
	return []model.ActivityEntry{}, nil
}

// Train implements service.MappingService.
func (m *MockClient) Train(ctx context.Context, req service.TrainRequest) error {
	m.mu.Lock()
	m.TrainCalls = append(m.TrainCalls, req)
	m.mu.Unlock()

	if m.TrainFn != nil {
		return m.TrainFn(ctx, req)
	}
	return nil
}

// Predict implements service.MappingService.
func (m *MockClient) Predict(ctx context.Context, sponsor string, doc *model.Document) (service.PredictResult, error) {
	m.mu.Lock()
	m.PredictCalls = append(m.PredictCalls, sponsor)
	m.mu.Unlock()

	if m.PredictFn != nil {
		return m.PredictFn(ctx, sponsor, doc)
	}
	return service.PredictResult{}, nil
}

// Validate implements service.MappingService.
func (m *MockClient) Validate(ctx context.Context, sponsor string, doc *model.Document) (service.ValidateResult, error) {
	m.mu.Lock()
	m.ValidateCalls = append(m.ValidateCalls, sponsor)
	m.mu.Unlock()

	if m.ValidateFn != nil {
		return m.ValidateFn(ctx, sponsor, doc)
	}
	return service.ValidateResult{}, nil
}

// SaveMappings implements service.Gateway.
func (m *MockClient) SaveMappings(ctx context.Context, req service.SaveRequest) error {
	m.mu.Lock()
	m.SaveCalls = append(m.SaveCalls, req)
	m.mu.Unlock()

	if m.SaveMappingsFn != nil {
		return m.SaveMappingsFn(ctx, req)
	}
	return nil
}

// ExportDocument implements service.Gateway.
func (m *MockClient) ExportDocument(ctx context.Context, w io.Writer) (int64, error) {
	m.mu.Lock()
	m.ExportCalls++
	m.mu.Unlock()

	if m.ExportDocumentFn != nil {
		return m.ExportDocumentFn(ctx, w)
	}
	n, err := io.WriteString(w, "<ODM/>")
	return int64(n), err
}
