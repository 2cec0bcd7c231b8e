package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
	"github.com/Veraticus/edc-mapper/internal/storage"
	"github.com/Veraticus/edc-mapper/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 9, 24, 10, 0, 0, 0, time.UTC)

// MockStorage records storage calls.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveSession(ctx context.Context, rec service.SessionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStorage) LoadSession(ctx context.Context) (*service.SessionRecord, error) {
	args := m.Called(ctx)
	rec, _ := args.Get(0).(*service.SessionRecord)
	return rec, args.Error(1)
}

func (m *MockStorage) AppendActivity(ctx context.Context, entry model.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStorage) ReplaceActivity(ctx context.Context, entries []model.ActivityEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockStorage) ListActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	args := m.Called(ctx, limit)
	entries, _ := args.Get(0).([]model.ActivityEntry)
	return entries, args.Error(1)
}

func (m *MockStorage) ClearActivity(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) SaveWorkspace(ctx context.Context, rec service.WorkspaceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStorage) LoadWorkspace(ctx context.Context, kind string) (*service.WorkspaceRecord, error) {
	args := m.Called(ctx, kind)
	rec, _ := args.Get(0).(*service.WorkspaceRecord)
	return rec, args.Error(1)
}

func (m *MockStorage) DeleteWorkspace(ctx context.Context, kind string) error {
	args := m.Called(ctx, kind)
	return args.Error(0)
}

func (m *MockStorage) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Clock = func() time.Time { return fixedNow }
	cfg.PollInterval = time.Hour
	return cfg
}

func TestSelectSponsor(t *testing.T) {
	client := mapper.NewMockClient()
	a := NewWithConfig(client, nil, testConfig())

	assert.True(t, a.SelectSponsor("A"))
	assert.False(t, a.SelectSponsor("A"))

	snap := a.Store.Snapshot()
	assert.Equal(t, "A", snap.Sponsor)
	assert.False(t, snap.Ready)
	require.Len(t, snap.Activity, 1)
	assert.Equal(t, model.ActivitySponsor, snap.Activity[0].Type)
}

func TestBootstrap_HydratesStore(t *testing.T) {
	accuracy := 82.5
	updated := fixedNow.Add(-time.Hour)

	client := mapper.NewMockClient()
	client.ModelStatusFn = func(context.Context, string) (service.ModelStatus, error) {
		return service.ModelStatus{Sponsors: []string{"A", "B"}}, nil
	}
	client.KnowledgeStatsFn = func(context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{Models: 3, Mappings: 120, Accuracy: &accuracy, LastUpdated: &updated}, nil
	}
	client.RecentActivityFn = func(context.Context) ([]model.ActivityEntry, error) {
		return []model.ActivityEntry{{Timestamp: updated, Type: model.ActivityTrain, Message: "Model trained"}}, nil
	}

	a := NewWithConfig(client, nil, testConfig())
	a.Bootstrap(context.Background())

	snap := a.Store.Snapshot()
	assert.Equal(t, []string{"A", "B"}, snap.Sponsors)
	assert.Equal(t, []string{"A", "B"}, snap.Stats.AvailableSponsors)
	assert.Equal(t, 3, snap.Stats.Models)
	assert.Equal(t, 120, snap.Stats.Mappings)
	assert.InDelta(t, 82.5, snap.Stats.Accuracy, 1e-9)
	assert.Equal(t, updated, snap.Stats.LastUpdated)
	require.Len(t, snap.Activity, 1)
	assert.Equal(t, "Model trained", snap.Activity[0].Message)
}

func TestBootstrap_ToleratesFailures(t *testing.T) {
	client := mapper.NewMockClient()
	client.ModelStatusFn = func(context.Context, string) (service.ModelStatus, error) {
		return service.ModelStatus{}, common.ErrUnavailable
	}
	client.KnowledgeStatsFn = func(context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{}, common.ErrUnavailable
	}
	client.RecentActivityFn = func(context.Context) ([]model.ActivityEntry, error) {
		return []model.ActivityEntry{{Timestamp: fixedNow, Type: model.ActivityPredict, Message: "ok"}}, nil
	}

	a := NewWithConfig(client, nil, testConfig())
	a.Bootstrap(context.Background())

	snap := a.Store.Snapshot()
	assert.Empty(t, snap.Sponsors)
	assert.Zero(t, snap.Stats.Models)
	assert.Len(t, snap.Activity, 1, "a failed fetch does not block the others")
	assert.Empty(t, snap.Error)
}

func TestBootstrap_RefreshKeepsLocalState(t *testing.T) {
	client := mapper.NewMockClient()
	client.KnowledgeStatsFn = func(context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{Models: 1, Mappings: 10}, nil
	}
	client.RecentActivityFn = func(context.Context) ([]model.ActivityEntry, error) {
		return []model.ActivityEntry{{Timestamp: fixedNow.Add(-time.Hour), Type: model.ActivityTrain, Message: "Model trained"}}, nil
	}

	a := NewWithConfig(client, nil, testConfig())
	a.Bootstrap(context.Background())
	require.Equal(t, 1, a.Store.Snapshot().Stats.Models)

	a.SelectSponsor("A")
	a.Store.AppendActivity(model.ActivityValidate, "Validation accuracy 87.50%")
	a.Store.MergeStats(session.StatsPatch{Models: session.Add(1), Accuracy: session.Value(87.5)})

	client.KnowledgeStatsFn = func(context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{}, nil
	}
	client.RecentActivityFn = func(context.Context) ([]model.ActivityEntry, error) {
		return nil, nil
	}
	a.Bootstrap(context.Background())

	snap := a.Store.Snapshot()
	require.Len(t, snap.Activity, 3)
	assert.Equal(t, model.ActivityValidate, snap.Activity[0].Type)
	assert.Equal(t, model.ActivitySponsor, snap.Activity[1].Type)
	assert.Equal(t, "Model trained", snap.Activity[2].Message)
	assert.Equal(t, 2, snap.Stats.Models)
	assert.Equal(t, 10, snap.Stats.Mappings)
	assert.InDelta(t, 87.5, snap.Stats.Accuracy, 1e-9)
}

func TestBootstrap_RestoredSessionKeepsStats(t *testing.T) {
	store := new(MockStorage)
	store.On("LoadSession", mock.Anything).Return(&service.SessionRecord{
		ID:    "session-1",
		Stats: model.KnowledgeStats{Models: 5, Mappings: 200},
	}, nil)
	store.On("ListActivity", mock.Anything, 0).Return([]model.ActivityEntry{}, nil)
	store.On("LoadWorkspace", mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)

	client := mapper.NewMockClient()
	client.KnowledgeStatsFn = func(context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{Models: 1, Mappings: 3}, nil
	}
	client.RecentActivityFn = func(context.Context) ([]model.ActivityEntry, error) {
		return []model.ActivityEntry{{Timestamp: fixedNow, Type: model.ActivityTrain, Message: "Model trained"}}, nil
	}

	a := NewWithConfig(client, store, testConfig())
	require.NoError(t, a.Load(context.Background()))
	a.Bootstrap(context.Background())

	snap := a.Store.Snapshot()
	assert.Equal(t, 5, snap.Stats.Models)
	assert.Equal(t, 200, snap.Stats.Mappings)
	assert.Len(t, snap.Activity, 1, "server activity is still merged")
}

func TestResetStatsKeepsSponsorList(t *testing.T) {
	client := mapper.NewMockClient()
	client.ModelStatusFn = func(context.Context, string) (service.ModelStatus, error) {
		return service.ModelStatus{Sponsors: []string{"A"}}, nil
	}
	client.KnowledgeStatsFn = func(context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{Models: 2, Mappings: 7}, nil
	}
	a := NewWithConfig(client, nil, testConfig())
	a.Bootstrap(context.Background())

	a.ResetStats()
	stats := a.Store.Snapshot().Stats
	assert.Zero(t, stats.Models)
	assert.Zero(t, stats.Mappings)
	assert.Equal(t, []string{"A"}, stats.AvailableSponsors)
}

func TestLoad_NewSession(t *testing.T) {
	store := new(MockStorage)
	store.On("LoadSession", mock.Anything).Return(nil, sql.ErrNoRows)

	a := NewWithConfig(mapper.NewMockClient(), store, testConfig())
	require.NoError(t, a.Load(context.Background()))

	assert.NotEmpty(t, a.SessionID())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "ListActivity", mock.Anything, mock.Anything)
}

func TestLoad_PropagatesStorageErrors(t *testing.T) {
	store := new(MockStorage)
	store.On("LoadSession", mock.Anything).Return(nil, errors.New("disk I/O error"))

	a := NewWithConfig(mapper.NewMockClient(), store, testConfig())
	err := a.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestLoad_RestoresSessionAndWorkspaces(t *testing.T) {
	store := new(MockStorage)
	store.On("LoadSession", mock.Anything).Return(&service.SessionRecord{
		ID:       "session-1",
		Sponsor:  "A",
		Status:   "Model ready",
		Ready:    true,
		Sponsors: []string{"A", "B"},
		Stats:    model.KnowledgeStats{Models: 1, Accuracy: 90},
	}, nil)
	store.On("ListActivity", mock.Anything, 0).Return([]model.ActivityEntry{
		{Timestamp: fixedNow, Type: model.ActivityPredict, Message: "Prediction run"},
	}, nil)
	store.On("LoadWorkspace", mock.Anything, "train").Return(nil, sql.ErrNoRows)
	store.On("LoadWorkspace", mock.Anything, "predict").Return(&service.WorkspaceRecord{
		Kind:    "predict",
		Sponsor: "A",
		Payload: []byte(`{"sponsor":"A","source_file":"test.xml","mappings":[{"StudyEventOID":"E1","ItemOID":"I1","IMPACTVisitID":"V1"}],"groups":[{"StudyEventOID":"E2","itemEdit":"","impactEdit":"","candidates":["I2"],"editMode":false,"isIgnored":false}]}`),
	}, nil)
	store.On("LoadWorkspace", mock.Anything, "validate").Return(&service.WorkspaceRecord{
		Kind:    "validate",
		Payload: []byte(`not json`),
	}, nil)

	a := NewWithConfig(mapper.NewMockClient(), store, testConfig())
	require.NoError(t, a.Load(context.Background()))

	assert.Equal(t, "session-1", a.SessionID())
	snap := a.Store.Snapshot()
	assert.Equal(t, "A", snap.Sponsor)
	assert.True(t, snap.Ready)
	assert.Len(t, snap.Activity, 1)
	assert.Equal(t, 1, snap.Stats.Models)

	state := a.Predictor.State()
	assert.Equal(t, "test.xml", state.SourceFile)
	require.Len(t, state.Groups, 1)
	assert.Equal(t, []string{"I2"}, state.Groups[0].Candidates)
	assert.Empty(t, a.Validator.State().Records, "unreadable workspace is discarded")
	assert.Nil(t, a.Trainer.Last())
	store.AssertExpectations(t)
}

func TestPersist_WritesSessionAndWorkspaces(t *testing.T) {
	client := mapper.NewMockClient()
	client.PredictFn = func(context.Context, string, *model.Document) (service.PredictResult, error) {
		return service.PredictResult{Mapped: []model.Mapping{{StudyEventOID: "E1", ItemOID: "I1", IMPACTVisitID: "V1"}}}, nil
	}

	store := new(MockStorage)
	store.On("SaveSession", mock.Anything, mock.MatchedBy(func(rec service.SessionRecord) bool {
		return rec.ID != "" && rec.Sponsor == "A" && rec.Stats.Mappings == 1
	})).Return(nil)
	store.On("ReplaceActivity", mock.Anything, mock.AnythingOfType("[]model.ActivityEntry")).Return(nil)
	store.On("DeleteWorkspace", mock.Anything, "train").Return(nil)
	store.On("SaveWorkspace", mock.Anything, mock.MatchedBy(func(rec service.WorkspaceRecord) bool {
		return rec.Kind == "predict" && rec.Sponsor == "A"
	})).Return(nil)
	store.On("DeleteWorkspace", mock.Anything, "validate").Return(nil)

	a := NewWithConfig(client, store, testConfig())
	a.SelectSponsor("A")
	a.Predictor.SetDocument(&model.Document{Name: "test.xml"})
	require.NoError(t, a.Predictor.Submit(context.Background()))

	require.NoError(t, a.Persist(context.Background()))
	assert.NotEmpty(t, a.SessionID())
	store.AssertExpectations(t)
}

func TestPersistLoad_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "edcmap.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Migrate(ctx))

	client := mapper.NewMockClient()
	client.PredictFn = func(context.Context, string, *model.Document) (service.PredictResult, error) {
		return service.PredictResult{
			Mapped:   []model.Mapping{{StudyEventOID: "E1", ItemOID: "I1", IMPACTVisitID: "V1"}},
			Unmapped: []model.RawRow{{StudyEventOID: "E2", ItemOID: "I2"}, {StudyEventOID: "E2", ItemOID: "I3"}},
		}, nil
	}

	first := NewWithConfig(client, db, testConfig())
	require.NoError(t, first.Load(ctx))
	first.SelectSponsor("A")
	first.Trainer.SetReference(&model.Document{Name: "study.xml"})
	first.Trainer.SetViewMap(&model.Document{Name: "viewmap.csv"})
	require.NoError(t, first.Trainer.Submit(ctx))
	first.Predictor.SetDocument(&model.Document{Name: "test.xml"})
	require.NoError(t, first.Predictor.Submit(ctx))
	require.NoError(t, first.Predictor.EditField("E2", model.GroupFieldItem, "I3"))
	require.NoError(t, first.Predictor.EditField("E2", model.GroupFieldImpact, "V2"))
	require.NoError(t, first.Persist(ctx))

	second := NewWithConfig(client, db, testConfig())
	require.NoError(t, second.Load(ctx))

	assert.Equal(t, first.SessionID(), second.SessionID())
	assert.Equal(t, "A", second.Store.Sponsor())
	assert.Len(t, second.Store.Snapshot().Activity, 3)
	require.NotNil(t, second.Trainer.Last())
	assert.Equal(t, "study.xml", second.Trainer.Last().Reference)
	assert.Len(t, second.Predictor.SavePayload(), 2)

	require.NoError(t, second.Predictor.Save(ctx))
	require.Len(t, client.SaveCalls, 1)
	assert.Equal(t, "test.xml", client.SaveCalls[0].ODMFilename)
}

func TestPersistLoad_KeepsFullActivityLog(t *testing.T) {
	ctx := context.Background()
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "edcmap.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, db.Migrate(ctx))

	first := NewWithConfig(mapper.NewMockClient(), db, testConfig())
	require.NoError(t, first.Load(ctx))
	for i := range 60 {
		first.Store.AppendActivity(model.ActivityPredict, fmt.Sprintf("Prediction %d", i))
	}
	require.NoError(t, first.Persist(ctx))

	second := NewWithConfig(mapper.NewMockClient(), db, testConfig())
	require.NoError(t, second.Load(ctx))

	activity := second.Store.Snapshot().Activity
	require.Len(t, activity, 60)
	assert.Equal(t, "Prediction 59", activity[0].Message)
	assert.Equal(t, "Prediction 0", activity[59].Message)
}

func TestStopDetachesWorkflows(t *testing.T) {
	client := mapper.NewMockClient()
	a := NewWithConfig(client, nil, testConfig())
	a.SelectSponsor("A")

	client.PredictFn = func(context.Context, string, *model.Document) (service.PredictResult, error) {
		a.Stop()
		return service.PredictResult{Mapped: []model.Mapping{{StudyEventOID: "E1"}}}, nil
	}
	a.Predictor.SetDocument(&model.Document{Name: "test.xml"})
	require.NoError(t, a.Predictor.Submit(context.Background()))
	assert.Empty(t, a.Predictor.Mappings())
	assert.Equal(t, 1, a.Store.Snapshot().Stats.Mappings)
}

func TestWorkflowsOrder(t *testing.T) {
	a := New(mapper.NewMockClient(), nil)
	kinds := make([]workflow.Kind, 0, 3)
	for _, w := range a.Workflows() {
		kinds = append(kinds, w.Kind())
	}
	assert.Equal(t, []workflow.Kind{workflow.KindTrain, workflow.KindPredict, workflow.KindValidate}, kinds)
}
