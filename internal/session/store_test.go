package session

import (
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 9, 24, 10, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return New(WithClock(func() time.Time { return fixedNow }))
}

func TestStore_Defaults(t *testing.T) {
	snap := New().Snapshot()
	assert.Equal(t, StatusNoModel, snap.Status)
	assert.False(t, snap.Ready)
	assert.Empty(t, snap.Sponsor)
	assert.Empty(t, snap.Activity)
}

func TestStore_SetSponsorInvalidatesReadiness(t *testing.T) {
	s := newTestStore()
	require.True(t, s.SetSponsor("A"))
	s.SetReady(true)
	s.SetStatus("Model ready")

	assert.False(t, s.SetSponsor("A"), "same sponsor is not a change")
	assert.True(t, s.Ready())

	assert.True(t, s.SetSponsor("B"))
	snap := s.Snapshot()
	assert.Equal(t, "B", snap.Sponsor)
	assert.False(t, snap.Ready)
	assert.Equal(t, StatusChecking, snap.Status)
}

func TestStore_AppendActivityNewestFirst(t *testing.T) {
	s := newTestStore()
	s.AppendActivity(model.ActivityTrain, "first")
	entry := s.AppendActivity(model.ActivityPredict, "second")

	assert.Equal(t, fixedNow, entry.Timestamp)
	snap := s.Snapshot()
	require.Len(t, snap.Activity, 2)
	assert.Equal(t, "second", snap.Activity[0].Message)
	assert.Equal(t, "first", snap.Activity[1].Message)

	s.ClearActivity()
	assert.Empty(t, s.Snapshot().Activity)
}

func TestStore_MergeStats(t *testing.T) {
	s := newTestStore()

	s.MergeStats(StatsPatch{Models: Value(3), Accuracy: Value(80.0)})
	merged := s.MergeStats(StatsPatch{
		Models:      Add(1),
		LastUpdated: Value(fixedNow),
	})

	assert.Equal(t, 4, merged.Models)
	assert.InDelta(t, 80.0, merged.Accuracy, 0.0001, "untouched fields survive a shallow merge")
	assert.Equal(t, fixedNow, merged.LastUpdated)

	merged = s.MergeStats(StatsPatch{Accuracy: func(prev float64) float64 { return (prev + 100) / 2 }})
	assert.InDelta(t, 90.0, merged.Accuracy, 0.0001)

	s.ResetStats()
	assert.Equal(t, model.KnowledgeStats{}, s.Snapshot().Stats)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newTestStore()
	s.SetSponsors([]string{"A", "B"})
	s.MergeStats(StatsPatch{AvailableSponsors: Value([]string{"A"})})

	snap := s.Snapshot()
	snap.Sponsors[0] = "Z"
	snap.Stats.AvailableSponsors[0] = "Z"

	again := s.Snapshot()
	assert.Equal(t, []string{"A", "B"}, again.Sponsors)
	assert.Equal(t, []string{"A"}, again.Stats.AvailableSponsors)
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore()

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	s.SetStatus("Training…")
	s.SetError("boom")
	require.Len(t, got, 2)
	assert.Equal(t, "Training…", got[0].Status)
	assert.Equal(t, "boom", got[1].Error)

	unsubscribe()
	s.SetError("")
	assert.Len(t, got, 2)
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	s := newTestStore()
	var sponsor string
	s.Subscribe(func(Snapshot) {
		sponsor = s.Sponsor()
	})

	s.SetSponsor("A")
	assert.Equal(t, "A", sponsor)
}

func TestStore_ConcurrentMutations(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.MergeStats(StatsPatch{Models: Add(1)})
			s.AppendActivity(model.ActivityTrain, "x")
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 50, snap.Stats.Models)
	assert.Len(t, snap.Activity, 50)
}

func TestStore_Restore(t *testing.T) {
	s := newTestStore()
	s.SetLoading(true)
	s.Restore(Snapshot{
		Sponsor:  "C",
		Status:   "Model ready",
		Ready:    true,
		Loading:  true,
		Sponsors: []string{"C"},
		Stats:    model.KnowledgeStats{Models: 2},
	})

	snap := s.Snapshot()
	assert.Equal(t, "C", snap.Sponsor)
	assert.True(t, snap.Ready)
	assert.False(t, snap.Loading, "loading never survives a restore")
	assert.Equal(t, 2, snap.Stats.Models)
}

func TestStore_MergeActivityKeepsLocalEntries(t *testing.T) {
	s := newTestStore()
	local := s.AppendActivity(model.ActivitySponsor, "Selected sponsor A")

	older := model.ActivityEntry{Timestamp: fixedNow.Add(-time.Hour), Type: model.ActivityTrain, Message: "Model trained"}
	newer := model.ActivityEntry{Timestamp: fixedNow.Add(time.Minute), Type: model.ActivityPredict, Message: "Prediction run"}
	// Same entry as stored locally but parsed into another location.
	dup := model.ActivityEntry{Timestamp: local.Timestamp.In(time.FixedZone("CEST", 2*60*60)), Type: local.Type, Message: local.Message}

	s.MergeActivity([]model.ActivityEntry{older, dup, newer})

	activity := s.Snapshot().Activity
	require.Len(t, activity, 3)
	assert.Equal(t, "Prediction run", activity[0].Message)
	assert.Equal(t, "Selected sponsor A", activity[1].Message)
	assert.Equal(t, "Model trained", activity[2].Message)

	s.MergeActivity(nil)
	assert.Len(t, s.Snapshot().Activity, 3)
}
