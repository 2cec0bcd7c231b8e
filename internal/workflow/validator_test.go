package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(correct, wrong int) []model.ValidationRecord {
	out := make([]model.ValidationRecord, 0, correct+wrong)
	for range correct {
		out = append(out, model.ValidationRecord{IMPACTVisitID: "V", EDCVisitID: "E"})
	}
	for range wrong {
		out = append(out, model.ValidationRecord{
			IMPACTVisitID: "V",
			EDCVisitID:    "E",
			WronglyMapped: true,
			TrueMappings:  []model.TrueMapping{{Field: "EDCVisitID", CorrectOptions: []string{"E2"}}},
		})
	}
	return out
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name         string
		total, wrong int
		want         float64
	}{
		{"empty run", 0, 0, 100},
		{"all correct", 4, 0, 100},
		{"all wrong", 4, 4, 0},
		{"one in three wrong", 3, 1, 66.67},
		{"two in three wrong", 3, 2, 33.33},
		{"one in eight wrong", 8, 1, 87.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Accuracy(tt.total, tt.wrong), 1e-9)
		})
	}
}

func TestFoldAccuracy_TwoPointAverage(t *testing.T) {
	acc := FoldAccuracy(80, 100)
	assert.InDelta(t, 90.0, acc, 1e-9)

	acc = FoldAccuracy(acc, 100)
	assert.InDelta(t, 95.0, acc, 1e-9, "a repeated identical run keeps moving toward 100")

}

func TestSummarize(t *testing.T) {
	summary := Summarize(records(3, 1))
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Wrong)
	assert.InDelta(t, 75.0, summary.Accuracy, 1e-9)
}

func TestValidator_FoldsAccuracyIntoStats(t *testing.T) {
	store := newSponsoredStore("A")
	store.MergeStats(session.StatsPatch{Accuracy: session.Value(80.0)})

	client := mapper.NewMockClient()
	client.ValidateFn = func(context.Context, string, *model.Document) (service.ValidateResult, error) {
		return service.ValidateResult{Records: records(5, 0)}, nil
	}

	v := NewValidator(store, client)
	v.SetDocument(testDoc("user_viewmap.csv"))

	require.NoError(t, v.Submit(context.Background()))
	assert.InDelta(t, 90.0, store.Snapshot().Stats.Accuracy, 1e-9)

	require.NoError(t, v.Submit(context.Background()))
	snap := store.Snapshot()
	assert.InDelta(t, 95.0, snap.Stats.Accuracy, 1e-9)
	assert.Equal(t, "Validation successful", snap.Status)
	assert.Equal(t, fixedNow, snap.Stats.LastUpdated)
	require.Len(t, snap.Activity, 2)
	assert.Equal(t, model.ActivityValidate, snap.Activity[0].Type)
	assert.Contains(t, snap.Activity[0].Message, "user_viewmap.csv")

	state := v.State()
	assert.Equal(t, "A", state.Sponsor)
	assert.Len(t, state.Records, 5)
	assert.Equal(t, 5, state.Summary.Total)
	assert.Equal(t, []string{"A", "A"}, client.ValidateCalls)
}

func TestValidator_LocalFailures(t *testing.T) {
	t.Run("missing document", func(t *testing.T) {
		store := newSponsoredStore("A")
		client := mapper.NewMockClient()
		v := NewValidator(store, client)

		err := v.Submit(context.Background())
		require.ErrorIs(t, err, common.ErrMissingDocument)
		assert.Equal(t, "Upload user ViewMapping file for validation", store.Snapshot().Error)
		assert.Empty(t, client.ValidateCalls)
	})

	t.Run("missing sponsor", func(t *testing.T) {
		store := session.New(session.WithClock(clock))
		client := mapper.NewMockClient()
		v := NewValidator(store, client)
		v.SetDocument(testDoc("user_viewmap.csv"))

		err := v.Submit(context.Background())
		require.ErrorIs(t, err, common.ErrNoSponsor)
		assert.Equal(t, "Select a sponsor", store.Snapshot().Error)
		assert.Empty(t, client.ValidateCalls)
	})
}

func TestValidator_FailureKeepsPreviousResult(t *testing.T) {
	store := newSponsoredStore("A")
	client := mapper.NewMockClient()
	client.ValidateFn = func(context.Context, string, *model.Document) (service.ValidateResult, error) {
		return service.ValidateResult{Records: records(1, 1)}, nil
	}

	v := NewValidator(store, client)
	v.SetDocument(testDoc("user_viewmap.csv"))
	require.NoError(t, v.Submit(context.Background()))
	accuracy := store.Snapshot().Stats.Accuracy

	client.ValidateFn = func(context.Context, string, *model.Document) (service.ValidateResult, error) {
		return service.ValidateResult{}, &mapper.APIError{Operation: "validate", Message: "Model not trained", StatusCode: 400}
	}
	err := v.Submit(context.Background())
	require.Error(t, err)

	snap := store.Snapshot()
	assert.Equal(t, "Model not trained", snap.Error)
	assert.Equal(t, "Validation error", snap.Status)
	assert.False(t, snap.Loading)
	assert.InDelta(t, accuracy, snap.Stats.Accuracy, 1e-9)
	assert.Len(t, v.State().Records, 2)

	var apiErr *mapper.APIError
	assert.True(t, errors.As(v.Err(), &apiErr))
}

func TestValidator_Clear(t *testing.T) {
	store := newSponsoredStore("A")
	client := mapper.NewMockClient()
	client.ValidateFn = func(context.Context, string, *model.Document) (service.ValidateResult, error) {
		return service.ValidateResult{Records: records(1, 0)}, nil
	}
	v := NewValidator(store, client)
	v.SetDocument(testDoc("user_viewmap.csv"))
	require.NoError(t, v.Submit(context.Background()))

	v.Clear()
	view := v.View()
	assert.Equal(t, []string{""}, view.Inputs)
	assert.Empty(t, view.Result.(ValidationState).Records)
}

func TestValidator_SubmitRejectsWhilePending(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	client := mapper.NewMockClient()
	client.ValidateFn = func(context.Context, string, *model.Document) (service.ValidateResult, error) {
		close(entered)
		<-release
		return service.ValidateResult{Records: records(3, 1)}, nil
	}
	v := NewValidator(newSponsoredStore("A"), client)
	v.SetDocument(testDoc("viewmap.csv"))

	done := make(chan error, 1)
	go func() { done <- v.Submit(context.Background()) }()
	<-entered

	assert.True(t, v.View().Busy)
	assert.ErrorIs(t, v.Submit(context.Background()), common.ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, client.ValidateCalls, 1)
	assert.InDelta(t, 75.0, v.Summary().Accuracy, 1e-9)
}
