package workflow

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
)

// ValidateService is the part of the mapping service the validator needs.
type ValidateService interface {
	Validate(ctx context.Context, sponsor string, doc *model.Document) (service.ValidateResult, error)
}

// ValidationState is the outcome of the last successful validation run.
type ValidationState struct {
	Sponsor    string                   `json:"sponsor"`
	SourceFile string                   `json:"source_file"`
	Records    []model.ValidationRecord `json:"records"`
	Summary    model.ValidationSummary  `json:"summary"`
}

func (s ValidationState) clone() ValidationState {
	s.Records = slices.Clone(s.Records)
	return s
}

// Validator checks a user-authored view mapping against the sponsor's model
// and folds the resulting accuracy into the session statistics.
type Validator struct {
	client   ValidateService
	document *model.Document
	state    ValidationState
	base
}

var _ Workflow = (*Validator)(nil)

// NewValidator creates a validator bound to store.
func NewValidator(store *session.Store, client ValidateService) *Validator {
	v := &Validator{client: client}
	v.init(store, "validator")
	return v
}

// Kind implements Workflow.
func (v *Validator) Kind() Kind { return KindValidate }

// SetDocument selects the user view-mapping document. Nil clears it.
func (v *Validator) SetDocument(doc *model.Document) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.document = doc
}

// Submit validates the selected document. Records are stored as received.
func (v *Validator) Submit(ctx context.Context) error {
	if err := v.guard.acquire(); err != nil {
		return err
	}
	defer v.guard.release()

	v.mu.RLock()
	doc := v.document
	v.mu.RUnlock()

	if doc == nil {
		return v.reject("Upload user ViewMapping file for validation", common.ErrMissingDocument)
	}
	sponsor := v.store.Sponsor()
	if sponsor == "" {
		return v.reject("Select a sponsor", common.ErrNoSponsor)
	}

	v.begin("Validating…")
	defer v.store.SetLoading(false)

	v.logger.Info("Validating mappings", "sponsor", sponsor, "document", doc.Name)
	result, err := v.client.Validate(ctx, sponsor, doc)
	if err != nil {
		return v.fail(err, mapper.FallbackValidate, "Validation error")
	}

	summary := Summarize(result.Records)
	if !v.detached.Load() {
		v.mu.Lock()
		v.state = ValidationState{
			Sponsor:    sponsor,
			SourceFile: doc.Name,
			Records:    slices.Clone(result.Records),
			Summary:    summary,
		}
		v.mu.Unlock()
	}

	v.logger.Info("Validation complete",
		"total", summary.Total,
		"wrong", summary.Wrong,
		"accuracy", summary.Accuracy)

	v.succeed("Validation successful")
	v.store.AppendActivity(model.ActivityValidate, fmt.Sprintf("Validation run for %s using %s", sponsor, doc.Name))
	v.store.MergeStats(session.StatsPatch{
		Accuracy: func(prev float64) float64 {
			return FoldAccuracy(prev, summary.Accuracy)
		},
		LastUpdated: session.Value(v.store.Now()),
	})
	return nil
}

// State returns a copy of the last validation result.
func (v *Validator) State() ValidationState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.clone()
}

// Records returns the per-row verdicts of the last run.
func (v *Validator) Records() []model.ValidationRecord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.state.Records)
}

// Summary returns the totals of the last run.
func (v *Validator) Summary() model.ValidationSummary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Summary
}

// Restore replaces the validation result.
func (v *Validator) Restore(state ValidationState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = state.clone()
}

// Clear discards the selected document and the last result.
func (v *Validator) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.document = nil
	v.state = ValidationState{}
}

// View implements Workflow.
func (v *Validator) View() View {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return View{
		Kind:   KindValidate,
		Inputs: []string{model.DocumentName(v.document)},
		Busy:   v.guard.busy(),
		Err:    v.lastErr,
		Result: v.state.clone(),
	}
}

// Summarize counts the records and derives the run's accuracy.
func Summarize(records []model.ValidationRecord) model.ValidationSummary {
	wrong := 0
	for i := range records {
		if records[i].WronglyMapped {
			wrong++
		}
	}
	return model.ValidationSummary{
		Total:    len(records),
		Wrong:    wrong,
		Accuracy: Accuracy(len(records), wrong),
	}
}

// Accuracy is the percentage of correct records rounded to two decimals.
// An empty run counts as a single correct record.
func Accuracy(total, wrong int) float64 {
	if total == 0 {
		total = 1
	}
	acc := roundHalfUp(float64(total-wrong)/float64(total)*10000) / 100
	return math.Max(0, acc)
}

// FoldAccuracy averages the previous running accuracy with a new run,
// rounded to two decimals. This is a two-point average, not a cumulative
// mean: folding 100 into 80 twice gives 90 and then 95.
func FoldAccuracy(prev, acc float64) float64 {
	return roundHalfUp((prev+acc)/2*100) / 100
}

// roundHalfUp rounds halves toward positive infinity.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
