package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
)

// TrainService is the part of the mapping service the trainer needs.
type TrainService interface {
	Train(ctx context.Context, req service.TrainRequest) error
}

// TrainResult describes the last successful training run.
type TrainResult struct {
	TrainedAt time.Time `json:"trained_at"`
	Sponsor   string    `json:"sponsor"`
	Reference string    `json:"reference"`
	ViewMap   string    `json:"viewmap"`
}

// Trainer manages the two source documents a sponsor's model is trained on.
type Trainer struct {
	client    TrainService
	reference *model.Document
	viewMap   *model.Document
	last      *TrainResult
	base
}

var _ Workflow = (*Trainer)(nil)

// NewTrainer creates a trainer bound to store.
func NewTrainer(store *session.Store, client TrainService) *Trainer {
	t := &Trainer{client: client}
	t.init(store, "trainer")
	return t
}

// Kind implements Workflow.
func (t *Trainer) Kind() Kind { return KindTrain }

// SetReference selects the reference schema (ODM) document.
func (t *Trainer) SetReference(doc *model.Document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reference = doc
}

// SetViewMap selects the view-mapping document.
func (t *Trainer) SetViewMap(doc *model.Document) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.viewMap = doc
}

// ClearReference drops the reference document.
func (t *Trainer) ClearReference() { t.SetReference(nil) }

// ClearViewMap drops the view-mapping document.
func (t *Trainer) ClearViewMap() { t.SetViewMap(nil) }

// Clear drops both documents.
func (t *Trainer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reference = nil
	t.viewMap = nil
}

// Submit trains the active sponsor's model. Both documents and a sponsor
// are required; otherwise Submit fails without contacting the service.
// Inputs are kept after a successful run.
func (t *Trainer) Submit(ctx context.Context) error {
	if err := t.guard.acquire(); err != nil {
		return err
	}
	defer t.guard.release()

	t.mu.RLock()
	reference, viewMap := t.reference, t.viewMap
	t.mu.RUnlock()

	if reference == nil || viewMap == nil {
		return t.reject("Upload both ODM and ViewMapping files", common.ErrMissingDocument)
	}
	sponsor := t.store.Sponsor()
	if sponsor == "" {
		return t.reject("Please select a sponsor", common.ErrNoSponsor)
	}

	t.begin("Training…")
	defer t.store.SetLoading(false)

	t.logger.Info("Training model", "sponsor", sponsor, "odm", reference.Name, "viewmap", viewMap.Name)
	err := t.client.Train(ctx, service.TrainRequest{
		Sponsor:   sponsor,
		Reference: reference,
		ViewMap:   viewMap,
	})
	if err != nil {
		if t.store.Sponsor() == sponsor {
			t.store.SetReady(false)
		}
		return t.fail(err, mapper.FallbackTrain, "Training error")
	}

	now := t.store.Now()
	if t.store.Sponsor() == sponsor {
		t.store.SetReady(true)
	}
	t.succeed("Model trained successfully")
	t.store.AppendActivity(model.ActivityTrain, fmt.Sprintf("Model trained for %s from %s", sponsor, reference.Name))
	t.store.MergeStats(session.StatsPatch{
		Models:      session.Add(1),
		LastUpdated: session.Value(now),
	})

	if !t.detached.Load() {
		t.mu.Lock()
		t.last = &TrainResult{
			Sponsor:   sponsor,
			Reference: reference.Name,
			ViewMap:   viewMap.Name,
			TrainedAt: now,
		}
		t.mu.Unlock()
	}
	return nil
}

// Last returns the most recent successful run, or nil.
func (t *Trainer) Last() *TrainResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return nil
	}
	copied := *t.last
	return &copied
}

// Restore sets the most recent successful run.
func (t *Trainer) Restore(last *TrainResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if last == nil {
		t.last = nil
		return
	}
	copied := *last
	t.last = &copied
}

// View implements Workflow.
func (t *Trainer) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result any
	if t.last != nil {
		copied := *t.last
		result = &copied
	}
	return View{
		Kind:   KindTrain,
		Inputs: []string{model.DocumentName(t.reference), model.DocumentName(t.viewMap)},
		Busy:   t.guard.busy(),
		Err:    t.lastErr,
		Result: result,
	}
}
