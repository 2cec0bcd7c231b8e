package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/Veraticus/edc-mapper/internal/common"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
)

// PredictService is the part of the mapping service the predictor needs.
type PredictService interface {
	Predict(ctx context.Context, sponsor string, doc *model.Document) (service.PredictResult, error)
}

// PredictionState is the predictor's editable result set.
type PredictionState struct {
	Sponsor    string                `json:"sponsor"`
	SourceFile string                `json:"source_file"`
	Mappings   []model.Mapping       `json:"mappings"`
	Groups     []model.UnmappedGroup `json:"groups"`
}

func (s PredictionState) clone() PredictionState {
	s.Mappings = slices.Clone(s.Mappings)
	groups := make([]model.UnmappedGroup, len(s.Groups))
	for i, g := range s.Groups {
		groups[i] = g.Clone()
	}
	s.Groups = groups
	return s
}

// Predictor runs a test document through the sponsor's model and keeps the
// result editable until it is saved.
type Predictor struct {
	client    PredictService
	gateway   service.Gateway
	saveGuard *guard
	document  *model.Document
	state     PredictionState
	base
}

var _ Workflow = (*Predictor)(nil)

// NewPredictor creates a predictor bound to store.
func NewPredictor(store *session.Store, client PredictService, gateway service.Gateway) *Predictor {
	p := &Predictor{
		client:    client,
		gateway:   gateway,
		saveGuard: newGuard(),
	}
	p.init(store, "predictor")
	return p
}

// Kind implements Workflow.
func (p *Predictor) Kind() Kind { return KindPredict }

// SetDocument selects the test document. Nil clears the selection.
func (p *Predictor) SetDocument(doc *model.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.document = doc
}

// Submit predicts mappings for the selected document. On failure the
// previous results stay in place.
func (p *Predictor) Submit(ctx context.Context) error {
	if err := p.guard.acquire(); err != nil {
		return err
	}
	defer p.guard.release()

	p.mu.RLock()
	doc := p.document
	p.mu.RUnlock()

	if doc == nil {
		return p.reject("Upload test ODM file for prediction", common.ErrMissingDocument)
	}
	sponsor := p.store.Sponsor()
	if sponsor == "" {
		return p.reject("Select a sponsor", common.ErrNoSponsor)
	}

	p.begin("Predicting…")
	defer p.store.SetLoading(false)

	p.logger.Info("Predicting mappings", "sponsor", sponsor, "document", doc.Name)
	result, err := p.client.Predict(ctx, sponsor, doc)
	if err != nil {
		return p.fail(err, mapper.FallbackPredict, "Prediction error")
	}

	groups := GroupUnmapped(result.Unmapped)
	if !p.detached.Load() {
		p.mu.Lock()
		p.state = PredictionState{
			Sponsor:    sponsor,
			SourceFile: doc.Name,
			Mappings:   model.KeyMappings(result.Mapped),
			Groups:     groups,
		}
		p.mu.Unlock()
	}

	p.logger.Info("Prediction complete",
		"mapped", len(result.Mapped),
		"unmapped_rows", len(result.Unmapped),
		"groups", len(groups))

	p.succeed("Prediction successful")
	p.store.AppendActivity(model.ActivityPredict, fmt.Sprintf("Prediction run for %s using %s", sponsor, doc.Name))
	p.store.MergeStats(session.StatsPatch{
		Mappings:    session.Add(len(result.Mapped)),
		LastUpdated: session.Value(p.store.Now()),
	})
	return nil
}

// Mappings returns a copy of the editable resolved mappings.
func (p *Predictor) Mappings() []model.Mapping {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.state.Mappings)
}

// Groups returns a copy of the unmapped groups.
func (p *Predictor) Groups() []model.UnmappedGroup {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.clone().Groups
}

// Group returns a copy of the group for a study event.
func (p *Predictor) Group(groupKey string) (model.UnmappedGroup, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	i := p.groupIndexLocked(groupKey)
	if i < 0 {
		return model.UnmappedGroup{}, fmt.Errorf("%w: %s", common.ErrUnknownGroup, groupKey)
	}
	return p.state.Groups[i].Clone(), nil
}

// EditMapping changes one field of a resolved mapping. The change is local
// until saved.
func (p *Predictor) EditMapping(key int, field model.MappingField, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.state.Mappings {
		if p.state.Mappings[i].Key != key {
			continue
		}
		if err := p.state.Mappings[i].Set(field, value); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidField, err)
		}
		return nil
	}
	return fmt.Errorf("%w: key %d", common.ErrUnknownMapping, key)
}

// EditField sets the chosen item or the IMPACT visit of a group. The item
// must be empty or one of the group's candidates.
func (p *Predictor) EditField(groupKey string, field model.GroupField, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.groupIndexLocked(groupKey)
	if i < 0 {
		return fmt.Errorf("%w: %s", common.ErrUnknownGroup, groupKey)
	}
	group := &p.state.Groups[i]

	switch field {
	case model.GroupFieldItem:
		if value != "" && !group.HasCandidate(value) {
			return fmt.Errorf("%w: %s is not observed for %s", common.ErrInvalidCandidate, value, groupKey)
		}
		group.ItemEdit = value
	case model.GroupFieldImpact:
		group.ImpactEdit = value
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidField, field)
	}
	return nil
}

// SetAction switches a group between Edit and Ignore.
func (p *Predictor) SetAction(groupKey string, action model.GroupAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.groupIndexLocked(groupKey)
	if i < 0 {
		return fmt.Errorf("%w: %s", common.ErrUnknownGroup, groupKey)
	}
	if err := p.state.Groups[i].Apply(action); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidAction, err)
	}
	return nil
}

// SavePayload is the resolved mappings plus every group that is not
// ignored and has both edits filled in.
func (p *Predictor) SavePayload() []model.Mapping {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return BuildSavePayload(p.state.Mappings, p.state.Groups)
}

// Save persists the save payload against the document of the last
// successful prediction. Local state is not invalidated afterwards.
func (p *Predictor) Save(ctx context.Context) error {
	if err := p.saveGuard.acquire(); err != nil {
		return err
	}
	defer p.saveGuard.release()

	p.mu.RLock()
	source := p.state.SourceFile
	payload := BuildSavePayload(p.state.Mappings, p.state.Groups)
	p.mu.RUnlock()

	if source == "" {
		return p.reject("No ODM file associated with mappings to save.", common.ErrNoSourceDocument)
	}

	p.begin("Saving mappings…")
	defer p.store.SetLoading(false)

	p.logger.Info("Saving mappings", "document", source, "count", len(payload))
	if err := p.gateway.SaveMappings(ctx, service.SaveRequest{
		ODMFilename: source,
		Mappings:    payload,
	}); err != nil {
		return p.fail(err, mapper.FallbackSave, "Save error")
	}

	p.succeed("Mappings saved")
	p.store.AppendActivity(model.ActivitySave, fmt.Sprintf("Saved %d mappings for %s", len(payload), source))
	return nil
}

// State returns a copy of the prediction result set.
func (p *Predictor) State() PredictionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.clone()
}

// Restore replaces the result set, re-keying mappings by position.
func (p *Predictor) Restore(state PredictionState) {
	state = state.clone()
	state.Mappings = model.KeyMappings(state.Mappings)
	if state.Groups == nil {
		state.Groups = []model.UnmappedGroup{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

// Reset discards the result set and the selected document.
func (p *Predictor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = PredictionState{}
	p.document = nil
}

// View implements Workflow.
func (p *Predictor) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return View{
		Kind:   KindPredict,
		Inputs: []string{model.DocumentName(p.document)},
		Busy:   p.guard.busy() || p.saveGuard.busy(),
		Err:    p.lastErr,
		Result: p.state.clone(),
	}
}

func (p *Predictor) groupIndexLocked(groupKey string) int {
	for i := range p.state.Groups {
		if p.state.Groups[i].Key() == groupKey {
			return i
		}
	}
	return -1
}
