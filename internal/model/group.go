package model

import (
	"fmt"
	"slices"
)

// GroupAction is the user's disposition of an unmapped group.
type GroupAction string

const (
	// ActionEdit marks the group for manual resolution.
	ActionEdit GroupAction = "Edit"
	// ActionIgnore excludes the group from saving.
	ActionIgnore GroupAction = "Ignore"
)

// ParseGroupAction converts user input into a GroupAction.
func ParseGroupAction(s string) (GroupAction, error) {
	switch s {
	case "Edit", "edit":
		return ActionEdit, nil
	case "Ignore", "ignore":
		return ActionIgnore, nil
	}
	return "", fmt.Errorf("unknown action %q (want Edit or Ignore)", s)
}

// GroupField names a user-editable attribute of an unmapped group.
type GroupField string

const (
	// GroupFieldItem is the chosen ItemOID; it must be one of the group's candidates.
	GroupFieldItem GroupField = "itemEdit"
	// GroupFieldImpact is the free-text IMPACT visit identifier.
	GroupFieldImpact GroupField = "impactEdit"
)

// UnmappedGroup aggregates the unresolved rows of a single study event.
// EditMode and IsIgnored are mutually exclusive.
type UnmappedGroup struct {
	StudyEventOID string   `json:"StudyEventOID"`
	ItemEdit      string   `json:"itemEdit"`
	ImpactEdit    string   `json:"impactEdit"`
	Candidates    []string `json:"candidates"`
	EditMode      bool     `json:"editMode"`
	IsIgnored     bool     `json:"isIgnored"`
}

// Key identifies the group.
func (g *UnmappedGroup) Key() string {
	return g.StudyEventOID
}

// HasCandidate reports whether item was observed for this event.
func (g *UnmappedGroup) HasCandidate(item string) bool {
	return slices.Contains(g.Candidates, item)
}

// AddCandidate appends item unless it is already present.
func (g *UnmappedGroup) AddCandidate(item string) {
	if !g.HasCandidate(item) {
		g.Candidates = append(g.Candidates, item)
	}
}

// Apply sets the group's disposition. Choosing one mode clears the other.
func (g *UnmappedGroup) Apply(action GroupAction) error {
	switch action {
	case ActionIgnore:
		g.IsIgnored = true
		g.EditMode = false
	case ActionEdit:
		g.EditMode = true
		g.IsIgnored = false
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

// Eligible reports whether the group contributes to a save payload.
func (g *UnmappedGroup) Eligible() bool {
	return !g.IsIgnored && g.ItemEdit != "" && g.ImpactEdit != ""
}

// Project converts the group's edits into a mapping.
func (g *UnmappedGroup) Project() Mapping {
	return Mapping{
		StudyEventOID: g.StudyEventOID,
		ItemOID:       g.ItemEdit,
		IMPACTVisitID: g.ImpactEdit,
	}
}

// Clone returns a deep copy of the group.
func (g UnmappedGroup) Clone() UnmappedGroup {
	g.Candidates = slices.Clone(g.Candidates)
	return g
}
