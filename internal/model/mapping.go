// Package model defines the data types shared by the edcmap workflows.
package model

import "fmt"

// MappingField names an editable attribute of a resolved mapping.
type MappingField string

const (
	// FieldStudyEvent is the EDC study event identifier.
	FieldStudyEvent MappingField = "StudyEventOID"
	// FieldItem is the EDC item identifier.
	FieldItem MappingField = "ItemOID"
	// FieldImpactVisit is the IMPACT visit identifier the item maps to.
	FieldImpactVisit MappingField = "IMPACTVisitID"
)

// Mapping is a resolved field mapping produced by prediction or validation.
// Key is the position the mapping had in the response it arrived in and is
// only used to address local edits.
type Mapping struct {
	WronglyMapped *bool  `json:"wrongly_mapped,omitempty"`
	StudyEventOID string `json:"StudyEventOID"`
	ItemOID       string `json:"ItemOID"`
	IMPACTVisitID string `json:"IMPACTVisitID"`
	Key           int    `json:"-"`
}

// Set assigns value to the named field.
func (m *Mapping) Set(field MappingField, value string) error {
	switch field {
	case FieldStudyEvent:
		m.StudyEventOID = value
	case FieldItem:
		m.ItemOID = value
	case FieldImpactVisit:
		m.IMPACTVisitID = value
	default:
		return fmt.Errorf("unknown mapping field %q", field)
	}
	return nil
}

// RawRow is an unresolved row as reported by the mapping service.
type RawRow struct {
	StudyEventOID string `json:"StudyEventOID"`
	ItemOID       string `json:"ItemOID"`
}

// KeyMappings stamps each mapping with its position in the slice.
func KeyMappings(mappings []Mapping) []Mapping {
	keyed := make([]Mapping, len(mappings))
	for i, m := range mappings {
		m.Key = i
		keyed[i] = m
	}
	return keyed
}
