package workflow

import "github.com/Veraticus/edc-mapper/internal/model"

// GroupUnmapped folds unresolved rows into one group per study event, in
// first-seen order. Each group lists every distinct item observed for its
// event exactly once, in first-seen order.
func GroupUnmapped(rows []model.RawRow) []model.UnmappedGroup {
	groups := make([]model.UnmappedGroup, 0)
	index := make(map[string]int)

	for _, row := range rows {
		i, ok := index[row.StudyEventOID]
		if !ok {
			i = len(groups)
			index[row.StudyEventOID] = i
			groups = append(groups, model.UnmappedGroup{
				StudyEventOID: row.StudyEventOID,
				Candidates:    []string{},
			})
		}
		groups[i].AddCandidate(row.ItemOID)
	}
	return groups
}

// BuildSavePayload returns the resolved mappings followed by the projection
// of every eligible group.
func BuildSavePayload(mappings []model.Mapping, groups []model.UnmappedGroup) []model.Mapping {
	payload := make([]model.Mapping, 0, len(mappings)+len(groups))
	payload = append(payload, mappings...)
	for i := range groups {
		if groups[i].Eligible() {
			payload = append(payload, groups[i].Project())
		}
	}
	return payload
}
