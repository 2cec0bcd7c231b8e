package model

import (
	"slices"
	"time"
)

// KnowledgeStats aggregates what the session knows about trained models.
type KnowledgeStats struct {
	LastUpdated       time.Time `json:"last_updated"`
	AvailableSponsors []string  `json:"available_sponsors"`
	Models            int       `json:"models"`
	Mappings          int       `json:"mappings"`
	Accuracy          float64   `json:"accuracy"`
}

// Clone returns a deep copy.
func (k KnowledgeStats) Clone() KnowledgeStats {
	k.AvailableSponsors = slices.Clone(k.AvailableSponsors)
	return k
}

// LastUpdatedLabel renders the last-updated stamp, or a dash when never set.
func (k KnowledgeStats) LastUpdatedLabel() string {
	if k.LastUpdated.IsZero() {
		return "—"
	}
	return k.LastUpdated.Local().Format("2006-01-02 15:04:05")
}
