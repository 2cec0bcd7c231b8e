package session

import (
	"time"

	"github.com/Veraticus/edc-mapper/internal/model"
)

// Field updates one statistic from its previous value.
type Field[T any] func(prev T) T

// Value replaces a statistic outright.
func Value[T any](v T) Field[T] {
	return func(T) T { return v }
}

// Add increments a counter.
func Add(n int) Field[int] {
	return func(prev int) int { return prev + n }
}

// StatsPatch is a shallow, partial update of KnowledgeStats. Nil fields are
// left untouched.
type StatsPatch struct {
	Models            Field[int]
	Mappings          Field[int]
	Accuracy          Field[float64]
	LastUpdated       Field[time.Time]
	AvailableSponsors Field[[]string]
}

func (p StatsPatch) apply(stats model.KnowledgeStats) model.KnowledgeStats {
	if p.Models != nil {
		stats.Models = p.Models(stats.Models)
	}
	if p.Mappings != nil {
		stats.Mappings = p.Mappings(stats.Mappings)
	}
	if p.Accuracy != nil {
		stats.Accuracy = p.Accuracy(stats.Accuracy)
	}
	if p.LastUpdated != nil {
		stats.LastUpdated = p.LastUpdated(stats.LastUpdated)
	}
	if p.AvailableSponsors != nil {
		stats.AvailableSponsors = p.AvailableSponsors(stats.AvailableSponsors)
	}
	return stats
}
