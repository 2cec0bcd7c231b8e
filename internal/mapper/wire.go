package mapper

import (
	"time"

	"github.com/Veraticus/edc-mapper/internal/model"
)

type modelStatusResponse struct {
	AvailableSponsors *[]string `json:"available_sponsors"`
	Available         *bool     `json:"available"`
}

type knowledgeStatsResponse struct {
	Accuracy    *float64 `json:"accuracy"`
	LastUpdated *string  `json:"last_updated"`
	Models      int      `json:"models"`
	Mappings    int      `json:"mappings"`
}

type activityResponse struct {
	Activities []activityEntry `json:"activities"`
}

type activityEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type predictResponse struct {
	Mapped   *[]model.Mapping `json:"mapped"`
	Mappings []model.Mapping  `json:"mappings"`
	Unmapped []model.RawRow   `json:"unmapped"`
}

type validateResponse struct {
	Summary    *validateSummary         `json:"summary"`
	Validation []model.ValidationRecord `json:"validation"`
}

type validateSummary struct {
	Accuracy *float64 `json:"accuracy"`
	Total    int      `json:"total"`
	Wrong    int      `json:"wrong"`
}

// timeLayouts covers RFC3339 and the naive ISO stamps the service writes.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp parses a service timestamp; naive stamps are taken as UTC.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
