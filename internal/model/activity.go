package model

import "time"

// ActivityType classifies an activity log entry.
type ActivityType string

// Activity types recorded by the workflows.
const (
	ActivityTrain    ActivityType = "train"
	ActivityPredict  ActivityType = "predict"
	ActivityValidate ActivityType = "validate"
	ActivitySave     ActivityType = "save_mappings"
	ActivityExport   ActivityType = "export"
	ActivitySponsor  ActivityType = "sponsor"
)

// ActivityEntry is one line of the session's activity log.
type ActivityEntry struct {
	Timestamp time.Time    `json:"time"`
	Type      ActivityType `json:"type"`
	Message   string       `json:"message"`
}
