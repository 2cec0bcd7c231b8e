package model

// TrueMapping lists the accepted values for one field of a validated row.
type TrueMapping struct {
	Field          string   `json:"field"`
	CorrectOptions []string `json:"correct_options"`
}

// ValidationRecord is the service's verdict on one row of a user mapping document.
type ValidationRecord struct {
	IMPACTVisitID     string        `json:"IMPACTVisitID"`
	EDCVisitID        string        `json:"EDCVisitID"`
	IMPACTAttributeID string        `json:"IMPACTAttributeID"`
	EDCAttributeID    string        `json:"EDCAttributeID"`
	TrueMappings      []TrueMapping `json:"TrueMappings"`
	WronglyMapped     bool          `json:"wrongly_mapped"`
}

// ValidationSummary condenses one validation run.
type ValidationSummary struct {
	Total    int     `json:"total"`
	Wrong    int     `json:"wrong"`
	Accuracy float64 `json:"accuracy"`
}
