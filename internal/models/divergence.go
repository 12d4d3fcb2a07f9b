package models

// DivergenceClassification labels one student's cross-system comparison.
type DivergenceClassification string

const (
	DivergenceMatched   DivergenceClassification = "matched"
	DivergenceDivergent DivergenceClassification = "divergent"
	DivergenceUnmapped  DivergenceClassification = "unmapped"
)

// DivergenceRow compares one student's locally-merged presence sequence with
// the remote per-period sequence for the same day.
type DivergenceRow struct {
	StudentID       string                   `json:"student_id"`
	StudentName     string                   `json:"student_name"`
	RemoteStudentID string                   `json:"remote_student_id,omitempty"`
	LocalSequence   string                   `json:"local_sequence"`
	RemoteSequence  string                   `json:"remote_sequence"`
	Classification  DivergenceClassification `json:"classification"`
}

// DivergenceReport is the read-only cross-check of one (class, subject, date).
type DivergenceReport struct {
	ClassID           string          `json:"class_id"`
	SubjectID         string          `json:"subject_id"`
	Date              string          `json:"date"`
	LocalPeriods      []int           `json:"local_periods"`
	RemotePeriodCount int             `json:"remote_period_count"`
	RemoteOnlyPeriods int             `json:"remote_only_periods"`
	Rows              []DivergenceRow `json:"rows"`
}
