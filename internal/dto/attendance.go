package dto

// RosterEntryItem is one student's presence inside a period record payload.
type RosterEntryItem struct {
	StudentID   string `json:"student_id" validate:"required"`
	StudentName string `json:"student_name" validate:"required"`
	Present     bool   `json:"present"`
	Note        string `json:"note,omitempty"`
}

// UpsertAttendanceRequest creates or replaces the single record allowed per
// (class, subject, date, period).
type UpsertAttendanceRequest struct {
	ClassID     string            `json:"class_id" validate:"required"`
	SubjectID   string            `json:"subject_id" validate:"required"`
	Date        string            `json:"date" validate:"required,datetime=2006-01-02"`
	Period      int               `json:"period" validate:"required,min=1"`
	Roster      []RosterEntryItem `json:"roster" validate:"required,min=1,dive"`
	LessonNotes string            `json:"lesson_notes"`
}

// ListAttendanceRequest selects ledger records for a class over an inclusive
// date range.
type ListAttendanceRequest struct {
	ClassID string `form:"class_id" validate:"required"`
	From    string `form:"from" validate:"required,datetime=2006-01-02"`
	To      string `form:"to" validate:"required,datetime=2006-01-02"`
}
