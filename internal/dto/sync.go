package dto

// SyncBatchRequest selects the ledger slice a push, verify or delete batch
// operates on.
type SyncBatchRequest struct {
	ClassID string `json:"class_id" validate:"required"`
	From    string `json:"from" validate:"required,datetime=2006-01-02"`
	To      string `json:"to" validate:"required,datetime=2006-01-02"`
}

// GroupOutcomeItem is one group's terminal state after a batch operation.
type GroupOutcomeItem struct {
	Key       string `json:"key"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// SyncBatchResponse reports the outcome of a whole batch.
type SyncBatchResponse struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	Groups    []GroupOutcomeItem `json:"groups"`
}

// SyncStatusItem is one group's derived status as read from the ledger,
// without touching the remote system.
type SyncStatusItem struct {
	Key       string `json:"key"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
	Periods   int    `json:"periods"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// DivergenceRequest identifies the single group to cross-check.
type DivergenceRequest struct {
	ClassID   string `form:"class_id" validate:"required"`
	SubjectID string `form:"subject_id" validate:"required"`
	Date      string `form:"date" validate:"required,datetime=2006-01-02"`
}

// MappingResponse exposes the caller's confirmed identity dictionaries.
type MappingResponse struct {
	Classes  map[string]ClassMappingItem `json:"classes"`
	Subjects map[string]string           `json:"subjects"`
	Students map[string]string           `json:"students"`
}

// ClassMappingItem is the remote identity of one local class.
type ClassMappingItem struct {
	Series    string `json:"series"`
	ClassCode string `json:"class_code"`
	Shift     string `json:"shift"`
}

// UpsertAccountRequest configures the caller's remote credentials.
type UpsertAccountRequest struct {
	SGEUser      string `json:"sge_user" validate:"required"`
	SGEPassword  string `json:"sge_password" validate:"required"`
	AcademicYear int    `json:"academic_year" validate:"required,min=2000,max=2100"`
}

// AccountResponse is the stored account with the password masked.
type AccountResponse struct {
	ID             string `json:"id"`
	SGEUser        string `json:"sge_user"`
	SGEPasswordSet bool   `json:"sge_password_set"`
	AcademicYear   int    `json:"academic_year"`
}
