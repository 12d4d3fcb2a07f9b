// Package sge defines the contract this service requires from the gateway
// that fronts the remote SGE school-management system. The gateway hides the
// session and scraping mechanics of SGE behind synchronous request/response
// operations; everything above this package works on the strict types below.
package sge

import (
	"context"
	"fmt"
	"time"
)

// Credentials opens a remote session. SGE tolerates exactly one session per
// credential, which is why callers must never issue concurrent requests.
type Credentials struct {
	User     string
	Password string
}

// ClassOption is one class the credential can manage remotely, as returned by
// Login. Series, ClassCode and Shift together identify the class in every
// subsequent call; Label is the human text shown by SGE.
type ClassOption struct {
	Series    string `json:"series"`
	ClassCode string `json:"class_code"`
	Shift     string `json:"shift"`
	Label     string `json:"label"`
}

// Subject is a remote subject for a class.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Student is one remote roster entry.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PeriodStudent is one student's presence inside a single remote period.
type PeriodStudent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Present bool   `json:"present"`
}

// ClassRef pins a remote class plus subject and year for record operations.
type ClassRef struct {
	Series    string `json:"series"`
	ClassCode string `json:"class_code"`
	Shift     string `json:"shift"`
	SubjectID string `json:"subject_id"`
	Year      int    `json:"year"`
}

// SubmitResult reports a successful attendance submission.
type SubmitResult struct {
	PresentCount int `json:"present_count"`
}

// ExistsQuery asks whether a remote record exists for one day.
type ExistsQuery struct {
	Ref    ClassRef  `json:"ref"`
	Date   time.Time `json:"date"`
	Period int       `json:"period"`
}

// Client is the full surface the reconciliation core consumes.
type Client interface {
	// Login opens a session and lists the classes the credential manages.
	Login(ctx context.Context, creds Credentials) ([]ClassOption, error)
	// ListSubjects lists remote subjects for a class.
	ListSubjects(ctx context.Context, creds Credentials, series, classCode, shift string, year int) ([]Subject, error)
	// ListStudents lists the remote roster for a class.
	ListStudents(ctx context.Context, creds Credentials, series, classCode, shift string, year int) ([]Student, error)
	// SubmitAttendance records one per-day attendance entry spanning
	// periodCount periods. presence maps remote student id to present.
	SubmitAttendance(ctx context.Context, creds Credentials, ref ClassRef, date time.Time, periodCount int, presence map[string]bool) (*SubmitResult, error)
	// CheckExists answers, per query, whether a remote record exists.
	CheckExists(ctx context.Context, creds Credentials, queries []ExistsQuery) ([]bool, error)
	// FetchPeriodDetail returns the per-student presence of one remote
	// period, or an empty slice when that period was never recorded.
	FetchPeriodDetail(ctx context.Context, creds Credentials, ref ClassRef, date time.Time, period int) ([]PeriodStudent, error)
	// DeleteAttendance removes the remote record for one day.
	DeleteAttendance(ctx context.Context, creds Credentials, ref ClassRef, date time.Time) error
}

// TransportError means the gateway could not be reached or answered with an
// unexpected shape. The operation may or may not have happened remotely.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sge %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BusinessError means the gateway answered but SGE rejected the operation,
// for example because of an expired session or an invalid payload.
type BusinessError struct {
	Op     string
	Reason string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("sge %s: %s", e.Op, e.Reason)
}
