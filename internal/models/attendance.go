package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the wire and key format for ledger dates.
const DateLayout = "2006-01-02"

// RosterEntry is one student's presence inside a single class-period record.
type RosterEntry struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Present     bool    `json:"present"`
	Note        *string `json:"note,omitempty"`
}

// RosterEntries is stored as a jsonb column on attendance_records.
type RosterEntries []RosterEntry

// Value implements driver.Valuer for jsonb persistence.
func (r RosterEntries) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for jsonb persistence.
func (r *RosterEntries) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported roster source type %T", src)
	}
}

// AttendanceRecord is the local ledger row: one per (class, subject, date,
// period). The remote SGE system has no counterpart at this granularity; it
// stores one record per (class, subject, date) spanning N periods.
type AttendanceRecord struct {
	ID              string        `db:"id" json:"id"`
	ClassID         string        `db:"class_id" json:"class_id"`
	SubjectID       string        `db:"subject_id" json:"subject_id"`
	Date            time.Time     `db:"date" json:"date"`
	Period          int           `db:"period" json:"period"`
	Roster          RosterEntries `db:"roster" json:"roster"`
	LessonNotes     *string       `db:"lesson_notes" json:"lesson_notes,omitempty"`
	RemoteSyncedAt  *time.Time    `db:"remote_synced_at" json:"remote_synced_at,omitempty"`
	RemoteSyncError *string       `db:"remote_sync_error" json:"remote_sync_error,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// SyncStatus tracks one group's progress through a batch operation.
type SyncStatus string

const (
	SyncStatusPending      SyncStatus = "pending"
	SyncStatusSending      SyncStatus = "sending"
	SyncStatusSynced       SyncStatus = "synced"
	SyncStatusRemoteExists SyncStatus = "remote_exists"
	SyncStatusError        SyncStatus = "error"
)

// Valid returns true when the status is a supported value.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSending, SyncStatusSynced, SyncStatusRemoteExists, SyncStatusError:
		return true
	default:
		return false
	}
}

// AttendanceGroup is the set of ledger records sharing (date, class, subject):
// the unit mapping to exactly one remote SGE record. It references its member
// records, it does not own separate storage.
type AttendanceGroup struct {
	ClassID   string             `json:"class_id"`
	SubjectID string             `json:"subject_id"`
	Date      time.Time          `json:"date"`
	Records   []AttendanceRecord `json:"records"`
	Status    SyncStatus         `json:"status"`
	Message   string             `json:"message,omitempty"`
}

// Key identifies the group as date|classID|subjectID.
func (g *AttendanceGroup) Key() string {
	return fmt.Sprintf("%s|%s|%s", g.Date.Format(DateLayout), g.ClassID, g.SubjectID)
}

// RecordIDs returns the ids of all member records.
func (g *AttendanceGroup) RecordIDs() []string {
	ids := make([]string, len(g.Records))
	for i, rec := range g.Records {
		ids[i] = rec.ID
	}
	return ids
}

// Synced reports whether every member record carries a remote sync marker.
func (g *AttendanceGroup) Synced() bool {
	if len(g.Records) == 0 {
		return false
	}
	for _, rec := range g.Records {
		if rec.RemoteSyncedAt == nil {
			return false
		}
	}
	return true
}

// BuildGroups folds ledger records into groups keyed by (date, class, subject).
// Records inside a group are ordered by period; groups are ordered by key so
// batch processing is deterministic. Groups whose every record is already
// marked synced start in SyncStatusSynced, everything else in pending.
func BuildGroups(records []AttendanceRecord) []AttendanceGroup {
	byKey := make(map[string]*AttendanceGroup)
	for _, rec := range records {
		key := fmt.Sprintf("%s|%s|%s", rec.Date.Format(DateLayout), rec.ClassID, rec.SubjectID)
		group, ok := byKey[key]
		if !ok {
			group = &AttendanceGroup{ClassID: rec.ClassID, SubjectID: rec.SubjectID, Date: rec.Date, Status: SyncStatusPending}
			byKey[key] = group
		}
		group.Records = append(group.Records, rec)
	}

	groups := make([]AttendanceGroup, 0, len(byKey))
	for _, group := range byKey {
		sort.Slice(group.Records, func(i, j int) bool {
			return group.Records[i].Period < group.Records[j].Period
		})
		if group.Synced() {
			group.Status = SyncStatusSynced
		}
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key() < groups[j].Key()
	})
	return groups
}

// Class is the local class entity, carrying the fields class-mapping discovery
// matches against SGE class options.
type Class struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Series string `db:"series" json:"series"`
	Code   string `db:"code" json:"code"`
	Shift  string `db:"shift" json:"shift"`
}

// Subject is the local subject entity.
type Subject struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
