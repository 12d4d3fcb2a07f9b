package service

import (
	"sort"

	"github.com/noah-isme/luminar-sync-api/internal/models"
)

// MergedGroup is one group's ledger collapsed into the shape of a remote SGE
// record: one roster spanning the whole day plus the number of periods taught.
type MergedGroup struct {
	Roster      []models.RosterEntry
	PeriodCount int
}

// MergeGroup folds the per-period records of one (class, subject, date) group
// into a single per-day roster. A student present in any period of the day is
// present for the day; absence wins only when the student is absent in every
// period they appear in. PeriodCount is the number of records, which maps to
// the remote period-count field.
//
// The result is independent of the order records are passed in: records are
// folded in period order and the first sighting of a student fixes their place
// in the merged roster.
func MergeGroup(records []models.AttendanceRecord) MergedGroup {
	ordered := make([]models.AttendanceRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Period < ordered[j].Period })

	index := make(map[string]int)
	merged := MergedGroup{PeriodCount: len(records)}
	for _, rec := range ordered {
		for _, entry := range rec.Roster {
			if i, seen := index[entry.StudentID]; seen {
				merged.Roster[i].Present = merged.Roster[i].Present || entry.Present
				continue
			}
			index[entry.StudentID] = len(merged.Roster)
			merged.Roster = append(merged.Roster, models.RosterEntry{
				StudentID:   entry.StudentID,
				StudentName: entry.StudentName,
				Present:     entry.Present,
			})
		}
	}
	return merged
}
