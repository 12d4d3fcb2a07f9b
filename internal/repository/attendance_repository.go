package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/luminar-sync-api/internal/models"
)

// AttendanceRepository persists the local per-period attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, class_id, subject_id, date, period, roster, lesson_notes, remote_synced_at, remote_sync_error, created_at, updated_at`

// Upsert inserts or updates the single record allowed per (class, subject,
// date, period).
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (class_id, subject_id, date, period)
DO UPDATE SET roster = EXCLUDED.roster, lesson_notes = EXCLUDED.lesson_notes, updated_at = EXCLUDED.updated_at
RETURNING %s`, attendanceColumns, attendanceColumns)
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query,
		record.ID, record.ClassID, record.SubjectID, record.Date, record.Period,
		record.Roster, record.LessonNotes, record.RemoteSyncedAt, record.RemoteSyncError,
		record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance record: %w", err)
	}
	return &stored, nil
}

// ListByClassAndDate returns every ledger record for a class on one day.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE class_id = $1 AND date = $2 ORDER BY subject_id, period`, attendanceColumns)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, classID, date); err != nil {
		return nil, fmt.Errorf("list attendance by class and date: %w", err)
	}
	return rows, nil
}

// ListByClassAndRange returns every ledger record for a class inside an
// inclusive date range.
func (r *AttendanceRepository) ListByClassAndRange(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE class_id = $1 AND date >= $2 AND date <= $3 ORDER BY date, subject_id, period`, attendanceColumns)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance by class and range: %w", err)
	}
	return rows, nil
}

// ListGroup returns the records of one (class, subject, date) group ordered by
// period.
func (r *AttendanceRepository) ListGroup(ctx context.Context, classID, subjectID string, date time.Time) ([]models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE class_id = $1 AND subject_id = $2 AND date = $3 ORDER BY period`, attendanceColumns)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, classID, subjectID, date); err != nil {
		return nil, fmt.Errorf("list attendance group: %w", err)
	}
	return rows, nil
}

// MarkSynced stamps the remote sync marker on the given records and clears any
// previous sync error. Every record of a group receives the same timestamp.
func (r *AttendanceRepository) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE attendance_records SET remote_synced_at = $1, remote_sync_error = NULL, updated_at = $1 WHERE id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark attendance synced: %w", err)
	}
	return nil
}

// MarkSyncError persists a push failure reason so it survives a reload. The
// sync timestamp is left untouched.
func (r *AttendanceRepository) MarkSyncError(ctx context.Context, ids []string, message string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE attendance_records SET remote_sync_error = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := r.db.ExecContext(ctx, query, message, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark attendance sync error: %w", err)
	}
	return nil
}

// ClearSyncMarkers removes both the sync timestamp and error, returning the
// records to a pushable state. The records themselves are never deleted here.
func (r *AttendanceRepository) ClearSyncMarkers(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE attendance_records SET remote_synced_at = NULL, remote_sync_error = NULL, updated_at = $1 WHERE id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("clear attendance sync markers: %w", err)
	}
	return nil
}

// Delete removes a ledger record. Callers are responsible for reconciling the
// remote side first when the record was previously synced.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance record: %w", err)
	}
	return nil
}
