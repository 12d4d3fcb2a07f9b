package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/luminar-sync-api/internal/models"
)

// MappingRepository persists confirmed local → remote identity mappings,
// scoped per sync account. Writes are append-only: an existing entry is never
// overwritten, so a second discovery of the same entity is a no-op.
type MappingRepository struct {
	db *sqlx.DB
}

// NewMappingRepository constructs the repository.
func NewMappingRepository(db *sqlx.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

type classMappingRow struct {
	ClassID   string `db:"class_id"`
	Series    string `db:"remote_series"`
	ClassCode string `db:"remote_class_code"`
	Shift     string `db:"remote_shift"`
}

type subjectMappingRow struct {
	ClassID         string `db:"class_id"`
	SubjectID       string `db:"subject_id"`
	RemoteSubjectID string `db:"remote_subject_id"`
}

type studentMappingRow struct {
	StudentID       string `db:"student_id"`
	RemoteStudentID string `db:"remote_student_id"`
}

// Load assembles the full identity mapping for one account.
func (r *MappingRepository) Load(ctx context.Context, accountID string) (*models.IdentityMapping, error) {
	mapping := models.NewIdentityMapping()

	var classes []classMappingRow
	if err := r.db.SelectContext(ctx, &classes,
		`SELECT class_id, remote_series, remote_class_code, remote_shift FROM sge_class_mappings WHERE account_id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("load class mappings: %w", err)
	}
	for _, row := range classes {
		mapping.Classes[row.ClassID] = models.ClassMapping{Series: row.Series, ClassCode: row.ClassCode, Shift: row.Shift}
	}

	var subjects []subjectMappingRow
	if err := r.db.SelectContext(ctx, &subjects,
		`SELECT class_id, subject_id, remote_subject_id FROM sge_subject_mappings WHERE account_id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("load subject mappings: %w", err)
	}
	for _, row := range subjects {
		mapping.Subjects[models.SubjectKey(row.ClassID, row.SubjectID)] = row.RemoteSubjectID
	}

	var students []studentMappingRow
	if err := r.db.SelectContext(ctx, &students,
		`SELECT student_id, remote_student_id FROM sge_student_mappings WHERE account_id = $1`, accountID); err != nil {
		return nil, fmt.Errorf("load student mappings: %w", err)
	}
	for _, row := range students {
		mapping.Students[row.StudentID] = row.RemoteStudentID
	}

	return mapping, nil
}

// SaveClassMapping records a discovered class mapping. ON CONFLICT DO NOTHING
// keeps the store append-only.
func (r *MappingRepository) SaveClassMapping(ctx context.Context, accountID, classID string, cm models.ClassMapping) error {
	query := `INSERT INTO sge_class_mappings (id, account_id, class_id, remote_series, remote_class_code, remote_shift, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (account_id, class_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), accountID, classID, cm.Series, cm.ClassCode, cm.Shift, time.Now().UTC()); err != nil {
		return fmt.Errorf("save class mapping: %w", err)
	}
	return nil
}

// SaveSubjectMapping records a discovered subject mapping.
func (r *MappingRepository) SaveSubjectMapping(ctx context.Context, accountID, classID, subjectID, remoteSubjectID string) error {
	query := `INSERT INTO sge_subject_mappings (id, account_id, class_id, subject_id, remote_subject_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (account_id, class_id, subject_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), accountID, classID, subjectID, remoteSubjectID, time.Now().UTC()); err != nil {
		return fmt.Errorf("save subject mapping: %w", err)
	}
	return nil
}

// SaveStudentMappings records newly discovered student mappings in one
// transaction.
func (r *MappingRepository) SaveStudentMappings(ctx context.Context, accountID string, mappings map[string]string) error {
	if len(mappings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student mappings: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()
	query := `INSERT INTO sge_student_mappings (id, account_id, student_id, remote_student_id, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (account_id, student_id) DO NOTHING`
	now := time.Now().UTC()
	for studentID, remoteID := range mappings {
		if _, err := tx.ExecContext(ctx, query, uuid.NewString(), accountID, studentID, remoteID, now); err != nil {
			return fmt.Errorf("save student mapping %s: %w", studentID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student mappings: %w", err)
	}
	commit = true
	return nil
}
