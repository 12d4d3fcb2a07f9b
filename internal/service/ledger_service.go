package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/dto"
	"github.com/noah-isme/luminar-sync-api/internal/models"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

type attendanceStore interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ListByClassAndRange(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error)
	ListGroup(ctx context.Context, classID, subjectID string, date time.Time) ([]models.AttendanceRecord, error)
	Delete(ctx context.Context, id string) error
}

// LedgerService manages the local per-period attendance ledger. It never talks
// to the remote system; the sync orchestrator does that on top of it.
type LedgerService struct {
	store     attendanceStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs a LedgerService instance.
func NewLedgerService(store attendanceStore, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LedgerService{store: store, validator: validate, logger: logger}
}

// Upsert creates or replaces the single record per (class, subject, date,
// period). Re-submitting a period replaces its roster wholesale.
func (s *LedgerService) Upsert(ctx context.Context, req dto.UpsertAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	roster := make(models.RosterEntries, 0, len(req.Roster))
	for _, entry := range req.Roster {
		item := models.RosterEntry{
			StudentID:   entry.StudentID,
			StudentName: entry.StudentName,
			Present:     entry.Present,
		}
		if entry.Note != "" {
			note := entry.Note
			item.Note = &note
		}
		roster = append(roster, item)
	}
	toStore := &models.AttendanceRecord{
		ClassID:   req.ClassID,
		SubjectID: req.SubjectID,
		Date:      date,
		Period:    req.Period,
		Roster:    roster,
	}
	if req.LessonNotes != "" {
		toStore.LessonNotes = &req.LessonNotes
	}
	record, err := s.store.Upsert(ctx, toStore)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert attendance record")
	}
	return record, nil
}

// ListRange returns ledger records for a class over an inclusive date range.
func (s *LedgerService) ListRange(ctx context.Context, req dto.ListAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance query")
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListByClassAndRange(ctx, req.ClassID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	return records, nil
}

// Groups derives the per-day sync groups for a class over a date range.
func (s *LedgerService) Groups(ctx context.Context, classID, fromRaw, toRaw string) ([]models.AttendanceGroup, error) {
	from, to, err := parseRange(fromRaw, toRaw)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListByClassAndRange(ctx, classID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance records")
	}
	return models.BuildGroups(records), nil
}

// Group returns the records of one (class, subject, date) group.
func (s *LedgerService) Group(ctx context.Context, classID, subjectID, dateRaw string) ([]models.AttendanceRecord, error) {
	date, err := time.Parse(models.DateLayout, dateRaw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	records, err := s.store.ListGroup(ctx, classID, subjectID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance group")
	}
	return records, nil
}

// Status renders the derived group statuses without touching the remote side.
func (s *LedgerService) Status(ctx context.Context, classID, fromRaw, toRaw string) ([]dto.SyncStatusItem, error) {
	groups, err := s.Groups(ctx, classID, fromRaw, toRaw)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SyncStatusItem, 0, len(groups))
	for _, group := range groups {
		message := group.Message
		if message == "" {
			message = lastSyncError(group.Records)
		}
		items = append(items, dto.SyncStatusItem{
			Key:       group.Key(),
			ClassID:   group.ClassID,
			SubjectID: group.SubjectID,
			Date:      group.Date.Format(models.DateLayout),
			Periods:   len(group.Records),
			Status:    string(group.Status),
			Message:   message,
		})
	}
	return items, nil
}

// Delete removes one ledger record.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "missing record id")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance record")
	}
	return nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := time.Parse(models.DateLayout, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid from date")
	}
	to, err := time.Parse(models.DateLayout, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid to date")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to date precedes from date")
	}
	return from, to, nil
}

func lastSyncError(records []models.AttendanceRecord) string {
	for _, rec := range records {
		if rec.RemoteSyncError != nil && *rec.RemoteSyncError != "" {
			return *rec.RemoteSyncError
		}
	}
	return ""
}
