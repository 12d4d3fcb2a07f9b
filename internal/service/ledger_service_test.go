package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/luminar-sync-api/internal/dto"
	"github.com/noah-isme/luminar-sync-api/internal/models"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

type stubAttendanceStore struct {
	records []models.AttendanceRecord
	deleted []string
}

func (s *stubAttendanceStore) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	stored := *record
	stored.ID = "rec-stored"
	return &stored, nil
}

func (s *stubAttendanceStore) ListByClassAndRange(ctx context.Context, classID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	return s.records, nil
}

func (s *stubAttendanceStore) ListGroup(ctx context.Context, classID, subjectID string, date time.Time) ([]models.AttendanceRecord, error) {
	return s.records, nil
}

func (s *stubAttendanceStore) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func TestLedgerServiceUpsertValidatesPayload(t *testing.T) {
	svc := NewLedgerService(&stubAttendanceStore{}, nil, nil)

	_, err := svc.Upsert(context.Background(), dto.UpsertAttendanceRequest{
		ClassID: "class-1",
		Date:    "2026-03-10",
		Period:  1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLedgerServiceUpsertBuildsRoster(t *testing.T) {
	svc := NewLedgerService(&stubAttendanceStore{}, nil, nil)

	record, err := svc.Upsert(context.Background(), dto.UpsertAttendanceRequest{
		ClassID:   "class-1",
		SubjectID: "subj-1",
		Date:      "2026-03-10",
		Period:    2,
		Roster: []dto.RosterEntryItem{
			{StudentID: "stu-1", StudentName: "Ana Souza", Present: true},
			{StudentID: "stu-2", StudentName: "Bruno Dias", Present: false, Note: "atestado"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-stored", record.ID)
	assert.Equal(t, 2, record.Period)
	require.Len(t, record.Roster, 2)
	assert.Nil(t, record.Roster[0].Note)
	require.NotNil(t, record.Roster[1].Note)
	assert.Equal(t, "atestado", *record.Roster[1].Note)
}

func TestLedgerServiceStatusDerivesGroupStates(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	syncedAt := date.Add(12 * time.Hour)
	errMsg := "mapping not found for subject subj-2"
	store := &stubAttendanceStore{records: []models.AttendanceRecord{
		{ID: "rec-1", ClassID: "class-1", SubjectID: "subj-1", Date: date, Period: 1, RemoteSyncedAt: &syncedAt},
		{ID: "rec-2", ClassID: "class-1", SubjectID: "subj-1", Date: date, Period: 2, RemoteSyncedAt: &syncedAt},
		{ID: "rec-3", ClassID: "class-1", SubjectID: "subj-2", Date: date, Period: 1, RemoteSyncError: &errMsg},
	}}
	svc := NewLedgerService(store, nil, nil)

	items, err := svc.Status(context.Background(), "class-1", "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "synced", items[0].Status)
	assert.Equal(t, 2, items[0].Periods)
	assert.Empty(t, items[0].Message)

	assert.Equal(t, "pending", items[1].Status)
	assert.Equal(t, errMsg, items[1].Message, "persisted push failures survive a reload")
}

func TestLedgerServiceRangeValidation(t *testing.T) {
	svc := NewLedgerService(&stubAttendanceStore{}, nil, nil)

	_, err := svc.Groups(context.Background(), "class-1", "2026-03-31", "2026-03-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
