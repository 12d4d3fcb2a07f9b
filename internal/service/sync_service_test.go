package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	"github.com/noah-isme/luminar-sync-api/pkg/config"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

type stubClassReader struct {
	classes map[string]*models.Class
}

func (s *stubClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return s.classes[id], nil
}

type stubSubjectReader struct {
	subjects map[string]*models.Subject
}

func (s *stubSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	return s.subjects[id], nil
}

type stubLedger struct {
	syncedAt map[string]time.Time
	syncErr  map[string]string
	cleared  map[string]struct{}
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		syncedAt: make(map[string]time.Time),
		syncErr:  make(map[string]string),
		cleared:  make(map[string]struct{}),
	}
}

func (s *stubLedger) MarkSynced(ctx context.Context, ids []string, at time.Time) error {
	for _, id := range ids {
		s.syncedAt[id] = at
		delete(s.syncErr, id)
	}
	return nil
}

func (s *stubLedger) MarkSyncError(ctx context.Context, ids []string, message string) error {
	for _, id := range ids {
		s.syncErr[id] = message
	}
	return nil
}

func (s *stubLedger) ClearSyncMarkers(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.syncedAt, id)
		delete(s.syncErr, id)
		s.cleared[id] = struct{}{}
	}
	return nil
}

type submitCall struct {
	Ref         sge.ClassRef
	Date        time.Time
	PeriodCount int
	Presence    map[string]bool
}

type stubGateway struct {
	options      []sge.ClassOption
	subjects     []sge.Subject
	students     []sge.Student
	periodDetail map[int][]sge.PeriodStudent
	exists       map[string]bool

	loginCalls   int
	studentCalls int
	submitted    []submitCall
	deleted      []sge.ClassRef
	submitErr    error
	deleteErr    error
	existsErr    error
	detailErr    error
}

func (g *stubGateway) Login(ctx context.Context, creds sge.Credentials) ([]sge.ClassOption, error) {
	g.loginCalls++
	return g.options, nil
}

func (g *stubGateway) ListSubjects(ctx context.Context, creds sge.Credentials, series, classCode, shift string, year int) ([]sge.Subject, error) {
	return g.subjects, nil
}

func (g *stubGateway) ListStudents(ctx context.Context, creds sge.Credentials, series, classCode, shift string, year int) ([]sge.Student, error) {
	g.studentCalls++
	return g.students, nil
}

func (g *stubGateway) SubmitAttendance(ctx context.Context, creds sge.Credentials, ref sge.ClassRef, date time.Time, periodCount int, presence map[string]bool) (*sge.SubmitResult, error) {
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	g.submitted = append(g.submitted, submitCall{Ref: ref, Date: date, PeriodCount: periodCount, Presence: presence})
	present := 0
	for _, p := range presence {
		if p {
			present++
		}
	}
	return &sge.SubmitResult{PresentCount: present}, nil
}

func (g *stubGateway) CheckExists(ctx context.Context, creds sge.Credentials, queries []sge.ExistsQuery) ([]bool, error) {
	if g.existsErr != nil {
		return nil, g.existsErr
	}
	results := make([]bool, len(queries))
	for i, q := range queries {
		results[i] = g.exists[q.Ref.SubjectID+"|"+q.Date.Format(models.DateLayout)]
	}
	return results, nil
}

func (g *stubGateway) FetchPeriodDetail(ctx context.Context, creds sge.Credentials, ref sge.ClassRef, date time.Time, period int) ([]sge.PeriodStudent, error) {
	if g.detailErr != nil {
		return nil, g.detailErr
	}
	return g.periodDetail[period], nil
}

func (g *stubGateway) DeleteAttendance(ctx context.Context, creds sge.Credentials, ref sge.ClassRef, date time.Time) error {
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.deleted = append(g.deleted, ref)
	return nil
}

var testDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func testClassReader() *stubClassReader {
	return &stubClassReader{classes: map[string]*models.Class{
		"class-1": {ID: "class-1", Name: "6º Ano A", Series: "6º Ano", Code: "A", Shift: "Matutino"},
	}}
}

func testSubjectReader() *stubSubjectReader {
	return &stubSubjectReader{subjects: map[string]*models.Subject{
		"subj-math": {ID: "subj-math", Name: "Matemática"},
		"subj-hist": {ID: "subj-hist", Name: "História"},
		"subj-alch": {ID: "subj-alch", Name: "Alquimia"},
	}}
}

func testGateway() *stubGateway {
	return &stubGateway{
		options: []sge.ClassOption{
			{Series: "6", ClassCode: "A", Shift: "MATUTINO", Label: "6º ANO [A] (MATUTINO)"},
		},
		subjects: []sge.Subject{
			{ID: "r-math", Name: "MATEMÁTICA"},
			{ID: "r-hist", Name: "HISTÓRIA"},
		},
		students: []sge.Student{
			{ID: "r-x", Name: "XAVIER NUNES"},
			{ID: "r-y", Name: "YARA LIMA"},
		},
	}
}

func newSyncService(store *stubMappingStore, ledger *stubLedger, gateway *stubGateway) *SyncService {
	return NewSyncService(
		NewIdentityService(store, nil),
		testClassReader(),
		testSubjectReader(),
		ledger,
		gateway,
		nil,
		NewMetricsService(),
		config.SGEConfig{AcademicYear: 2026, ProbeExtraPeriods: 2, MaxPeriods: 7},
		nil,
	)
}

func subjectRecord(id, subjectID string, period int, roster ...models.RosterEntry) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:        id,
		ClassID:   "class-1",
		SubjectID: subjectID,
		Date:      testDate,
		Period:    period,
		Roster:    roster,
	}
}

func TestPushMergesGroupIntoSingleRemoteRecord(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	svc := newSyncService(store, ledger, gateway)

	records := []models.AttendanceRecord{
		subjectRecord("rec-1", "subj-math", 1,
			models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: false},
			models.RosterEntry{StudentID: "stu-y", StudentName: "Yara Lima", Present: true},
		),
		subjectRecord("rec-2", "subj-math", 2,
			models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true},
			models.RosterEntry{StudentID: "stu-y", StudentName: "Yara Lima", Present: true},
		),
	}
	groups := models.BuildGroups(records)

	account := &models.SyncAccount{ID: "acc-1", AcademicYear: 2026}
	result, err := svc.Push(context.Background(), account, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)

	require.Len(t, gateway.submitted, 1)
	call := gateway.submitted[0]
	assert.Equal(t, 2, call.PeriodCount)
	assert.Equal(t, map[string]bool{"r-x": true, "r-y": true}, call.Presence)
	assert.Equal(t, "r-math", call.Ref.SubjectID)

	require.Contains(t, ledger.syncedAt, "rec-1")
	require.Contains(t, ledger.syncedAt, "rec-2")
	assert.Equal(t, ledger.syncedAt["rec-1"], ledger.syncedAt["rec-2"], "one timestamp for the whole group")

	require.Len(t, result.Groups, 1)
	assert.Equal(t, models.SyncStatusSynced, result.Groups[0].Status)
}

func TestPushContinuesPastFailingGroup(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	svc := newSyncService(store, ledger, gateway)

	records := []models.AttendanceRecord{
		subjectRecord("rec-m", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true}),
		subjectRecord("rec-a", "subj-alch", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true}),
		subjectRecord("rec-h", "subj-hist", 1, models.RosterEntry{StudentID: "stu-y", StudentName: "Yara Lima", Present: true}),
	}
	groups := models.BuildGroups(records)

	account := &models.SyncAccount{ID: "acc-1"}
	result, err := svc.Push(context.Background(), account, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, gateway.submitted, 2)

	assert.Contains(t, ledger.syncErr["rec-a"], "mapping not found")
	assert.Contains(t, ledger.syncedAt, "rec-m")
	assert.Contains(t, ledger.syncedAt, "rec-h")
	assert.Equal(t, 1, gateway.loginCalls, "one login per batch")
	assert.Equal(t, 1, gateway.studentCalls, "roster fetched once per class per batch")
}

func TestPushNoMappedStudents(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	gateway.students = []sge.Student{{ID: "r-q", Name: "ALGUEM COMPLETAMENTE DIFERENTE"}}
	svc := newSyncService(store, ledger, gateway)

	records := []models.AttendanceRecord{
		subjectRecord("rec-1", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true}),
	}
	groups := models.BuildGroups(records)

	result, err := svc.Push(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, gateway.submitted)
	assert.Equal(t, appErrors.ErrNoMappedStudents.Message, ledger.syncErr["rec-1"])
}

func TestPushPersistsRemoteFailureOnRecords(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	gateway.submitErr = &sge.BusinessError{Op: "submit_attendance", Reason: "sessão expirada"}
	svc := newSyncService(store, ledger, gateway)

	records := []models.AttendanceRecord{
		subjectRecord("rec-1", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true}),
	}
	groups := models.BuildGroups(records)

	result, err := svc.Push(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, ledger.syncErr["rec-1"], "sessão expirada")
	assert.NotContains(t, ledger.syncedAt, "rec-1")
	require.Len(t, result.Groups, 1)
	assert.Equal(t, models.SyncStatusError, result.Groups[0].Status)
}

func TestPushSkipsNonPendingGroups(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	svc := newSyncService(store, ledger, gateway)

	syncedAt := testDate
	rec := subjectRecord("rec-1", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true})
	rec.RemoteSyncedAt = &syncedAt
	groups := models.BuildGroups([]models.AttendanceRecord{rec})
	require.Equal(t, models.SyncStatusSynced, groups[0].Status)

	result, err := svc.Push(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, gateway.submitted)
}

func TestPushRequiresCredentials(t *testing.T) {
	svc := newSyncService(newStubMappingStore(), newStubLedger(), testGateway())

	_, err := svc.Push(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingCredentials.Code, appErrors.FromError(err).Code)
}

func TestVerifyHealsStaleLocalMarker(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	gateway.exists = map[string]bool{}
	svc := newSyncService(store, ledger, gateway)

	syncedAt := testDate
	rec := subjectRecord("rec-1", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true})
	rec.RemoteSyncedAt = &syncedAt
	groups := models.BuildGroups([]models.AttendanceRecord{rec})

	result, err := svc.Verify(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, models.SyncStatusPending, result.Groups[0].Status)
	_, cleared := ledger.cleared["rec-1"]
	assert.True(t, cleared, "stale remote_synced_at must be cleared")
}

func TestVerifyConfirmsExistingRemoteRecord(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	gateway.exists = map[string]bool{"r-math|" + testDate.Format(models.DateLayout): true}
	svc := newSyncService(store, ledger, gateway)

	rec := subjectRecord("rec-1", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true})
	groups := models.BuildGroups([]models.AttendanceRecord{rec})

	result, err := svc.Verify(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, models.SyncStatusRemoteExists, result.Groups[0].Status)
	assert.Contains(t, ledger.syncedAt, "rec-1")
}

func TestDeleteClearsMarkersButKeepsRecords(t *testing.T) {
	store := newStubMappingStore()
	ledger := newStubLedger()
	gateway := testGateway()
	svc := newSyncService(store, ledger, gateway)

	syncedAt := testDate
	rec := subjectRecord("rec-1", "subj-math", 1, models.RosterEntry{StudentID: "stu-x", StudentName: "Xavier Nunes", Present: true})
	rec.RemoteSyncedAt = &syncedAt
	groups := models.BuildGroups([]models.AttendanceRecord{rec})

	result, err := svc.Delete(context.Background(), &models.SyncAccount{ID: "acc-1"}, sge.Credentials{User: "u", Password: "p"}, groups)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, gateway.deleted, 1)
	assert.Equal(t, "r-math", gateway.deleted[0].SubjectID)
	_, cleared := ledger.cleared["rec-1"]
	assert.True(t, cleared)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, models.SyncStatusPending, result.Groups[0].Status)
}
