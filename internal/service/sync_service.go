package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	"github.com/noah-isme/luminar-sync-api/pkg/config"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

type ledgerMarker interface {
	MarkSynced(ctx context.Context, ids []string, at time.Time) error
	MarkSyncError(ctx context.Context, ids []string, message string) error
	ClearSyncMarkers(ctx context.Context, ids []string) error
}

// GroupOutcome is the terminal state of one group after a batch operation.
type GroupOutcome struct {
	Key       string            `json:"key"`
	ClassID   string            `json:"class_id"`
	SubjectID string            `json:"subject_id"`
	Date      string            `json:"date"`
	Status    models.SyncStatus `json:"status"`
	Message   string            `json:"message,omitempty"`
}

// BatchResult summarises a whole batch. A batch always completes: per-group
// failures are collected here, never propagated.
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Groups    []GroupOutcome `json:"groups"`
}

// SyncService drives push, verify and delete batches against the SGE gateway.
// All remote calls are strictly sequential: the gateway is session-oriented
// and does not tolerate concurrent requests under one credential.
type SyncService struct {
	resolver *resolver
	ledger   ledgerMarker
	gateway  sge.Client
	metrics  *MetricsService
	cfg      config.SGEConfig
	logger   *zap.Logger
}

// NewSyncService constructs the orchestrator.
func NewSyncService(
	identity identityResolver,
	classes classReader,
	subjects subjectReader,
	ledger ledgerMarker,
	gateway sge.Client,
	cache rosterCache,
	metrics *MetricsService,
	cfg config.SGEConfig,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		resolver: &resolver{
			identity: identity,
			classes:  classes,
			subjects: subjects,
			gateway:  gateway,
			cache:    cache,
			logger:   logger,
		},
		ledger:  ledger,
		gateway: gateway,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *SyncService) year(account *models.SyncAccount) int {
	if account != nil && account.AcademicYear > 0 {
		return account.AcademicYear
	}
	return s.cfg.AcademicYear
}

// Push submits every pending group to the remote system. Groups in any other
// status are skipped, which is what makes re-invoking push after a partial
// failure idempotent. Only missing credentials abort the batch; every other
// failure is converted into that group's error status and processing moves on.
func (s *SyncService) Push(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*BatchResult, error) {
	if creds.User == "" || creds.Password == "" {
		return nil, appErrors.ErrMissingCredentials
	}
	bs, err := s.resolver.newBatch(ctx, account.ID, creds, s.year(account))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity mapping")
	}

	result := &BatchResult{}
	for i := range groups {
		group := &groups[i]
		if group.Status != models.SyncStatusPending {
			result.Skipped++
			s.metrics.ObserveGroupOutcome("push", "skipped")
			result.Groups = append(result.Groups, s.outcome(group))
			continue
		}
		group.Status = models.SyncStatusSending
		s.pushGroup(ctx, bs, group, result)
		result.Groups = append(result.Groups, s.outcome(group))
	}
	return result, nil
}

func (s *SyncService) pushGroup(ctx context.Context, bs *batchSession, group *models.AttendanceGroup, result *BatchResult) {
	ref, err := s.resolver.classRef(ctx, bs, group.ClassID, group.SubjectID)
	if err != nil {
		s.failGroup(ctx, "push", group, result, appErrors.FromError(err).Message, true)
		return
	}

	merged := MergeGroup(group.Records)

	cm := models.ClassMapping{Series: ref.Series, ClassCode: ref.ClassCode, Shift: ref.Shift}
	roster, err := s.resolver.roster(ctx, bs, &cm)
	if err != nil {
		s.failGroup(ctx, "push", group, result, appErrors.FromError(err).Message, true)
		return
	}
	studentIDs, err := s.resolver.identity.DiscoverStudentMappings(ctx, bs.accountID, bs.mapping, merged.Roster, roster)
	if err != nil {
		s.failGroup(ctx, "push", group, result, appErrors.FromError(err).Message, true)
		return
	}

	presence := make(map[string]bool)
	for _, entry := range merged.Roster {
		if remoteID, ok := studentIDs[entry.StudentID]; ok {
			presence[remoteID] = entry.Present
		}
	}
	if len(presence) == 0 {
		s.failGroup(ctx, "push", group, result, appErrors.ErrNoMappedStudents.Message, true)
		return
	}

	start := time.Now()
	submit, err := s.gateway.SubmitAttendance(ctx, bs.creds, ref, group.Date, merged.PeriodCount, presence)
	s.metrics.ObserveRemoteCall("submit_attendance", time.Since(start))
	if err != nil {
		s.failGroup(ctx, "push", group, result, err.Error(), true)
		return
	}

	now := time.Now().UTC()
	if err := s.ledger.MarkSynced(ctx, group.RecordIDs(), now); err != nil {
		// The remote record exists; reporting success with stale local
		// markers would desync the ledger, so the group is surfaced as
		// an error and verify will heal it on the next run.
		s.failGroup(ctx, "push", group, result, "remote accepted but local markers failed: "+err.Error(), false)
		return
	}

	group.Status = models.SyncStatusSynced
	group.Message = ""
	result.Succeeded++
	s.metrics.ObserveGroupOutcome("push", "synced")
	s.logger.Info("group pushed",
		zap.String("group", group.Key()),
		zap.Int("periods", merged.PeriodCount),
		zap.Int("present", submit.PresentCount),
	)
}

// Verify cross-checks every group against the remote system, including groups
// locally marked synced: the remote record may have been deleted behind our
// back, and a stale local marker would block a needed re-push.
func (s *SyncService) Verify(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*BatchResult, error) {
	if creds.User == "" || creds.Password == "" {
		return nil, appErrors.ErrMissingCredentials
	}
	bs, err := s.resolver.newBatch(ctx, account.ID, creds, s.year(account))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity mapping")
	}

	result := &BatchResult{}
	queries := make([]sge.ExistsQuery, 0, len(groups))
	queried := make([]*models.AttendanceGroup, 0, len(groups))

	for i := range groups {
		group := &groups[i]
		ref, err := s.resolver.classRef(ctx, bs, group.ClassID, group.SubjectID)
		if err != nil {
			s.failGroup(ctx, "verify", group, result, appErrors.FromError(err).Message, false)
			result.Groups = append(result.Groups, s.outcome(group))
			continue
		}
		period := 1
		if len(group.Records) > 0 {
			period = group.Records[0].Period
		}
		queries = append(queries, sge.ExistsQuery{Ref: ref, Date: group.Date, Period: period})
		queried = append(queried, group)
	}

	if len(queries) > 0 {
		start := time.Now()
		exists, err := s.gateway.CheckExists(ctx, bs.creds, queries)
		s.metrics.ObserveRemoteCall("check_exists", time.Since(start))
		if err != nil {
			for _, group := range queried {
				s.failGroup(ctx, "verify", group, result, err.Error(), false)
				result.Groups = append(result.Groups, s.outcome(group))
			}
			return result, nil
		}
		now := time.Now().UTC()
		for i, group := range queried {
			if exists[i] {
				if err := s.ledger.MarkSynced(ctx, group.RecordIDs(), now); err != nil {
					s.failGroup(ctx, "verify", group, result, err.Error(), false)
					result.Groups = append(result.Groups, s.outcome(group))
					continue
				}
				group.Status = models.SyncStatusRemoteExists
				group.Message = ""
				result.Succeeded++
				s.metrics.ObserveGroupOutcome("verify", "remote_exists")
			} else {
				if err := s.ledger.ClearSyncMarkers(ctx, group.RecordIDs()); err != nil {
					s.failGroup(ctx, "verify", group, result, err.Error(), false)
					result.Groups = append(result.Groups, s.outcome(group))
					continue
				}
				group.Status = models.SyncStatusPending
				group.Message = ""
				result.Succeeded++
				s.metrics.ObserveGroupOutcome("verify", "pending")
			}
			result.Groups = append(result.Groups, s.outcome(group))
		}
	}
	return result, nil
}

// Delete removes remote records for the given groups. Local ledger records
// are never deleted here: only their sync markers are cleared, so the local
// data survives and the remote side can be redone.
func (s *SyncService) Delete(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*BatchResult, error) {
	if creds.User == "" || creds.Password == "" {
		return nil, appErrors.ErrMissingCredentials
	}
	bs, err := s.resolver.newBatch(ctx, account.ID, creds, s.year(account))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity mapping")
	}

	result := &BatchResult{}
	for i := range groups {
		group := &groups[i]
		ref, err := s.resolver.classRef(ctx, bs, group.ClassID, group.SubjectID)
		if err != nil {
			s.failGroup(ctx, "delete", group, result, appErrors.FromError(err).Message, false)
			result.Groups = append(result.Groups, s.outcome(group))
			continue
		}
		start := time.Now()
		err = s.gateway.DeleteAttendance(ctx, bs.creds, ref, group.Date)
		s.metrics.ObserveRemoteCall("delete_attendance", time.Since(start))
		if err != nil {
			s.failGroup(ctx, "delete", group, result, err.Error(), false)
			result.Groups = append(result.Groups, s.outcome(group))
			continue
		}
		if err := s.ledger.ClearSyncMarkers(ctx, group.RecordIDs()); err != nil {
			s.failGroup(ctx, "delete", group, result, err.Error(), false)
			result.Groups = append(result.Groups, s.outcome(group))
			continue
		}
		group.Status = models.SyncStatusPending
		group.Message = ""
		result.Succeeded++
		s.metrics.ObserveGroupOutcome("delete", "deleted")
		result.Groups = append(result.Groups, s.outcome(group))
	}
	return result, nil
}

// failGroup converts any per-group failure into the group's terminal error
// status. For push failures the reason is also persisted on the underlying
// records so it survives a reload.
func (s *SyncService) failGroup(ctx context.Context, op string, group *models.AttendanceGroup, result *BatchResult, message string, persist bool) {
	group.Status = models.SyncStatusError
	group.Message = message
	result.Failed++
	s.metrics.ObserveGroupOutcome(op, "error")
	if persist {
		if err := s.ledger.MarkSyncError(ctx, group.RecordIDs(), message); err != nil {
			s.logger.Error("persist sync error failed",
				zap.String("group", group.Key()),
				zap.Error(err),
			)
		}
	}
	s.logger.Warn("group failed",
		zap.String("op", op),
		zap.String("group", group.Key()),
		zap.String("reason", message),
	)
}

func (s *SyncService) outcome(group *models.AttendanceGroup) GroupOutcome {
	return GroupOutcome{
		Key:       group.Key(),
		ClassID:   group.ClassID,
		SubjectID: group.SubjectID,
		Date:      group.Date.Format(models.DateLayout),
		Status:    group.Status,
		Message:   group.Message,
	}
}
