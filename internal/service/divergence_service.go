package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	"github.com/noah-isme/luminar-sync-api/pkg/config"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

// DivergenceService cross-checks one group's locally-merged view against the
// remote per-period breakdown. It is read-only: it reports, it never mutates
// remote state, and it relies on already-confirmed student mappings.
type DivergenceService struct {
	resolver *resolver
	gateway  sge.Client
	metrics  *MetricsService
	cfg      config.SGEConfig
	logger   *zap.Logger
}

// NewDivergenceService constructs the checker.
func NewDivergenceService(
	identity identityResolver,
	classes classReader,
	subjects subjectReader,
	gateway sge.Client,
	cache rosterCache,
	metrics *MetricsService,
	cfg config.SGEConfig,
	logger *zap.Logger,
) *DivergenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DivergenceService{
		resolver: &resolver{
			identity: identity,
			classes:  classes,
			subjects: subjects,
			gateway:  gateway,
			cache:    cache,
			logger:   logger,
		},
		gateway: gateway,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *DivergenceService) probeCount(localPeriods int) int {
	extra := s.cfg.ProbeExtraPeriods
	if extra <= 0 {
		extra = 2
	}
	max := s.cfg.MaxPeriods
	if max <= 0 {
		max = 7
	}
	count := localPeriods + extra
	if count > max {
		count = max
	}
	return count
}

// Check builds the divergence report for one (class, subject, date). The
// remote side is probed for every locally-recorded period plus a few extra,
// to catch periods someone recorded directly in the remote system.
func (s *DivergenceService) Check(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, classID, subjectID string, date time.Time, records []models.AttendanceRecord) (*models.DivergenceReport, error) {
	if creds.User == "" || creds.Password == "" {
		return nil, appErrors.ErrMissingCredentials
	}
	year := s.cfg.AcademicYear
	if account != nil && account.AcademicYear > 0 {
		year = account.AcademicYear
	}
	bs, err := s.resolver.newBatch(ctx, account.ID, creds, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load identity mapping")
	}
	ref, err := s.resolver.classRef(ctx, bs, classID, subjectID)
	if err != nil {
		return nil, err
	}

	ordered := make([]models.AttendanceRecord, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Period < ordered[j].Period })
	localPeriods := make([]int, len(ordered))
	for i, rec := range ordered {
		localPeriods[i] = rec.Period
	}

	// Remote periods are the 1..N slots of the single per-day record; they
	// align positionally with the local records, not by period number.
	var remotePeriods []map[string]bool
	for p := 1; p <= s.probeCount(len(ordered)); p++ {
		start := time.Now()
		detail, err := s.gateway.FetchPeriodDetail(ctx, bs.creds, ref, date, p)
		s.metrics.ObserveRemoteCall("fetch_period_detail", time.Since(start))
		if err != nil {
			return nil, remoteError(err)
		}
		if len(detail) == 0 {
			continue
		}
		flags := make(map[string]bool, len(detail))
		for _, student := range detail {
			flags[student.ID] = student.Present
		}
		remotePeriods = append(remotePeriods, flags)
	}

	merged := MergeGroup(ordered)
	report := &models.DivergenceReport{
		ClassID:           classID,
		SubjectID:         subjectID,
		Date:              date.Format(models.DateLayout),
		LocalPeriods:      localPeriods,
		RemotePeriodCount: len(remotePeriods),
	}
	if extra := len(remotePeriods) - len(ordered); extra > 0 {
		report.RemoteOnlyPeriods = extra
	}

	for _, entry := range merged.Roster {
		row := models.DivergenceRow{
			StudentID:   entry.StudentID,
			StudentName: entry.StudentName,
		}
		row.LocalSequence = localSequence(entry.StudentID, ordered)

		remoteID, mapped := bs.mapping.Student(entry.StudentID)
		if !mapped {
			row.Classification = models.DivergenceUnmapped
			report.Rows = append(report.Rows, row)
			continue
		}
		row.RemoteStudentID = remoteID
		row.RemoteSequence = remoteSequence(remoteID, remotePeriods, len(ordered))

		if row.LocalSequence == row.RemoteSequence {
			row.Classification = models.DivergenceMatched
		} else {
			row.Classification = models.DivergenceDivergent
		}
		report.Rows = append(report.Rows, row)
	}
	return report, nil
}

// localSequence renders one flag per locally-recorded period the student
// appears in, in period order.
func localSequence(studentID string, ordered []models.AttendanceRecord) string {
	var flags []string
	for _, rec := range ordered {
		for _, entry := range rec.Roster {
			if entry.StudentID != studentID {
				continue
			}
			flags = append(flags, presenceFlag(entry.Present))
			break
		}
	}
	return strings.Join(flags, ",")
}

// remoteSequence renders the remote flags for the positions matching the
// local records. Remote-only periods beyond the local count are reported
// separately, not folded into per-student sequences.
func remoteSequence(remoteID string, remotePeriods []map[string]bool, localCount int) string {
	var flags []string
	for i := 0; i < localCount && i < len(remotePeriods); i++ {
		flags = append(flags, presenceFlag(remotePeriods[i][remoteID]))
	}
	return strings.Join(flags, ",")
}

func presenceFlag(present bool) string {
	if present {
		return "P"
	}
	return "F"
}
