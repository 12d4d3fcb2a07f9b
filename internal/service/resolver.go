package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

type identityResolver interface {
	Load(ctx context.Context, accountID string) (*models.IdentityMapping, error)
	DiscoverClassMapping(ctx context.Context, accountID string, class *models.Class, options []sge.ClassOption) (*models.ClassMapping, error)
	DiscoverSubjectMapping(ctx context.Context, accountID, classID string, subject *models.Subject, remote []sge.Subject) (string, error)
	DiscoverStudentMappings(ctx context.Context, accountID string, mapping *models.IdentityMapping, roster []models.RosterEntry, remote []sge.Student) (map[string]string, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type rosterCache interface {
	Get(ctx context.Context, series, classCode, shift string) ([]sge.Student, error)
	Set(ctx context.Context, series, classCode, shift string, students []sge.Student)
}

// batchSession carries everything one batch operation needs: the decrypted
// credentials, the account's identity mapping, and lazily-filled caches of
// remote listings. It is created per batch and discarded afterwards, so no
// remote state leaks between operations.
type batchSession struct {
	accountID string
	creds     sge.Credentials
	year      int

	mapping      *models.IdentityMapping
	classOptions []sge.ClassOption
	loggedIn     bool
	subjects     map[string][]sge.Subject
	rosters      map[string][]sge.Student
}

// remoteError tags gateway failures with their HTTP-aware codes. Transport
// failures and SGE rejections surface as 502 to callers outside a batch;
// anything else passes through untouched.
func remoteError(err error) error {
	if err == nil {
		return nil
	}
	var transport *sge.TransportError
	if errors.As(err, &transport) {
		return appErrors.Wrap(err, appErrors.ErrRemoteTransport.Code, appErrors.ErrRemoteTransport.Status, appErrors.ErrRemoteTransport.Message)
	}
	var business *sge.BusinessError
	if errors.As(err, &business) {
		return appErrors.Wrap(err, appErrors.ErrRemoteBusiness.Code, appErrors.ErrRemoteBusiness.Status, business.Reason)
	}
	return err
}

// resolver turns local (class, subject) pairs into remote SGE references,
// discovering missing mappings on the way. Shared by the sync orchestrator
// and the divergence checker.
type resolver struct {
	identity identityResolver
	classes  classReader
	subjects subjectReader
	gateway  sge.Client
	cache    rosterCache
	logger   *zap.Logger
}

func (r *resolver) newBatch(ctx context.Context, accountID string, creds sge.Credentials, year int) (*batchSession, error) {
	mapping, err := r.identity.Load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &batchSession{
		accountID: accountID,
		creds:     creds,
		year:      year,
		mapping:   mapping,
		subjects:  make(map[string][]sge.Subject),
		rosters:   make(map[string][]sge.Student),
	}, nil
}

func (r *resolver) options(ctx context.Context, bs *batchSession) ([]sge.ClassOption, error) {
	if bs.loggedIn {
		return bs.classOptions, nil
	}
	options, err := r.gateway.Login(ctx, bs.creds)
	if err != nil {
		return nil, remoteError(err)
	}
	bs.classOptions = options
	bs.loggedIn = true
	return options, nil
}

// classMapping returns the remote identity of a local class, discovering and
// persisting it when absent. A nil result with nil error means no mapping
// could be found; the caller reports the group instead of aborting the batch.
func (r *resolver) classMapping(ctx context.Context, bs *batchSession, classID string) (*models.ClassMapping, error) {
	if cm, ok := bs.mapping.Class(classID); ok {
		return &cm, nil
	}
	class, err := r.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, nil
	}
	options, err := r.options(ctx, bs)
	if err != nil {
		return nil, err
	}
	cm, err := r.identity.DiscoverClassMapping(ctx, bs.accountID, class, options)
	if err != nil {
		return nil, err
	}
	if cm == nil {
		return nil, nil
	}
	bs.mapping.Classes[classID] = *cm
	return cm, nil
}

func (r *resolver) remoteSubjects(ctx context.Context, bs *batchSession, cm *models.ClassMapping) ([]sge.Subject, error) {
	key := fmt.Sprintf("%s|%s|%s", cm.Series, cm.ClassCode, cm.Shift)
	if subjects, ok := bs.subjects[key]; ok {
		return subjects, nil
	}
	subjects, err := r.gateway.ListSubjects(ctx, bs.creds, cm.Series, cm.ClassCode, cm.Shift, bs.year)
	if err != nil {
		return nil, remoteError(err)
	}
	bs.subjects[key] = subjects
	return subjects, nil
}

// subjectMapping resolves the remote subject id, discovering when absent.
// Empty result with nil error means not found.
func (r *resolver) subjectMapping(ctx context.Context, bs *batchSession, cm *models.ClassMapping, classID, subjectID string) (string, error) {
	if remoteID, ok := bs.mapping.Subject(classID, subjectID); ok {
		return remoteID, nil
	}
	subject, err := r.subjects.FindByID(ctx, subjectID)
	if err != nil {
		return "", err
	}
	if subject == nil {
		return "", nil
	}
	remoteSubjects, err := r.remoteSubjects(ctx, bs, cm)
	if err != nil {
		return "", err
	}
	remoteID, err := r.identity.DiscoverSubjectMapping(ctx, bs.accountID, classID, subject, remoteSubjects)
	if err != nil {
		return "", err
	}
	if remoteID != "" {
		bs.mapping.Subjects[models.SubjectKey(classID, subjectID)] = remoteID
	}
	return remoteID, nil
}

// classRef assembles the full remote reference for one group. A mapping that
// cannot be resolved surfaces as ErrMappingNotFound with a per-group message.
func (r *resolver) classRef(ctx context.Context, bs *batchSession, classID, subjectID string) (sge.ClassRef, error) {
	cm, err := r.classMapping(ctx, bs, classID)
	if err != nil {
		return sge.ClassRef{}, err
	}
	if cm == nil {
		return sge.ClassRef{}, appErrors.Clone(appErrors.ErrMappingNotFound, fmt.Sprintf("mapping not found for class %s", classID))
	}
	remoteSubjectID, err := r.subjectMapping(ctx, bs, cm, classID, subjectID)
	if err != nil {
		return sge.ClassRef{}, err
	}
	if remoteSubjectID == "" {
		return sge.ClassRef{}, appErrors.Clone(appErrors.ErrMappingNotFound, fmt.Sprintf("mapping not found for subject %s", subjectID))
	}
	return sge.ClassRef{
		Series:    cm.Series,
		ClassCode: cm.ClassCode,
		Shift:     cm.Shift,
		SubjectID: remoteSubjectID,
		Year:      bs.year,
	}, nil
}

// roster fetches the remote class roster, consulting the in-batch map first,
// then Redis, then the gateway. The cache is never invalidated mid-batch.
func (r *resolver) roster(ctx context.Context, bs *batchSession, cm *models.ClassMapping) ([]sge.Student, error) {
	key := fmt.Sprintf("%s|%s|%s", cm.Series, cm.ClassCode, cm.Shift)
	if students, ok := bs.rosters[key]; ok {
		return students, nil
	}
	if r.cache != nil {
		students, err := r.cache.Get(ctx, cm.Series, cm.ClassCode, cm.Shift)
		if err == nil {
			bs.rosters[key] = students
			return students, nil
		}
		if appErrors.FromError(err).Code != appErrors.ErrCacheMiss.Code {
			r.logger.Warn("roster cache read failed", zap.Error(err))
		}
	}
	students, err := r.gateway.ListStudents(ctx, bs.creds, cm.Series, cm.ClassCode, cm.Shift, bs.year)
	if err != nil {
		return nil, remoteError(err)
	}
	bs.rosters[key] = students
	if r.cache != nil {
		r.cache.Set(ctx, cm.Series, cm.ClassCode, cm.Shift, students)
	}
	return students, nil
}
