package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/namematch"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
)

type mappingStore interface {
	Load(ctx context.Context, accountID string) (*models.IdentityMapping, error)
	SaveClassMapping(ctx context.Context, accountID, classID string, cm models.ClassMapping) error
	SaveSubjectMapping(ctx context.Context, accountID, classID, subjectID, remoteSubjectID string) error
	SaveStudentMappings(ctx context.Context, accountID string, mappings map[string]string) error
}

// IdentityService resolves and discovers local → remote identity mappings.
// "Not found" is an expected outcome for every discovery method: they return
// nil or a partial result and let the orchestrator report the group, never an
// error. Errors are reserved for persistence failures.
type IdentityService struct {
	store  mappingStore
	logger *zap.Logger
}

// NewIdentityService constructs the identity service.
func NewIdentityService(store mappingStore, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{store: store, logger: logger}
}

// Load returns the full persisted mapping for one account.
func (s *IdentityService) Load(ctx context.Context, accountID string) (*models.IdentityMapping, error) {
	return s.store.Load(ctx, accountID)
}

var bracketedToken = regexp.MustCompile(`\[([^\]]*)\]|\(([^)]*)\)`)

// DiscoverClassMapping searches the remote class options for the unique one
// matching the local class: the shift must agree exactly (normalized), the
// label must contain the local series name, and when the class carries a
// letter code the code must appear inside a bracketed token of the label.
// Zero or multiple candidates yield nil. A unique hit is persisted before it
// is returned.
func (s *IdentityService) DiscoverClassMapping(ctx context.Context, accountID string, class *models.Class, options []sge.ClassOption) (*models.ClassMapping, error) {
	if class == nil {
		return nil, nil
	}
	series := namematch.Normalize(class.Series)
	shift := namematch.Normalize(class.Shift)
	code := namematch.Normalize(class.Code)

	var match *sge.ClassOption
	for i := range options {
		opt := &options[i]
		if namematch.Normalize(opt.Shift) != shift {
			continue
		}
		label := namematch.Normalize(opt.Label)
		if series == "" || !strings.Contains(label, series) {
			continue
		}
		if code != "" && !bracketedTokenContains(opt.Label, code) {
			continue
		}
		if match != nil {
			s.logger.Warn("ambiguous class mapping",
				zap.String("class_id", class.ID),
				zap.String("candidate_a", match.Label),
				zap.String("candidate_b", opt.Label),
			)
			return nil, nil
		}
		match = opt
	}
	if match == nil {
		return nil, nil
	}

	cm := models.ClassMapping{Series: match.Series, ClassCode: match.ClassCode, Shift: match.Shift}
	if err := s.store.SaveClassMapping(ctx, accountID, class.ID, cm); err != nil {
		return nil, err
	}
	s.logger.Info("class mapping discovered",
		zap.String("class_id", class.ID),
		zap.String("remote_label", match.Label),
	)
	return &cm, nil
}

// bracketedTokenContains reports whether the code appears as a whole word
// inside any (...) or [...] token of the label.
func bracketedTokenContains(label, normalizedCode string) bool {
	for _, groups := range bracketedToken.FindAllStringSubmatch(label, -1) {
		token := groups[1]
		if token == "" {
			token = groups[2]
		}
		for _, word := range strings.Fields(namematch.Normalize(token)) {
			if word == normalizedCode {
				return true
			}
		}
	}
	return false
}

// DiscoverSubjectMapping matches a local subject against the remote subject
// list: exact normalized name, then substring containment in either direction,
// then the static alias table. The first hit wins and is persisted. Returns ""
// when nothing matches.
func (s *IdentityService) DiscoverSubjectMapping(ctx context.Context, accountID, classID string, subject *models.Subject, remote []sge.Subject) (string, error) {
	if subject == nil {
		return "", nil
	}
	local := namematch.Normalize(subject.Name)
	alias := namematch.ResolveAlias(subject.Name)

	found := ""
	for _, rs := range remote {
		rname := namematch.Normalize(rs.Name)
		if rname == local {
			found = rs.ID
			break
		}
	}
	if found == "" {
		for _, rs := range remote {
			rname := namematch.Normalize(rs.Name)
			if strings.Contains(rname, local) || strings.Contains(local, rname) {
				found = rs.ID
				break
			}
		}
	}
	if found == "" && alias != "" {
		for _, rs := range remote {
			rname := namematch.Normalize(rs.Name)
			if rname == alias || strings.Contains(rname, alias) || strings.Contains(alias, rname) {
				found = rs.ID
				break
			}
		}
	}
	if found == "" {
		return "", nil
	}
	if err := s.store.SaveSubjectMapping(ctx, accountID, classID, subject.ID, found); err != nil {
		return "", err
	}
	s.logger.Info("subject mapping discovered",
		zap.String("class_id", classID),
		zap.String("subject_id", subject.ID),
		zap.String("remote_subject_id", found),
	)
	return found, nil
}

// DiscoverStudentMappings resolves every student of the local roster against
// the remote student list: exact normalized match first, then first+last token
// agreement. Newly found pairs are persisted in one batch and added to the
// in-memory mapping. The returned map is the merged view, existing entries
// included; students that stay unresolved are simply absent from it.
func (s *IdentityService) DiscoverStudentMappings(ctx context.Context, accountID string, mapping *models.IdentityMapping, roster []models.RosterEntry, remote []sge.Student) (map[string]string, error) {
	result := make(map[string]string, len(roster))
	discovered := make(map[string]string)

	for _, entry := range roster {
		if remoteID, ok := mapping.Student(entry.StudentID); ok {
			result[entry.StudentID] = remoteID
			continue
		}
		remoteID := matchStudent(entry.StudentName, remote)
		if remoteID == "" {
			continue
		}
		result[entry.StudentID] = remoteID
		discovered[entry.StudentID] = remoteID
	}

	if len(discovered) > 0 {
		if err := s.store.SaveStudentMappings(ctx, accountID, discovered); err != nil {
			return nil, err
		}
		for studentID, remoteID := range discovered {
			mapping.Students[studentID] = remoteID
		}
		s.logger.Info("student mappings discovered", zap.Int("count", len(discovered)))
	}

	return result, nil
}

func matchStudent(name string, remote []sge.Student) string {
	for _, rs := range remote {
		if namematch.Equal(name, rs.Name) {
			return rs.ID
		}
	}
	for _, rs := range remote {
		if namematch.PartialMatch(name, rs.Name) {
			return rs.ID
		}
	}
	return ""
}
