package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
)

type stubMappingStore struct {
	classes  map[string]models.ClassMapping
	subjects map[string]string
	students map[string]string

	classSaves   int
	studentSaves int
}

func newStubMappingStore() *stubMappingStore {
	return &stubMappingStore{
		classes:  make(map[string]models.ClassMapping),
		subjects: make(map[string]string),
		students: make(map[string]string),
	}
}

func (s *stubMappingStore) Load(ctx context.Context, accountID string) (*models.IdentityMapping, error) {
	mapping := models.NewIdentityMapping()
	for k, v := range s.classes {
		mapping.Classes[k] = v
	}
	for k, v := range s.subjects {
		mapping.Subjects[k] = v
	}
	for k, v := range s.students {
		mapping.Students[k] = v
	}
	return mapping, nil
}

func (s *stubMappingStore) SaveClassMapping(ctx context.Context, accountID, classID string, cm models.ClassMapping) error {
	s.classSaves++
	if _, ok := s.classes[classID]; !ok {
		s.classes[classID] = cm
	}
	return nil
}

func (s *stubMappingStore) SaveSubjectMapping(ctx context.Context, accountID, classID, subjectID, remoteSubjectID string) error {
	key := models.SubjectKey(classID, subjectID)
	if _, ok := s.subjects[key]; !ok {
		s.subjects[key] = remoteSubjectID
	}
	return nil
}

func (s *stubMappingStore) SaveStudentMappings(ctx context.Context, accountID string, mappings map[string]string) error {
	s.studentSaves++
	for k, v := range mappings {
		if _, ok := s.students[k]; !ok {
			s.students[k] = v
		}
	}
	return nil
}

func TestDiscoverClassMapping(t *testing.T) {
	store := newStubMappingStore()
	svc := NewIdentityService(store, nil)
	class := &models.Class{ID: "class-1", Name: "6º Ano A", Series: "6º Ano", Code: "A", Shift: "Matutino"}
	options := []sge.ClassOption{
		{Series: "6", ClassCode: "B", Shift: "MATUTINO", Label: "6º ANO [B] (MATUTINO)"},
		{Series: "6", ClassCode: "A", Shift: "MATUTINO", Label: "6º ANO [A] (MATUTINO)"},
		{Series: "6", ClassCode: "A", Shift: "VESPERTINO", Label: "6º ANO [A] (VESPERTINO)"},
	}

	cm, err := svc.DiscoverClassMapping(context.Background(), "acc-1", class, options)
	require.NoError(t, err)
	require.NotNil(t, cm)
	assert.Equal(t, "A", cm.ClassCode)
	assert.Equal(t, "MATUTINO", cm.Shift)
	assert.Len(t, store.classes, 1)
}

func TestDiscoverClassMappingAmbiguousOrMissing(t *testing.T) {
	store := newStubMappingStore()
	svc := NewIdentityService(store, nil)
	class := &models.Class{ID: "class-1", Series: "6º Ano", Code: "", Shift: "Matutino"}

	ambiguous := []sge.ClassOption{
		{Shift: "MATUTINO", Label: "6º ANO [A] (MATUTINO)"},
		{Shift: "MATUTINO", Label: "6º ANO [B] (MATUTINO)"},
	}
	cm, err := svc.DiscoverClassMapping(context.Background(), "acc-1", class, ambiguous)
	require.NoError(t, err)
	assert.Nil(t, cm, "two candidates must not guess")

	cm, err = svc.DiscoverClassMapping(context.Background(), "acc-1", class, nil)
	require.NoError(t, err)
	assert.Nil(t, cm)
	assert.Empty(t, store.classes)
}

func TestDiscoverClassMappingIsAppendOnly(t *testing.T) {
	store := newStubMappingStore()
	svc := NewIdentityService(store, nil)
	class := &models.Class{ID: "class-1", Series: "6º Ano", Code: "A", Shift: "Matutino"}
	options := []sge.ClassOption{{Series: "6", ClassCode: "A", Shift: "MATUTINO", Label: "6º ANO [A] (MATUTINO)"}}

	first, err := svc.DiscoverClassMapping(context.Background(), "acc-1", class, options)
	require.NoError(t, err)
	second, err := svc.DiscoverClassMapping(context.Background(), "acc-1", class, options)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.classes, 1)
}

func TestDiscoverSubjectMapping(t *testing.T) {
	store := newStubMappingStore()
	svc := NewIdentityService(store, nil)
	remote := []sge.Subject{
		{ID: "r-1", Name: "MATEMÁTICA"},
		{ID: "r-2", Name: "Português"},
		{ID: "r-3", Name: "Ciências Naturais"},
	}

	exact, err := svc.DiscoverSubjectMapping(context.Background(), "acc-1", "class-1", &models.Subject{ID: "s-1", Name: "Matemática"}, remote)
	require.NoError(t, err)
	assert.Equal(t, "r-1", exact)

	substring, err := svc.DiscoverSubjectMapping(context.Background(), "acc-1", "class-1", &models.Subject{ID: "s-2", Name: "Ciências"}, remote)
	require.NoError(t, err)
	assert.Equal(t, "r-3", substring)

	aliased, err := svc.DiscoverSubjectMapping(context.Background(), "acc-1", "class-1", &models.Subject{ID: "s-3", Name: "Língua Portuguesa"}, remote)
	require.NoError(t, err)
	assert.Equal(t, "r-2", aliased)

	missing, err := svc.DiscoverSubjectMapping(context.Background(), "acc-1", "class-1", &models.Subject{ID: "s-4", Name: "Alquimia"}, remote)
	require.NoError(t, err)
	assert.Equal(t, "", missing)
}

func TestDiscoverStudentMappings(t *testing.T) {
	store := newStubMappingStore()
	store.students["stu-known"] = "r-0"
	svc := NewIdentityService(store, nil)

	mapping, err := store.Load(context.Background(), "acc-1")
	require.NoError(t, err)

	roster := []models.RosterEntry{
		{StudentID: "stu-known", StudentName: "Alice Braga"},
		{StudentID: "stu-exact", StudentName: "João Carlos Silva"},
		{StudentID: "stu-partial", StudentName: "Maria de Fátima Souza"},
		{StudentID: "stu-none", StudentName: "Pedro Álvares"},
	}
	remote := []sge.Student{
		{ID: "r-1", Name: "JOAO CARLOS SILVA"},
		{ID: "r-2", Name: "MARIA SOUZA"},
	}

	result, err := svc.DiscoverStudentMappings(context.Background(), "acc-1", mapping, roster, remote)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"stu-known":   "r-0",
		"stu-exact":   "r-1",
		"stu-partial": "r-2",
	}, result)
	assert.Equal(t, 1, store.studentSaves, "new mappings are persisted in one batch")
	assert.Equal(t, "r-1", mapping.Students["stu-exact"], "in-memory mapping gains the new entries")
	_, unresolved := result["stu-none"]
	assert.False(t, unresolved)
}
