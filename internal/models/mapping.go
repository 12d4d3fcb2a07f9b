package models

import "fmt"

// ClassMapping is a confirmed correspondence between a local class and the SGE
// triple that identifies a class on the remote side.
type ClassMapping struct {
	Series    string `db:"remote_series" json:"remote_series"`
	ClassCode string `db:"remote_class_code" json:"remote_class_code"`
	Shift     string `db:"remote_shift" json:"remote_shift"`
}

// IdentityMapping holds the three confirmed local → remote dictionaries for
// one sync account. Entries are append-only during normal operation: discovery
// adds entries, nothing overwrites or deletes them.
type IdentityMapping struct {
	Classes  map[string]ClassMapping `json:"classes"`
	Subjects map[string]string       `json:"subjects"`
	Students map[string]string       `json:"students"`
}

// NewIdentityMapping returns an empty mapping with initialised dictionaries.
func NewIdentityMapping() *IdentityMapping {
	return &IdentityMapping{
		Classes:  make(map[string]ClassMapping),
		Subjects: make(map[string]string),
		Students: make(map[string]string),
	}
}

// SubjectKey scopes a subject mapping to its class: the same local subject can
// map to different SGE subjects in different classes.
func SubjectKey(classID, subjectID string) string {
	return fmt.Sprintf("%s|%s", classID, subjectID)
}

// Class returns the class mapping when present.
func (m *IdentityMapping) Class(classID string) (ClassMapping, bool) {
	cm, ok := m.Classes[classID]
	return cm, ok
}

// Subject returns the remote subject id when present.
func (m *IdentityMapping) Subject(classID, subjectID string) (string, bool) {
	id, ok := m.Subjects[SubjectKey(classID, subjectID)]
	return id, ok
}

// Student returns the remote student id when present.
func (m *IdentityMapping) Student(studentID string) (string, bool) {
	id, ok := m.Students[studentID]
	return id, ok
}
