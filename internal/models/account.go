package models

import "time"

// SyncAccount holds one user's SGE gateway credentials. The password is sealed
// at rest and only decrypted for the lifetime of a batch operation.
type SyncAccount struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	SGEUser        string    `db:"sge_user" json:"sge_user"`
	SGEPasswordSet bool      `db:"-" json:"sge_password_set"`
	SealedPassword []byte    `db:"sge_password_sealed" json:"-"`
	AcademicYear   int       `db:"academic_year" json:"academic_year"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// HasCredentials reports whether the account can open a remote session.
func (a *SyncAccount) HasCredentials() bool {
	return a != nil && a.SGEUser != "" && len(a.SealedPassword) > 0
}
