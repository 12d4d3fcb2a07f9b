package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/pkg/secrets"
)

// AccountRepository stores per-user SGE credentials. Passwords are sealed
// before they touch the database.
type AccountRepository struct {
	db     *sqlx.DB
	sealer *secrets.Sealer
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB, sealer *secrets.Sealer) *AccountRepository {
	return &AccountRepository{db: db, sealer: sealer}
}

// FindByUser loads the sync account of a local user, or nil when none is
// configured.
func (r *AccountRepository) FindByUser(ctx context.Context, userID string) (*models.SyncAccount, error) {
	var account models.SyncAccount
	query := `SELECT id, user_id, sge_user, sge_password_sealed, academic_year, created_at, updated_at
FROM sync_accounts WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &account, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find sync account: %w", err)
	}
	account.SGEPasswordSet = len(account.SealedPassword) > 0
	return &account, nil
}

// Save upserts a user's SGE credentials, sealing the password.
func (r *AccountRepository) Save(ctx context.Context, userID, sgeUser, sgePassword string, academicYear int) (*models.SyncAccount, error) {
	sealed, err := r.sealer.Seal(sgePassword)
	if err != nil {
		return nil, fmt.Errorf("seal sge password: %w", err)
	}
	now := time.Now().UTC()
	query := `INSERT INTO sync_accounts (id, user_id, sge_user, sge_password_sealed, academic_year, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (user_id)
DO UPDATE SET sge_user = EXCLUDED.sge_user, sge_password_sealed = EXCLUDED.sge_password_sealed, academic_year = EXCLUDED.academic_year, updated_at = EXCLUDED.updated_at
RETURNING id, user_id, sge_user, sge_password_sealed, academic_year, created_at, updated_at`
	var stored models.SyncAccount
	if err := r.db.GetContext(ctx, &stored, query, uuid.NewString(), userID, sgeUser, sealed, academicYear, now); err != nil {
		return nil, fmt.Errorf("save sync account: %w", err)
	}
	stored.SGEPasswordSet = true
	return &stored, nil
}

// OpenPassword decrypts the stored SGE password for the lifetime of a batch.
func (r *AccountRepository) OpenPassword(account *models.SyncAccount) (string, error) {
	if account == nil || len(account.SealedPassword) == 0 {
		return "", secrets.ErrDecrypt
	}
	return r.sealer.Open(account.SealedPassword)
}
