package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/luminar-sync-api/internal/dto"
	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
)

type accountStore interface {
	FindByUser(ctx context.Context, userID string) (*models.SyncAccount, error)
	Save(ctx context.Context, userID, sgeUser, sgePassword string, academicYear int) (*models.SyncAccount, error)
	OpenPassword(account *models.SyncAccount) (string, error)
}

// AccountService manages per-user remote credentials. Passwords are sealed at
// rest by the repository and only opened for the duration of a batch.
type AccountService struct {
	store     accountStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(store accountStore, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{store: store, validator: validate, logger: logger}
}

// Get returns the caller's account with the password masked.
func (s *AccountService) Get(ctx context.Context, userID string) (*dto.AccountResponse, error) {
	account, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync account")
	}
	if account == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync account not configured")
	}
	return accountResponse(account), nil
}

// Upsert stores or replaces the caller's remote credentials.
func (s *AccountService) Upsert(ctx context.Context, userID string, req dto.UpsertAccountRequest) (*dto.AccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	account, err := s.store.Save(ctx, userID, req.SGEUser, req.SGEPassword, req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save sync account")
	}
	s.logger.Info("sync account updated", zap.String("user_id", userID))
	return accountResponse(account), nil
}

// Credentials loads the caller's account and opens its sealed password. A
// missing or incomplete account is the one precondition that aborts a batch
// before any group is touched.
func (s *AccountService) Credentials(ctx context.Context, userID string) (*models.SyncAccount, sge.Credentials, error) {
	account, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, sge.Credentials{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sync account")
	}
	if !account.HasCredentials() {
		return nil, sge.Credentials{}, appErrors.ErrMissingCredentials
	}
	password, err := s.store.OpenPassword(account)
	if err != nil {
		return nil, sge.Credentials{}, appErrors.Wrap(err, appErrors.ErrMissingCredentials.Code, appErrors.ErrMissingCredentials.Status, "stored credentials cannot be opened")
	}
	return account, sge.Credentials{User: account.SGEUser, Password: password}, nil
}

func accountResponse(account *models.SyncAccount) *dto.AccountResponse {
	return &dto.AccountResponse{
		ID:             account.ID,
		SGEUser:        account.SGEUser,
		SGEPasswordSet: len(account.SealedPassword) > 0,
		AcademicYear:   account.AcademicYear,
	}
}
