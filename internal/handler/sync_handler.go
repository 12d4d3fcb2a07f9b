package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/luminar-sync-api/internal/dto"
	"github.com/noah-isme/luminar-sync-api/internal/models"
	"github.com/noah-isme/luminar-sync-api/internal/service"
	"github.com/noah-isme/luminar-sync-api/internal/sge"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
	"github.com/noah-isme/luminar-sync-api/pkg/response"
)

type syncOrchestrator interface {
	Push(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*service.BatchResult, error)
	Verify(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*service.BatchResult, error)
	Delete(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*service.BatchResult, error)
}

type divergenceChecker interface {
	Check(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, classID, subjectID string, date time.Time, records []models.AttendanceRecord) (*models.DivergenceReport, error)
}

type accountProvider interface {
	Credentials(ctx context.Context, userID string) (*models.SyncAccount, sge.Credentials, error)
}

type groupSource interface {
	Groups(ctx context.Context, classID, from, to string) ([]models.AttendanceGroup, error)
	Group(ctx context.Context, classID, subjectID, date string) ([]models.AttendanceRecord, error)
	Status(ctx context.Context, classID, from, to string) ([]dto.SyncStatusItem, error)
}

type mappingSource interface {
	Load(ctx context.Context, accountID string) (*models.IdentityMapping, error)
}

// SyncHandler exposes the remote reconciliation endpoints.
type SyncHandler struct {
	sync       syncOrchestrator
	divergence divergenceChecker
	accounts   accountProvider
	ledger     groupSource
	mappings   mappingSource
	validator  *validator.Validate
}

// NewSyncHandler builds a new handler.
func NewSyncHandler(sync syncOrchestrator, divergence divergenceChecker, accounts accountProvider, ledger groupSource, mappings mappingSource, validate *validator.Validate) *SyncHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SyncHandler{
		sync:       sync,
		divergence: divergence,
		accounts:   accounts,
		ledger:     ledger,
		mappings:   mappings,
		validator:  validate,
	}
}

type batchOp func(ctx context.Context, account *models.SyncAccount, creds sge.Credentials, groups []models.AttendanceGroup) (*service.BatchResult, error)

func (h *SyncHandler) runBatch(c *gin.Context, op batchOp) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SyncBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sync payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sync payload"))
		return
	}

	account, creds, err := h.accounts.Credentials(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	groups, err := h.ledger.Groups(c.Request.Context(), req.ClassID, req.From, req.To)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := op(c.Request.Context(), account, creds, groups)
	if err != nil {
		response.Error(c, err)
		return
	}
	outcomes := make([]dto.GroupOutcomeItem, 0, len(result.Groups))
	for _, group := range result.Groups {
		outcomes = append(outcomes, dto.GroupOutcomeItem{
			Key:       group.Key,
			ClassID:   group.ClassID,
			SubjectID: group.SubjectID,
			Date:      group.Date,
			Status:    string(group.Status),
			Message:   group.Message,
		})
	}
	response.JSON(c, http.StatusOK, dto.SyncBatchResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
		Groups:    outcomes,
	}, nil)
}

// Push godoc
// @Summary Push pending attendance groups to SGE
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncBatchRequest true "Class and date range"
// @Success 200 {object} response.Envelope
// @Router /sync/push [post]
func (h *SyncHandler) Push(c *gin.Context) {
	h.runBatch(c, h.sync.Push)
}

// Verify godoc
// @Summary Cross-check local sync markers against SGE
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncBatchRequest true "Class and date range"
// @Success 200 {object} response.Envelope
// @Router /sync/verify [post]
func (h *SyncHandler) Verify(c *gin.Context) {
	h.runBatch(c, h.sync.Verify)
}

// Delete godoc
// @Summary Delete remote SGE records for the selected groups
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body dto.SyncBatchRequest true "Class and date range"
// @Success 200 {object} response.Envelope
// @Router /sync/delete [post]
func (h *SyncHandler) Delete(c *gin.Context) {
	h.runBatch(c, h.sync.Delete)
}

// Status godoc
// @Summary Derived sync status per group, from local markers only
// @Tags Sync
// @Produce json
// @Param class_id query string true "Class id"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.ledger.Status(c.Request.Context(), c.Query("class_id"), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Divergence godoc
// @Summary Per-student divergence report for one group
// @Tags Sync
// @Produce json
// @Param class_id query string true "Class id"
// @Param subject_id query string true "Subject id"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /sync/divergence [get]
func (h *SyncHandler) Divergence(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DivergenceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid divergence query"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid divergence query"))
		return
	}
	date, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid date"))
		return
	}

	account, creds, err := h.accounts.Credentials(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.ledger.Group(c.Request.Context(), req.ClassID, req.SubjectID, req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(records) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no attendance records for this group"))
		return
	}

	report, err := h.divergence.Check(c.Request.Context(), account, creds, req.ClassID, req.SubjectID, date, records)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Mappings godoc
// @Summary Confirmed identity dictionaries for the caller's account
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/mappings [get]
func (h *SyncHandler) Mappings(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	account, _, err := h.accounts.Credentials(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	mapping, err := h.mappings.Load(c.Request.Context(), account.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.MappingResponse{
		Classes:  make(map[string]dto.ClassMappingItem, len(mapping.Classes)),
		Subjects: mapping.Subjects,
		Students: mapping.Students,
	}
	for classID, cm := range mapping.Classes {
		resp.Classes[classID] = dto.ClassMappingItem{Series: cm.Series, ClassCode: cm.ClassCode, Shift: cm.Shift}
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
