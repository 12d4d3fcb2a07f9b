package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/luminar-sync-api/internal/dto"
	"github.com/noah-isme/luminar-sync-api/internal/models"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
	"github.com/noah-isme/luminar-sync-api/pkg/response"
)

type ledgerService interface {
	Upsert(ctx context.Context, req dto.UpsertAttendanceRequest) (*models.AttendanceRecord, error)
	ListRange(ctx context.Context, req dto.ListAttendanceRequest) ([]models.AttendanceRecord, error)
	Delete(ctx context.Context, id string) error
}

// AttendanceHandler exposes the local per-period attendance ledger.
type AttendanceHandler struct {
	service ledgerService
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service ledgerService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Upsert godoc
// @Summary Create or replace one period's attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.UpsertAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Upsert(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	record, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// List godoc
// @Summary List attendance records for a class over a date range
// @Tags Attendance
// @Produce json
// @Param class_id query string true "Class id"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ListAttendanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance query"))
		return
	}
	records, err := h.service.ListRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Delete godoc
// @Summary Delete one attendance record from the local ledger
// @Tags Attendance
// @Produce json
// @Param id path string true "Record id"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if claimsFromContext(c) == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
