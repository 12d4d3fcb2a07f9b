package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/luminar-sync-api/internal/dto"
	appErrors "github.com/noah-isme/luminar-sync-api/pkg/errors"
	"github.com/noah-isme/luminar-sync-api/pkg/response"
)

type accountService interface {
	Get(ctx context.Context, userID string) (*dto.AccountResponse, error)
	Upsert(ctx context.Context, userID string, req dto.UpsertAccountRequest) (*dto.AccountResponse, error)
}

// AccountHandler exposes the caller's sync account endpoints.
type AccountHandler struct {
	service accountService
}

// NewAccountHandler builds a new handler.
func NewAccountHandler(service accountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Get godoc
// @Summary Current sync account, password masked
// @Tags Account
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/account [get]
func (h *AccountHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	account, err := h.service.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}

// Upsert godoc
// @Summary Store or replace remote credentials
// @Tags Account
// @Accept json
// @Produce json
// @Param payload body dto.UpsertAccountRequest true "Credentials payload"
// @Success 200 {object} response.Envelope
// @Router /sync/account [put]
func (h *AccountHandler) Upsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid account payload"))
		return
	}
	account, err := h.service.Upsert(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}
