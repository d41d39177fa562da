package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
	"github.com/Haleralex/walletcore/internal/application/dtos"
)

// WalletAdministration is the admin use-case surface: lifecycle transitions
// and the daily withdrawal limit.
type WalletAdministration interface {
	Freeze(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error)
	Unfreeze(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error)
	Close(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error)
	SetDailyLimit(ctx context.Context, cmd dtos.SetDailyLimitCommand) (*dtos.WalletStateResult, error)
}

// AdminHandler serves the wallet administration endpoints.
type AdminHandler struct {
	admin WalletAdministration
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin WalletAdministration) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// DailyLimitRequest is the body of the set-limit endpoint.
type DailyLimitRequest struct {
	Limit decimal.Decimal `json:"limit" binding:"required"`
}

// Freeze suspends a wallet; only compensation credits may touch it after.
func (h *AdminHandler) Freeze(c *gin.Context) {
	h.transition(c, h.admin.Freeze)
}

// Unfreeze reactivates a frozen wallet.
func (h *AdminHandler) Unfreeze(c *gin.Context) {
	h.transition(c, h.admin.Unfreeze)
}

// Close terminally closes a wallet; the balance must be zero.
func (h *AdminHandler) Close(c *gin.Context) {
	h.transition(c, h.admin.Close)
}

func (h *AdminHandler) transition(
	c *gin.Context,
	apply func(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error),
) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := apply(c.Request.Context(), params.ID, requestID(c))
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SetDailyLimit sets the wallet's daily withdrawal limit.
func (h *AdminHandler) SetDailyLimit(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}
	var req DailyLimitRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.admin.SetDailyLimit(c.Request.Context(), dtos.SetDailyLimitCommand{
		WalletID:  params.ID,
		Limit:     &req.Limit,
		RequestID: requestID(c),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ClearDailyLimit removes the wallet's daily withdrawal limit.
func (h *AdminHandler) ClearDailyLimit(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.admin.SetDailyLimit(c.Request.Context(), dtos.SetDailyLimitCommand{
		WalletID:  params.ID,
		Limit:     nil,
		RequestID: requestID(c),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RegisterRoutes wires the admin endpoints onto the v1 group.
func (h *AdminHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	admin := v1.Group("/admin/wallet")
	{
		admin.POST("/:id/freeze", h.Freeze)
		admin.POST("/:id/unfreeze", h.Unfreeze)
		admin.POST("/:id/close", h.Close)
		admin.PUT("/:id/limit", h.SetDailyLimit)
		admin.DELETE("/:id/limit", h.ClearDailyLimit)
	}
}
