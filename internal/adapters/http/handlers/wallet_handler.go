package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
	"github.com/Haleralex/walletcore/internal/adapters/http/middleware"
	"github.com/Haleralex/walletcore/internal/application/dtos"
)

// WalletEngine is the wallet use-case surface the handler calls.
type WalletEngine interface {
	Deposit(ctx context.Context, cmd dtos.DepositCommand) (*dtos.BalanceResult, error)
	Withdraw(ctx context.Context, cmd dtos.WithdrawCommand) (*dtos.BalanceResult, error)
	GetBalance(ctx context.Context, walletID string) (*dtos.BalanceResult, error)
	GetHistory(ctx context.Context, walletID string, limit, offset int) (*dtos.HistoryResult, error)
}

// TransferEngine is the transfer use-case surface the handler calls.
type TransferEngine interface {
	Execute(ctx context.Context, cmd dtos.TransferCommand) (*dtos.TransferResult, error)
}

// WalletHandler serves the wallet endpoints.
type WalletHandler struct {
	wallets   WalletEngine
	transfers TransferEngine
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallets WalletEngine, transfers TransferEngine) *WalletHandler {
	return &WalletHandler{wallets: wallets, transfers: transfers}
}

// WalletIDParam is the wallet id path parameter. Ids are opaque strings, not
// UUIDs; "alice" is a valid wallet id.
type WalletIDParam struct {
	ID string `uri:"id" binding:"required,wallet_id"`
}

// AmountRequest is the body of deposit and withdraw.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// TransferRequest is the body of transfer.
type TransferRequest struct {
	ToWalletID string          `json:"toWalletId" binding:"required,wallet_id"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
}

// requestID returns the client-supplied idempotency key, empty when the
// header was not sent. The middleware-generated trace id is deliberately not
// used here: a generated key can never match a retry.
func requestID(c *gin.Context) string {
	return c.GetHeader(middleware.RequestIDHeader)
}

// Deposit credits a wallet, provisioning it on first use.
func (h *WalletHandler) Deposit(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}
	var req AmountRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.wallets.Deposit(c.Request.Context(), dtos.DepositCommand{
		WalletID:  params.ID,
		Amount:    req.Amount,
		RequestID: requestID(c),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Withdraw debits a wallet.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}
	var req AmountRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.wallets.Withdraw(c.Request.Context(), dtos.WithdrawCommand{
		WalletID:  params.ID,
		Amount:    req.Amount,
		RequestID: requestID(c),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Transfer moves funds from the path wallet to the body's destination.
func (h *WalletHandler) Transfer(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}
	var req TransferRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.transfers.Execute(c.Request.Context(), dtos.TransferCommand{
		FromWalletID: params.ID,
		ToWalletID:   req.ToWalletID,
		Amount:       req.Amount,
		RequestID:    requestID(c),
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBalance returns the wallet balance. Unknown wallets report zero.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}

	result, err := h.wallets.GetBalance(c.Request.Context(), params.ID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetHistory returns a page of the wallet's journal, newest first.
func (h *WalletHandler) GetHistory(c *gin.Context) {
	var params WalletIDParam
	if !BindURI(c, &params) {
		return
	}
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	result, err := h.wallets.GetHistory(c.Request.Context(), params.ID, limit, offset)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// RegisterRoutes wires the wallet endpoints onto the v1 group.
func (h *WalletHandler) RegisterRoutes(v1 *gin.RouterGroup, financialOps gin.HandlerFunc) {
	wallet := v1.Group("/wallet")
	{
		wallet.GET("/:id", h.GetBalance)
		wallet.GET("/:id/history", h.GetHistory)

		if financialOps != nil {
			wallet.POST("/:id/deposit", financialOps, h.Deposit)
			wallet.POST("/:id/withdraw", financialOps, h.Withdraw)
			wallet.POST("/:id/transfer", financialOps, h.Transfer)
		} else {
			wallet.POST("/:id/deposit", h.Deposit)
			wallet.POST("/:id/withdraw", h.Withdraw)
			wallet.POST("/:id/transfer", h.Transfer)
		}
	}
}
