package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/walletcore/internal/application/dtos"
	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

type mockAdmin struct {
	freezeFn   func(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error)
	unfreezeFn func(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error)
	closeFn    func(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error)
	setLimitFn func(ctx context.Context, cmd dtos.SetDailyLimitCommand) (*dtos.WalletStateResult, error)
}

func (m *mockAdmin) Freeze(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
	return m.freezeFn(ctx, walletID, requestID)
}

func (m *mockAdmin) Unfreeze(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
	return m.unfreezeFn(ctx, walletID, requestID)
}

func (m *mockAdmin) Close(ctx context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
	return m.closeFn(ctx, walletID, requestID)
}

func (m *mockAdmin) SetDailyLimit(ctx context.Context, cmd dtos.SetDailyLimitCommand) (*dtos.WalletStateResult, error) {
	return m.setLimitFn(ctx, cmd)
}

func newAdminRouter(admin WalletAdministration) *gin.Engine {
	router := gin.New()
	NewAdminHandler(admin).RegisterRoutes(router.Group("/v1"))
	return router
}

func TestFreeze_Success(t *testing.T) {
	admin := &mockAdmin{
		freezeFn: func(_ context.Context, walletID, requestID string) (*dtos.WalletStateResult, error) {
			assert.Equal(t, "alice", walletID)
			assert.Equal(t, "req-f", requestID)
			return &dtos.WalletStateResult{WalletID: walletID, Status: "FROZEN", Balance: decimal.NewFromInt(10)}, nil
		},
	}
	router := newAdminRouter(admin)

	w := doRequest(router, http.MethodPost, "/v1/admin/wallet/alice/freeze", "",
		map[string]string{"X-Request-ID": "req-f"})

	assert.Equal(t, http.StatusOK, w.Code)
	var result dtos.WalletStateResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "FROZEN", result.Status)
}

func TestClose_NonZeroBalanceIs422(t *testing.T) {
	admin := &mockAdmin{
		closeFn: func(context.Context, string, string) (*dtos.WalletStateResult, error) {
			return nil, domainerrors.ErrNonZeroBalance
		},
	}
	router := newAdminRouter(admin)

	w := doRequest(router, http.MethodPost, "/v1/admin/wallet/alice/close", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSetDailyLimit_PassesLimit(t *testing.T) {
	var captured dtos.SetDailyLimitCommand
	admin := &mockAdmin{
		setLimitFn: func(_ context.Context, cmd dtos.SetDailyLimitCommand) (*dtos.WalletStateResult, error) {
			captured = cmd
			return &dtos.WalletStateResult{WalletID: cmd.WalletID, Status: "ACTIVE"}, nil
		},
	}
	router := newAdminRouter(admin)

	w := doRequest(router, http.MethodPut, "/v1/admin/wallet/alice/limit", `{"limit": 250.50}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, captured.Limit)
	assert.True(t, captured.Limit.Equal(decimal.RequireFromString("250.50")))
}

func TestClearDailyLimit_PassesNil(t *testing.T) {
	var captured dtos.SetDailyLimitCommand
	admin := &mockAdmin{
		setLimitFn: func(_ context.Context, cmd dtos.SetDailyLimitCommand) (*dtos.WalletStateResult, error) {
			captured = cmd
			return &dtos.WalletStateResult{WalletID: cmd.WalletID, Status: "ACTIVE"}, nil
		},
	}
	router := newAdminRouter(admin)

	w := doRequest(router, http.MethodDelete, "/v1/admin/wallet/alice/limit", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, captured.Limit)
}
