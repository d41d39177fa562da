package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleDomainError(c, err)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return w, envelope
}

func TestHandleDomainError_Validation(t *testing.T) {
	w, envelope := perform(t, domainerrors.ErrInvalidAmount)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusBadRequest, envelope.StatusCode)
	assert.Equal(t, "Bad Request", envelope.Error)
	assert.Equal(t, "InvalidAmount", envelope.Type)
}

func TestHandleDomainError_BusinessRules(t *testing.T) {
	cases := []struct {
		err      error
		wantType string
	}{
		{domainerrors.ErrInsufficientFunds, "InsufficientFunds"},
		{domainerrors.ErrWalletNotActive, "WalletNotActive"},
		{domainerrors.ErrWithdrawalLimitExceeded, "WithdrawalLimitExceeded"},
		{domainerrors.ErrCurrencyMismatch, "CurrencyMismatch"},
		{domainerrors.ErrNonZeroBalance, "NonZeroBalance"},
		{domainerrors.ErrTransferToSelf, "TransferToSelf"},
	}
	for _, tc := range cases {
		t.Run(tc.wantType, func(t *testing.T) {
			w, envelope := perform(t, tc.err)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, tc.wantType, envelope.Type)
		})
	}
}

func TestHandleDomainError_NotFound(t *testing.T) {
	w, envelope := perform(t, domainerrors.ErrWalletNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "WalletNotFound", envelope.Type)
}

func TestHandleDomainError_Concurrency(t *testing.T) {
	w, envelope := perform(t, domainerrors.NewConcurrencyError("wallet", "w1", "version mismatch"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Conflict", envelope.Type)
}

func TestHandleDomainError_UnknownIsInternal(t *testing.T) {
	w, envelope := perform(t, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal", envelope.Type)
	assert.NotContains(t, envelope.Message, "boom", "internal details must not leak")
}

func TestTooManyRequests_SetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	TooManyRequests(c, 17)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "17", w.Header().Get("Retry-After"))
}
