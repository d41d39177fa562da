// Package common holds the response types shared by handlers and
// middleware. Separate from the http package to avoid an import cycle.
package common

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domainerrors "github.com/Haleralex/walletcore/internal/domain/errors"
)

// ErrorEnvelope is the wire shape of every error response.
type ErrorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
}

// Error writes an error envelope and aborts the chain.
func Error(c *gin.Context, statusCode int, errType, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorEnvelope{
		StatusCode: statusCode,
		Error:      http.StatusText(statusCode),
		Message:    message,
		Type:       errType,
	})
}

// BadRequest writes a 400 for malformed input.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "Validation", message)
}

// TooManyRequests writes a 429 with a Retry-After header.
func TooManyRequests(c *gin.Context, retryAfterSeconds int) {
	c.Header("Retry-After", itoa(retryAfterSeconds))
	Error(c, http.StatusTooManyRequests, "RateLimited", "Too many requests, please try again later")
}

// Internal writes a 500 without leaking the underlying error.
func Internal(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal", "An unexpected error occurred")
}

// HandleDomainError maps a domain error to the HTTP status contract:
// validation 400, not found 404, business rule 422, concurrency 409,
// everything else 500.
func HandleDomainError(c *gin.Context, err error) {
	switch {
	case domainerrors.IsValidation(err):
		Error(c, http.StatusBadRequest, domainerrors.Code(err), err.Error())
	case domainerrors.IsNotFound(err):
		Error(c, http.StatusNotFound, domainerrors.Code(err), err.Error())
	case domainerrors.IsBusinessRule(err):
		Error(c, http.StatusUnprocessableEntity, domainerrors.Code(err), err.Error())
	case domainerrors.IsConcurrency(err):
		Error(c, http.StatusConflict, domainerrors.Code(err),
			"Resource was modified by another request, please retry")
	default:
		Internal(c)
	}
}

func itoa(i int) string {
	if i <= 0 {
		return "1"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}
