// Package middleware holds the gin middleware chain: request id, logging,
// recovery, CORS, rate limiting, and HTTP metrics.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the idempotency/trace header.
	RequestIDHeader = "X-Request-ID"
	// requestIDContextKey stores the request id in the gin context.
	requestIDContextKey = "request_id"
)

// RequestID propagates the client's X-Request-ID, generating one when the
// header is absent. The generated id is for tracing only; idempotency uses
// the client-supplied header, which handlers read from the request directly.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GetRequestID returns the request id set by the RequestID middleware.
func GetRequestID(c *gin.Context) string {
	if id, exists := c.Get(requestIDContextKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
