package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "mfgerp/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Gin context keys.
const (
	ctxRequestID        = "request_id"
	ctxTraceID          = "trace_id"
	ctxUserID           = "user_id"
	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// Trace middleware adds request tracing context, reusing incoming ids.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		trace := appctx.NewTraceContext(c.GetHeader(HeaderTraceID), c.GetHeader(HeaderRequestID))
		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), trace))

		c.Set(ctxTraceID, trace.TraceID)
		c.Set(ctxRequestID, trace.RequestID)

		c.Header(HeaderRequestID, trace.RequestID)
		c.Header(HeaderTraceID, trace.TraceID)

		c.Next()
	}
}
