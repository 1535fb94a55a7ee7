// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/core/apperror"
	"mfgerp/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// Logs stack trace but never exposes internal details to client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				// The panic unwound past ErrorHandler, so render here.
				appErr := apperror.NewInternal(fmt.Errorf("panic: %v", err)).
					WithDetail("requestId", c.GetString(ctxRequestID))
				_ = c.Error(appErr)
				c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
					"details": appErr.Details,
				})
			}
		}()
		c.Next()
	}
}
