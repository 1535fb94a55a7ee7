package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/core/apperror"
	"mfgerp/pkg/logger"
)

// ErrorHandler middleware renders the last error as {code, message, details}.
// Internal causes are logged, never sent.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			appErr = apperror.NewInternal(err).WithDetail("requestId", c.GetString(ctxRequestID))
		} else if appErr.Err != nil {
			logger.Error(ctx, "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}

		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}
