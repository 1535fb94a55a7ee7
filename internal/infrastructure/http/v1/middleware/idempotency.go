package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/core/apperror"
	appctx "mfgerp/internal/core/context"
	"mfgerp/internal/infrastructure/storage/postgres"
	"mfgerp/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "X-Idempotency-Key"
	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB
)

// IdempotencyStore persists idempotency keys and the responses to replay.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// Idempotency middleware replays the stored response when a POST is
// retried with the same X-Idempotency-Key. Requests without the header
// pass through.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("cannot read request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("maxBytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		hash := sha256.Sum256(body)
		operation := c.Request.Method + " " + c.Request.URL.Path

		ctx := c.Request.Context()
		replay, err := store.AcquireKey(ctx, key, appctx.GetUserID(ctx), operation, hex.EncodeToString(hash[:]))
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		if replay != nil {
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency stores a successful response under the request's key, if any.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), key, statusCode, contentType, response); err != nil {
		logger.Warn(c.Request.Context(), "idempotency complete failed", "key", key, "error", err)
	}
}

func failIdempotency(c *gin.Context, statusCode int, response any) {
	key, store, ok := idempotencyFrom(c)
	if !ok {
		return
	}
	if err := store.FailKey(c.Request.Context(), key, statusCode, "application/json", response); err != nil {
		logger.Warn(c.Request.Context(), "idempotency fail failed", "key", key, "error", err)
	}
}

func idempotencyFrom(c *gin.Context) (string, IdempotencyStore, bool) {
	key := c.GetString(ctxIdempotencyKey)
	v, exists := c.Get(ctxIdempotencyStore)
	if key == "" || !exists {
		return "", nil, false
	}
	store, ok := v.(IdempotencyStore)
	return key, store, ok
}
