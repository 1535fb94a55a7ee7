package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetUserID(ctx))
	assert.False(t, HasRole(ctx, "storekeeper"))

	ctx = WithUser(ctx, &UserContext{UserID: "u-1", Roles: []string{"storekeeper"}})
	assert.Equal(t, "u-1", GetUserID(ctx))
	assert.True(t, HasRole(ctx, "storekeeper"))
	assert.False(t, HasRole(ctx, "admin"))
}

func TestNewTraceContext(t *testing.T) {
	tc := NewTraceContext("", "req-1")
	assert.NotEmpty(t, tc.TraceID)
	assert.Equal(t, "req-1", tc.RequestID)

	ctx := WithTrace(context.Background(), tc)
	assert.Equal(t, "req-1", GetRequestID(ctx))
}
