package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfgerp/internal/core/apperror"
	appctx "mfgerp/internal/core/context"
	"mfgerp/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	switch token {
	case "planner":
		return &appctx.UserContext{UserID: "u-1", Roles: []string{"planner"}}, nil
	case "storekeeper":
		return &appctx.UserContext{UserID: "u-2", Roles: []string{"storekeeper"}}, nil
	}
	return nil, errors.New("bad token")
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), Auth(fakeValidator{}))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": appctx.GetUserID(c.Request.Context())})
	})
	r.GET("/post", RequireRole("storekeeper"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
		code   string
	}{
		{name: "missing header", path: "/me", status: http.StatusUnauthorized, code: apperror.CodeUnauthorized},
		{name: "not bearer", path: "/me", header: "Basic abc", status: http.StatusUnauthorized, code: apperror.CodeUnauthorized},
		{name: "invalid token", path: "/me", header: "Bearer nope", status: http.StatusUnauthorized, code: apperror.CodeUnauthorized},
		{name: "valid token", path: "/me", header: "Bearer planner", status: http.StatusOK},
		{name: "lower-case scheme", path: "/me", header: "bearer planner", status: http.StatusOK},
		{name: "role missing", path: "/post", header: "Bearer planner", status: http.StatusForbidden, code: apperror.CodeForbidden},
		{name: "role present", path: "/post", header: "Bearer storekeeper", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, w).Code)
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(Trace(), ErrorHandler())
	r.GET("/not-found", func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("stock move", "m-1"))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("connection reset"))
	})

	t.Run("app error keeps code and details", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/not-found", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, apperror.CodeNotFound, body.Code)
		assert.Equal(t, "m-1", body.Details["id"])
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/plain", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, apperror.CodeInternal, body.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
		assert.Equal(t, w.Header().Get(HeaderRequestID), body.Details["requestId"])
	})
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(), Trace(), ErrorHandler())
	r.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestTrace(t *testing.T) {
	r := gin.New()
	r.Use(Trace())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
	})

	t.Run("reuses incoming request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := serve(r, req)

		assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
		assert.Equal(t, "req-123", w.Body.String())
	})

	t.Run("generates ids", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
		assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
	})
}

type storedKey struct {
	hash   string
	done   bool
	status int
	body   []byte
}

type fakeIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]*storedKey
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: map[string]*storedKey{}}
}

func (s *fakeIdempotencyStore) AcquireKey(_ context.Context, key, _, _, hash string) (*postgres.IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[key]
	if !ok {
		s.keys[key] = &storedKey{hash: hash}
		return nil, nil
	}
	if k.hash != hash {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if !k.done {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return &postgres.IdempotencyReplay{StatusCode: k.status, ContentType: "application/json", Body: k.body}, nil
}

func (s *fakeIdempotencyStore) CompleteKey(_ context.Context, key string, status int, _ string, response any) error {
	return s.finish(key, status, response)
}

func (s *fakeIdempotencyStore) FailKey(_ context.Context, key string, status int, _ string, response any) error {
	return s.finish(key, status, response)
}

func (s *fakeIdempotencyStore) finish(key string, status int, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.keys[key]
	k.done = true
	k.status = status
	k.body = body
	return nil
}

func TestIdempotency(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0

	r := gin.New()
	r.Use(ErrorHandler(), Idempotency(store))
	r.POST("/moves", func(c *gin.Context) {
		calls++
		resp := gin.H{"call": calls}
		CompleteIdempotency(c, http.StatusCreated, "application/json", resp)
		c.JSON(http.StatusCreated, resp)
	})
	r.POST("/fail", func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewValidation("bad qty"))
	})
	r.GET("/moves", func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	post := func(path, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		return serve(r, req)
	}

	t.Run("replays completed response", func(t *testing.T) {
		calls = 0
		first := post("/moves", "k-1", `{"a":1}`)
		second := post("/moves", "k-1", `{"a":1}`)

		assert.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.JSONEq(t, first.Body.String(), second.Body.String())
		assert.Equal(t, 1, calls)
	})

	t.Run("different body is rejected", func(t *testing.T) {
		w := post("/moves", "k-1", `{"a":2}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, apperror.CodeIdempotencyMismatch, decodeError(t, w).Code)
	})

	t.Run("pending key conflicts", func(t *testing.T) {
		sum := sha256.Sum256([]byte(`{}`))
		_, err := store.AcquireKey(context.Background(), "k-pending", "", "", hex.EncodeToString(sum[:]))
		require.NoError(t, err)

		w := post("/moves", "k-pending", `{}`)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperror.CodeIdempotencyConflict, decodeError(t, w).Code)
	})

	t.Run("failures replay too", func(t *testing.T) {
		calls = 0
		first := post("/fail", "k-2", `{}`)
		second := post("/fail", "k-2", `{}`)

		assert.Equal(t, http.StatusBadRequest, first.Code)
		assert.Equal(t, http.StatusBadRequest, second.Code)
		assert.Equal(t, apperror.CodeValidation, decodeError(t, second).Code)
		assert.Equal(t, 1, calls)
	})

	t.Run("no key passes through", func(t *testing.T) {
		calls = 0
		post("/moves", "", `{}`)
		post("/moves", "", `{}`)

		assert.Equal(t, 2, calls)
	})

	t.Run("GET is ignored", func(t *testing.T) {
		calls = 0
		req := httptest.NewRequest(http.MethodGet, "/moves", nil)
		req.Header.Set(HeaderIdempotencyKey, "k-3")
		serve(r, req)
		serve(r, req)

		assert.Equal(t, 2, calls)
	})
}
