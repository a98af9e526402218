package ginutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulFidika/fleetauth/autherr"
)

type stubLimiter struct {
	allow bool
	err   error
	seen  []string
}

func (s *stubLimiter) AllowNamed(_ context.Context, bucket, key string) (bool, error) {
	s.seen = append(s.seen, bucket+"|"+key)
	return s.allow, s.err
}

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.9:4411"
	return c, w
}

func TestAllowNamed(t *testing.T) {
	c, _ := testContext(t)
	assert.True(t, AllowNamed(c, nil, RLLogin))

	deny := &stubLimiter{allow: false}
	assert.False(t, AllowNamed(c, deny, RLLogin))
	assert.Equal(t, []string{"auth_login|203.0.113.9"}, deny.seen)

	broken := &stubLimiter{err: errors.New("redis down")}
	assert.True(t, AllowNamed(c, broken, RLLogin), "limiter errors fail open")
}

func TestErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{autherr.Validation("op", "email required"), http.StatusBadRequest},
		{autherr.ErrAccountNotFound, http.StatusNotFound},
		{autherr.ErrInvalidCredentials, http.StatusUnauthorized},
		{autherr.ErrEmailTaken, http.StatusConflict},
		{autherr.ErrResetUnavailable, http.StatusServiceUnavailable},
		{autherr.Storage("op", errors.New("db down")), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		c, w := testContext(t)
		Error(c, "failed", tc.err)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.Equal(t, tc.code, StatusFor(tc.err))
		assert.True(t, c.IsAborted())
	}
}

func TestErrorHidesCauses(t *testing.T) {
	c, w := testContext(t)
	Error(c, "failed", autherr.Storage("op", errors.New("password=hunter2 host=db")))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "failed", body["error"])
	assert.NotContains(t, w.Body.String(), "hunter2")
}

func TestValidationMessageIsShown(t *testing.T) {
	c, w := testContext(t)
	Error(c, "invalid_request", autherr.Validation("op", "lock end must be in the future"))
	assert.Contains(t, w.Body.String(), "lock end must be in the future")
}
