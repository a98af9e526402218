package authgin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/authtest"
	"github.com/PaulFidika/fleetauth/core"
	memorylimiter "github.com/PaulFidika/fleetauth/ratelimit/memory"
)

const (
	driverEmail = "driver@fleet.example"
	adminEmail  = "ops@fleet.example"
	pw          = "correct-horse"
)

func newRouter(t *testing.T, h *authtest.Harness, rl ...ginutil.RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	d := Deps{Auth: h.Auth, Verifier: h.Verifier, Keys: h.Issuer, Clock: h.Clock, Logger: h.Logger}
	if len(rl) > 0 {
		d.Limiter = rl[0]
	}
	require.NoError(t, Register(r, d))
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r http.Handler, email, password string) core.PublicResult {
	t.Helper()
	w := do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	var res core.PublicResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func TestLoginSessionLogout(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, driverEmail, pw, "dispatcher")
	r := newRouter(t, h)

	res := login(t, r, driverEmail, pw)
	require.True(t, res.Success)
	require.NotEmpty(t, res.Token)
	assert.EqualValues(t, 30*60, res.SessionDuration)

	w := do(t, r, http.MethodGet, "/auth/session", res.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, driverEmail, me["email"])
	assert.Equal(t, res.SessionID, me["session_id"])

	w = do(t, r, http.MethodGet, "/auth/sessions", res.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"current":true`)
	assert.Contains(t, w.Body.String(), "Firefox")

	w = do(t, r, http.MethodPost, "/auth/logout", res.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/auth/session", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session_expired")
}

func TestLoginFailureIsUniform(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)

	wrong := do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"email": driverEmail, "password": "nope-nope"})
	unknown := do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"email": "ghost@fleet.example", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	assert.NotContains(t, wrong.Body.String(), "user_not_found")

	malformed := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, malformed)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	h := authtest.New(t)
	acct := h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)

	w := do(t, r, http.MethodGet, "/auth/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing_token")

	w = do(t, r, http.MethodGet, "/auth/session", "not-a-jwt", nil)
	assert.Contains(t, w.Body.String(), "invalid_token")

	res := login(t, r, driverEmail, pw)
	w = do(t, r, http.MethodGet, "/auth/session", h.ExpiredToken(t, acct.ID, res.SessionID), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")

	// valid signature but the session was never opened
	forged := h.SignClaims(t, map[string]any{"sub": acct.ID, "sid": "never-opened"})
	w = do(t, r, http.MethodGet, "/auth/session", forged, nil)
	assert.Contains(t, w.Body.String(), "session_expired")

	// the session lifetime ends even if the token would still verify
	h.Clock.Advance(31 * time.Minute)
	w = do(t, r, http.MethodGet, "/auth/session", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)

	res := login(t, r, driverEmail, pw)
	w := do(t, r, http.MethodGet, "/admin/audit/sessions", res.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminLockRevokesTokens(t *testing.T) {
	h := authtest.New(t)
	driver := h.CreateUser(t, driverEmail, pw)
	h.CreateUser(t, adminEmail, pw, "admin")
	r := newRouter(t, h)

	driverRes := login(t, r, driverEmail, pw)
	adminRes := login(t, r, adminEmail, pw)

	w := do(t, r, http.MethodPost, "/admin/users/"+driver.ID+"/lock", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/auth/session", driverRes.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	locked := login(t, r, driverEmail, pw)
	assert.False(t, locked.Success)

	w = do(t, r, http.MethodPost, "/admin/users/"+driver.ID+"/unlock", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, login(t, r, driverEmail, pw).Success)

	w = do(t, r, http.MethodPost, "/admin/users/00000000-0000-0000-0000-000000000000/lock", adminRes.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	past := h.Clock.Now().Add(-time.Hour)
	w = do(t, r, http.MethodPost, "/admin/users/"+driver.ID+"/lock", adminRes.Token, map[string]any{"until": past})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminReports(t *testing.T) {
	h := authtest.New(t)
	driver := h.CreateUser(t, driverEmail, pw)
	h.CreateUser(t, adminEmail, pw, "admin")
	r := newRouter(t, h)

	login(t, r, driverEmail, "wrong-horse")
	login(t, r, driverEmail, pw)
	adminRes := login(t, r, adminEmail, pw)

	w := do(t, r, http.MethodGet, "/admin/users/"+driver.ID+"/signins?page_size=10", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Data  []audit.Record `json:"data"`
		Total int            `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	w = do(t, r, http.MethodGet, "/admin/users/"+driver.ID+"/ips", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "192.0.2.1")

	// the default range ends now, exclusive
	h.Clock.Advance(time.Minute)
	w = do(t, r, http.MethodGet, "/admin/audit/statistics", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats audit.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalAttempts)
	assert.Equal(t, 2, stats.SuccessfulLogins)

	w = do(t, r, http.MethodGet, "/admin/audit/statistics?from=bogus", adminRes.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/admin/audit/sessions", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)

	w = do(t, r, http.MethodDelete, "/admin/users/"+driver.ID+"/sessions", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"closed":1`)

	w = do(t, r, http.MethodGet, "/admin/audit/suspicious?hours=1", adminRes.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminUserManagement(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, adminEmail, pw, "admin")
	r := newRouter(t, h)
	adminRes := login(t, r, adminEmail, pw)

	w := do(t, r, http.MethodPost, "/admin/users", adminRes.Token, map[string]any{"email": "new@fleet.example", "password": "long-enough-pw"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var acct core.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &acct))
	assert.NotContains(t, w.Body.String(), "password")

	w = do(t, r, http.MethodPost, "/admin/users", adminRes.Token, map[string]any{"email": "new@fleet.example", "password": "long-enough-pw"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPut, "/admin/users/"+acct.ID+"/roles/auditor", adminRes.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	roles, err := h.Identity.Roles(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"auditor"}, roles)

	w = do(t, r, http.MethodPost, "/admin/users/"+acct.ID+"/status", adminRes.Token, map[string]any{"status": "suspended"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, login(t, r, "new@fleet.example", "long-enough-pw").Success)

	w = do(t, r, http.MethodPost, "/admin/users/"+acct.ID+"/status", adminRes.Token, map[string]any{"status": "deleted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)

	known := do(t, r, http.MethodPost, "/auth/password/reset/request", "", map[string]any{"email": driverEmail})
	unknown := do(t, r, http.MethodPost, "/auth/password/reset/request", "", map[string]any{"email": "ghost@fleet.example"})
	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())

	token, ok := h.Outbox.Token(driverEmail)
	require.True(t, ok)

	w := do(t, r, http.MethodPost, "/auth/password/reset/confirm", "", map[string]any{"token": token, "new_password": "battery-staple"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/auth/password/reset/confirm", "", map[string]any{"token": token, "new_password": "battery-staple"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_or_expired_token")

	assert.True(t, login(t, r, driverEmail, "battery-staple").Success)
}

func TestPasswordResetUnavailableWithoutNotifier(t *testing.T) {
	h := authtest.New(t, func(o *core.Options, _ *audit.Options) { o.Notifier = nil })
	h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)

	known := do(t, r, http.MethodPost, "/auth/password/reset/request", "", map[string]any{"email": driverEmail})
	unknown := do(t, r, http.MethodPost, "/auth/password/reset/request", "", map[string]any{"email": "ghost@fleet.example"})
	assert.Equal(t, http.StatusServiceUnavailable, known.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())
	_, ok := h.Outbox.Token(driverEmail)
	assert.False(t, ok)
}

func TestPasswordChangeOverHTTP(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)
	res := login(t, r, driverEmail, pw)

	w := do(t, r, http.MethodPost, "/auth/password/change", res.Token, map[string]any{"current_password": "wrong-horse", "new_password": "battery-staple"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, r, http.MethodPost, "/auth/password/change", res.Token, map[string]any{"current_password": pw, "new_password": "battery-staple"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/auth/session", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "password change closes the session")
}

func TestRateLimitedLogin(t *testing.T) {
	h := authtest.New(t)
	rl := memorylimiter.New(map[string]memorylimiter.Limit{ginutil.RLLogin: {Limit: 1, Window: time.Minute}}, h.Clock)
	r := newRouter(t, h, rl)

	w := do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"email": driverEmail, "password": pw})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(t, r, http.MethodPost, "/auth/login", "", map[string]any{"email": driverEmail, "password": pw})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestJWKSRoute(t *testing.T) {
	h := authtest.New(t)
	r := newRouter(t, h)
	w := do(t, r, http.MethodGet, "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test-key-1")
}

func TestRevokeOwnSession(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, driverEmail, pw)
	r := newRouter(t, h)

	phone := login(t, r, driverEmail, pw)
	laptop := login(t, r, driverEmail, pw)
	require.True(t, phone.Success)
	require.True(t, laptop.Success)

	w := do(t, r, http.MethodDelete, "/auth/sessions/"+phone.SessionID, laptop.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["current"])

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/auth/session", phone.Token, nil).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/auth/session", laptop.Token, nil).Code)
}
