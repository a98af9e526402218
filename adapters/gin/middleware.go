package authgin

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	jwtkit "github.com/PaulFidika/fleetauth/jwt"
	"github.com/PaulFidika/fleetauth/metrics"
)

// Gin context keys set by AuthRequired.
const (
	KeyUserID    = "auth.user_id"
	KeySessionID = "auth.session_id"
	KeyEmail     = "auth.email"
	KeyRoles     = "auth.roles"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*jwtkit.Claims, error)
}

// SessionChecker reports whether a token's session is still open.
type SessionChecker interface {
	IsSessionValid(ctx context.Context, userID, sessionID string) (bool, error)
}

type claimsKey struct{}

// SetClaims attaches verified claims to ctx.
func SetClaims(ctx context.Context, cl jwtkit.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, cl)
}

// ClaimsFromContext returns claims attached by SetClaims.
func ClaimsFromContext(ctx context.Context) (jwtkit.Claims, bool) {
	cl, ok := ctx.Value(claimsKey{}).(jwtkit.Claims)
	return cl, ok
}

// ClaimsFromGin returns the claims of the authenticated caller.
func ClaimsFromGin(c *gin.Context) (jwtkit.Claims, bool) {
	return ClaimsFromContext(c.Request.Context())
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// AuthRequired accepts a request only with a valid token whose session is
// still open. Closing a session (logout, lock, password change) revokes its
// token immediately.
func AuthRequired(v TokenVerifier, sessions SessionChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			ginutil.Unauthorized(c, "missing_token")
			return
		}
		cl, err := v.Verify(c.Request.Context(), raw)
		if err != nil || cl.UserID == "" || cl.SessionID == "" {
			ginutil.Unauthorized(c, "invalid_token")
			return
		}
		ok, err := sessions.IsSessionValid(c.Request.Context(), cl.UserID, cl.SessionID)
		if err != nil {
			ginutil.ServerErrWithLog(c, "session_check_failed", err, "session validation failed")
			return
		}
		if !ok {
			ginutil.Unauthorized(c, "session_expired")
			return
		}
		c.Set(KeyUserID, cl.UserID)
		c.Set(KeySessionID, cl.SessionID)
		c.Set(KeyEmail, cl.Email)
		c.Set(KeyRoles, cl.Roles)
		c.Request = c.Request.WithContext(SetClaims(c.Request.Context(), *cl))
		c.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := ClaimsFromGin(c)
		if !ok {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		if !cl.HasRole(role) {
			ginutil.Forbidden(c, "forbidden")
			return
		}
		c.Next()
	}
}

// Metrics records request counts and latency per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
