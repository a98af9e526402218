package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleUserSessionDELETE handles DELETE /auth/sessions/:id. Only the
// caller's own sessions are closed; any other id answers the same way.
// "current" tells the client it just signed itself out.
func HandleUserSessionDELETE(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAuthSessionsRevoke) {
			ginutil.TooMany(c)
			return
		}
		target := strings.TrimSpace(c.Param("id"))
		if target == "" {
			ginutil.BadRequest(c, "missing_session_id")
			return
		}
		req := core.LogoutRequest{
			UserID:    c.GetString(ctxUserID),
			SessionID: target,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		if _, err := svc.Logout(c.Request.Context(), req); err != nil {
			ginutil.Error(c, "failed_to_revoke", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "current": target == c.GetString(ctxSessionID)})
	}
}
