package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserSessionsGET handles GET /admin/users/:user_id/sessions.
func HandleAdminUserSessionsGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		recs, err := svc.GetUserSessions(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			ginutil.Error(c, "failed_to_list_sessions", err)
			return
		}
		items := make([]sessionView, 0, len(recs))
		for _, r := range recs {
			items = append(items, newSessionView(r))
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

// HandleAdminUserSessionsDELETE handles DELETE /admin/users/:user_id/sessions.
func HandleAdminUserSessionsDELETE(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("user_id")
		if id == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		n, err := svc.RevokeAllSessions(c.Request.Context(), id)
		if err != nil {
			ginutil.Error(c, "failed_to_revoke", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "closed": n})
	}
}
