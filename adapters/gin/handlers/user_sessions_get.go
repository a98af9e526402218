package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleUserSessionsGET handles GET /auth/sessions.
func HandleUserSessionsGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLSessionsList) {
			ginutil.TooMany(c)
			return
		}
		uid := c.GetString(ctxUserID)
		recs, err := svc.GetUserSessions(c.Request.Context(), uid)
		if err != nil {
			ginutil.Error(c, "failed_to_list_sessions", err)
			return
		}
		current := c.GetString(ctxSessionID)
		items := make([]sessionView, 0, len(recs))
		for _, r := range recs {
			v := newSessionView(r)
			v.Current = v.SessionID == current
			items = append(items, v)
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}
