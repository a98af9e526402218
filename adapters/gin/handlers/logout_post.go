package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleLogoutPOST handles POST /auth/logout for the session the token belongs to.
func HandleLogoutPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLLogout) {
			ginutil.TooMany(c)
			return
		}
		ok, err := svc.Logout(c.Request.Context(), core.LogoutRequest{
			UserID:    c.GetString(ctxUserID),
			SessionID: c.GetString(ctxSessionID),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		if err != nil {
			ginutil.Error(c, "logout_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	}
}
