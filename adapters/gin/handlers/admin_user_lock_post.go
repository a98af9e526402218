package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserLockPOST handles POST /admin/users/:user_id/lock. Without
// "until" the lock has no end.
func HandleAdminUserLockPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type lockReq struct {
		Until *time.Time `json:"until"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		var req lockReq
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				ginutil.BadRequest(c, "invalid_request")
				return
			}
		}
		ok, err := svc.LockUser(c.Request.Context(), c.Param("user_id"), req.Until)
		if err != nil {
			ginutil.Error(c, "lock_failed", err)
			return
		}
		if !ok {
			ginutil.NotFound(c, "user_not_found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleAdminUserUnlockPOST handles POST /admin/users/:user_id/unlock.
func HandleAdminUserUnlockPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		ok, err := svc.UnlockUser(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			ginutil.Error(c, "unlock_failed", err)
			return
		}
		if !ok {
			ginutil.NotFound(c, "user_not_found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
