package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserStatusPOST handles POST /admin/users/:user_id/status.
func HandleAdminUserStatusPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type statusReq struct {
		Status string `json:"status"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		var req statusReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if err := svc.SetStatus(c.Request.Context(), c.Param("user_id"), core.AccountStatus(req.Status)); err != nil {
			ginutil.Error(c, "status_change_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
