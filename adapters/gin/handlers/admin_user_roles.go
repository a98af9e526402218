package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserRolePUT handles PUT /admin/users/:user_id/roles/:role.
func HandleAdminUserRolePUT(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		if err := svc.AddRole(c.Request.Context(), c.Param("user_id"), c.Param("role")); err != nil {
			ginutil.Error(c, "role_update_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleAdminUserRoleDELETE handles DELETE /admin/users/:user_id/roles/:role.
func HandleAdminUserRoleDELETE(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		if err := svc.RemoveRole(c.Request.Context(), c.Param("user_id"), c.Param("role")); err != nil {
			ginutil.Error(c, "role_update_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
