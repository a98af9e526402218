package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserIPsGET handles GET /admin/users/:user_id/ips?top=N.
func HandleAdminUserIPsGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		top, _ := strconv.Atoi(c.DefaultQuery("top", "10"))
		items, err := svc.GetTopIPAddresses(c.Request.Context(), c.Param("user_id"), top)
		if err != nil {
			ginutil.Error(c, "failed_to_list_ips", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}
