package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserSigninsGET handles GET /admin/users/:user_id/signins.
// successful=true limits the page to successful logins.
func HandleAdminUserSigninsGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("user_id")
		page, size := pageParams(c)
		onlySuccessful, _ := strconv.ParseBool(c.DefaultQuery("successful", "false"))
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		res, err := svc.GetLoginHistory(c.Request.Context(), id, page, size, onlySuccessful)
		if err != nil {
			ginutil.Error(c, "failed_to_list_signins", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res.Records, "total": res.TotalCount, "page": res.Page, "page_size": res.PageSize})
	}
}

// HandleUserSigninsGET handles GET /auth/signins: the caller's own history.
func HandleUserSigninsGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, size := pageParams(c)
		if !ginutil.AllowNamed(c, rl, ginutil.RLSessionsList) {
			ginutil.TooMany(c)
			return
		}
		res, err := svc.GetLoginHistory(c.Request.Context(), c.GetString(ctxUserID), page, size, false)
		if err != nil {
			ginutil.Error(c, "failed_to_list_signins", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res.Records, "total": res.TotalCount, "page": res.Page, "page_size": res.PageSize})
	}
}
