package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminUserCreatePOST handles POST /admin/users.
func HandleAdminUserCreatePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type createReq struct {
		Email    string   `json:"email"`
		Password string   `json:"password"`
		Roles    []string `json:"roles"`
		Status   string   `json:"status"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		var req createReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		acct, err := svc.CreateUser(c.Request.Context(), core.NewAccount{
			Email:    req.Email,
			Password: req.Password,
			Roles:    req.Roles,
			Status:   core.AccountStatus(req.Status),
		})
		if err != nil {
			ginutil.Error(c, "create_failed", err)
			return
		}
		c.JSON(http.StatusCreated, acct)
	}
}
