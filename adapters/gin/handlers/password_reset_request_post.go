package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/lang"
)

// HandlePasswordResetRequestPOST handles POST /auth/password/reset/request.
// The answer is identical whether or not the address belongs to an account.
func HandlePasswordResetRequestPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type resetReq struct {
		Email string `json:"email"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLPasswordResetRequest) {
			ginutil.TooMany(c)
			return
		}
		var req resetReq
		if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if err := svc.RequestPasswordReset(c.Request.Context(), req.Email, c.ClientIP(), c.Request.UserAgent()); err != nil {
			ginutil.Error(c, "reset_request_failed", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"ok": true, "message": lang.Message(c.Request.Context(), lang.MsgResetRequested)})
	}
}
