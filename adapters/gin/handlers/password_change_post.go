package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/lang"
)

// HandlePasswordChangePOST handles POST /auth/password/change. Success closes
// every session of the caller, this one included.
func HandlePasswordChangePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type changeReq struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLPasswordChange) {
			ginutil.TooMany(c)
			return
		}
		var req changeReq
		if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		err := svc.ChangePassword(c.Request.Context(), core.ChangePasswordRequest{
			UserID:          c.GetString(ctxUserID),
			CurrentPassword: req.CurrentPassword,
			NewPassword:     req.NewPassword,
			IPAddress:       c.ClientIP(),
			UserAgent:       c.Request.UserAgent(),
		})
		if errors.Is(err, autherr.ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_credentials",
				"message": lang.Message(c.Request.Context(), lang.MsgInvalidCredentials),
			})
			return
		}
		if err != nil {
			ginutil.Error(c, "password_change_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
