package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/password"
)

// HandlePasswordResetConfirmPOST handles POST /auth/password/reset/confirm.
// The token is case-sensitive and is not normalized beyond trimming.
func HandlePasswordResetConfirmPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type resetConfirmReq struct {
		Token       string `json:"token"`
		Code        string `json:"code"` // same as token; accepted for older clients
		NewPassword string `json:"new_password"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLPasswordResetConfirm) {
			ginutil.TooMany(c)
			return
		}
		var req resetConfirmReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		token := strings.TrimSpace(req.Token)
		if token == "" {
			token = strings.TrimSpace(req.Code)
		}
		if token == "" || password.Validate(req.NewPassword) != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}

		err := svc.ResetPassword(c.Request.Context(), token, req.NewPassword, c.ClientIP(), c.Request.UserAgent())
		if errors.Is(err, autherr.ErrInvalidToken) {
			ginutil.BadRequest(c, "invalid_or_expired_token")
			return
		}
		if err != nil {
			ginutil.Error(c, "reset_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
