package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleLoginPOST handles POST /auth/login.
//
// Failures share one status and carry only the public message; the outcome
// classification stays server-side.
func HandleLoginPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type loginReq struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLLogin) {
			ginutil.TooMany(c)
			return
		}
		var req loginReq
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res := svc.Login(c.Request.Context(), core.LoginRequest{
			Email:      req.Email,
			Password:   req.Password,
			RememberMe: req.RememberMe,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		status := http.StatusOK
		switch {
		case res.Success:
		case res.Outcome == audit.ResultSystemError:
			status = http.StatusInternalServerError
		default:
			status = http.StatusUnauthorized
		}
		c.JSON(status, res.Public())
	}
}
