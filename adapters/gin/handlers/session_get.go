package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/lang"
)

// HandleSessionGET handles GET /auth/session: the caller behind a valid token.
func HandleSessionGET() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ctxUserID)
		if uid == "" {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		language, ok := lang.LanguageFromContext(c.Request.Context())
		if !ok {
			language = lang.DefaultLanguage
		}
		c.JSON(http.StatusOK, gin.H{
			"user_id":    uid,
			"email":      c.GetString(ctxEmail),
			"session_id": c.GetString(ctxSessionID),
			"roles":      c.GetStringSlice(ctxRoles),
			"language":   language,
		})
	}
}
