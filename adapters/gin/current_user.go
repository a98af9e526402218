package authgin

import (
	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/lang"
)

// UserView is the caller as seen by handlers.
type UserView struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	SessionID string   `json:"session_id,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Language  string   `json:"language"`

	// Meta
	Source string `json:"source"` // "claims" | "none"
}

// CurrentUser returns a snapshot of the caller from the verified token. The
// request language is filled in even for anonymous callers.
func CurrentUser(c *gin.Context) (UserView, bool) {
	reqLang := lang.DefaultLanguage
	if v, ok := lang.LanguageFromContext(c.Request.Context()); ok {
		reqLang = v
	}
	if cl, ok := ClaimsFromGin(c); ok && cl.UserID != "" {
		return UserView{
			UserID:    cl.UserID,
			Email:     cl.Email,
			SessionID: cl.SessionID,
			Roles:     cl.Roles,
			Language:  reqLang,
			Source:    "claims",
		}, true
	}
	return UserView{Language: reqLang, Source: "none"}, false
}
