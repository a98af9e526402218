package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/audit"
)

// sessionView is an open session as shown to its owner or an admin.
type sessionView struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	StartedAt time.Time `json:"started_at"`
	IPAddress string    `json:"ip_address"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`
	Device    string    `json:"device,omitempty"`
	Current   bool      `json:"current,omitempty"`
}

func newSessionView(r audit.Record) sessionView {
	v := sessionView{
		Email:     r.EmailAttempted,
		StartedAt: r.AttemptedAt,
		IPAddress: r.IPAddress,
		Browser:   r.Browser,
		OS:        r.OS,
		Device:    r.Device,
	}
	if r.SessionID != nil {
		v.SessionID = *r.SessionID
	}
	if r.UserID != nil {
		v.UserID = *r.UserID
	}
	return v
}

// pageParams reads page and page_size; the audit service clamps them.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return page, size
}
