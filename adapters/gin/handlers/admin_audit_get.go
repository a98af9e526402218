package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
)

// HandleAdminAuditSuspiciousGET handles GET /admin/audit/suspicious?hours=24.
func HandleAdminAuditSuspiciousGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
		page, size := pageParams(c)
		res, err := svc.GetSuspiciousAttempts(c.Request.Context(), hours, page, size)
		if err != nil {
			ginutil.Error(c, "failed_to_list_suspicious", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res.Records, "total": res.TotalCount, "page": res.Page, "page_size": res.PageSize})
	}
}

// HandleAdminAuditStatisticsGET handles GET /admin/audit/statistics?from=&to=
// with RFC 3339 bounds. The range defaults to the last 24 hours.
func HandleAdminAuditStatisticsGET(svc *core.Service, clk clock.Clock, rl ginutil.RateLimiter) gin.HandlerFunc {
	clk = clock.Or(clk)
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		to := clk.Now()
		from := to.Add(-24 * time.Hour)
		var err error
		if v := c.Query("to"); v != "" {
			if to, err = time.Parse(time.RFC3339, v); err != nil {
				ginutil.BadRequest(c, "invalid_to")
				return
			}
		}
		if v := c.Query("from"); v != "" {
			if from, err = time.Parse(time.RFC3339, v); err != nil {
				ginutil.BadRequest(c, "invalid_from")
				return
			}
		}
		stats, err := svc.GetStatistics(c.Request.Context(), from, to)
		if err != nil {
			ginutil.Error(c, "failed_to_compute_statistics", err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// HandleAdminAuditSessionsGET handles GET /admin/audit/sessions: every open
// session across users.
func HandleAdminAuditSessionsGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAdmin) {
			ginutil.TooMany(c)
			return
		}
		recs, err := svc.GetActiveSessions(c.Request.Context())
		if err != nil {
			ginutil.Error(c, "failed_to_list_sessions", err)
			return
		}
		items := make([]sessionView, 0, len(recs))
		for _, r := range recs {
			items = append(items, newSessionView(r))
		}
		c.JSON(http.StatusOK, gin.H{"data": items, "total": len(items)})
	}
}
