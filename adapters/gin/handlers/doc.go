// Package handlers contains one gin handler per route. Handlers bind and
// validate input, apply the route's rate limit bucket and translate service
// results to HTTP; all policy lives in the core service.
package handlers

// Gin context keys set by the authgin middleware after token verification.
// They mirror authgin.Key*; authgin imports this package, so the values are
// repeated here rather than imported.
const (
	ctxUserID    = "auth.user_id"
	ctxSessionID = "auth.session_id"
	ctxEmail     = "auth.email"
	ctxRoles     = "auth.roles"
)
