// Package authgin mounts the authentication and audit endpoints on gin.
package authgin

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/adapters/gin/handlers"
	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	authhttp "github.com/PaulFidika/fleetauth/adapters/http"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
)

// AdminRole is required for every /admin route.
const AdminRole = "admin"

// Deps are the collaborators of the HTTP surface.
type Deps struct {
	Auth     *core.Service // required
	Verifier TokenVerifier // required
	Keys     authhttp.KeyPublisher
	Limiter  ginutil.RateLimiter
	Language *LanguageConfig
	Clock    clock.Clock
	Logger   logrus.FieldLogger
}

// Register mounts every route on r:
//
//	POST   /auth/login
//	POST   /auth/password/reset/request
//	POST   /auth/password/reset/confirm
//	POST   /auth/logout                     (token)
//	GET    /auth/session                    (token)
//	GET    /auth/sessions                   (token)
//	DELETE /auth/sessions/:id               (token)
//	GET    /auth/signins                    (token)
//	POST   /auth/password/change            (token)
//	/admin/...                              (token + admin role)
//	GET    /.well-known/jwks.json
func Register(r gin.IRouter, d Deps) error {
	if d.Auth == nil || d.Verifier == nil {
		return errors.New("authgin: auth service and verifier are required")
	}
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	svc, rl := d.Auth, d.Limiter

	r.Use(ginutil.WithLogger(log), LanguageMiddleware(d.Language), Metrics())

	if d.Keys != nil {
		r.GET("/.well-known/jwks.json", gin.WrapH(authhttp.JWKSHandler(d.Keys)))
	}

	pub := r.Group("/auth")
	pub.POST("/login", handlers.HandleLoginPOST(svc, rl))
	pub.POST("/password/reset/request", handlers.HandlePasswordResetRequestPOST(svc, rl))
	pub.POST("/password/reset/confirm", handlers.HandlePasswordResetConfirmPOST(svc, rl))

	authed := r.Group("/auth", AuthRequired(d.Verifier, svc))
	authed.POST("/logout", handlers.HandleLogoutPOST(svc, rl))
	authed.GET("/session", handlers.HandleSessionGET())
	authed.GET("/sessions", handlers.HandleUserSessionsGET(svc, rl))
	authed.DELETE("/sessions/:id", handlers.HandleUserSessionDELETE(svc, rl))
	authed.GET("/signins", handlers.HandleUserSigninsGET(svc, rl))
	authed.POST("/password/change", handlers.HandlePasswordChangePOST(svc, rl))

	admin := r.Group("/admin", AuthRequired(d.Verifier, svc), RequireRole(AdminRole))
	admin.POST("/users", handlers.HandleAdminUserCreatePOST(svc, rl))
	admin.POST("/users/:user_id/lock", handlers.HandleAdminUserLockPOST(svc, rl))
	admin.POST("/users/:user_id/unlock", handlers.HandleAdminUserUnlockPOST(svc, rl))
	admin.POST("/users/:user_id/status", handlers.HandleAdminUserStatusPOST(svc, rl))
	admin.PUT("/users/:user_id/roles/:role", handlers.HandleAdminUserRolePUT(svc, rl))
	admin.DELETE("/users/:user_id/roles/:role", handlers.HandleAdminUserRoleDELETE(svc, rl))
	admin.GET("/users/:user_id/signins", handlers.HandleAdminUserSigninsGET(svc, rl))
	admin.GET("/users/:user_id/ips", handlers.HandleAdminUserIPsGET(svc, rl))
	admin.GET("/users/:user_id/sessions", handlers.HandleAdminUserSessionsGET(svc, rl))
	admin.DELETE("/users/:user_id/sessions", handlers.HandleAdminUserSessionsDELETE(svc, rl))
	admin.GET("/audit/suspicious", handlers.HandleAdminAuditSuspiciousGET(svc, rl))
	admin.GET("/audit/statistics", handlers.HandleAdminAuditStatisticsGET(svc, d.Clock, rl))
	admin.GET("/audit/sessions", handlers.HandleAdminAuditSessionsGET(svc, rl))
	return nil
}
