// Package ginutil holds the response, logging and rate-limit helpers shared
// by the gin handlers.
package ginutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/lang"
)

// Rate limit buckets.
const (
	RLLogin                = "auth_login"
	RLLogout               = "auth_logout"
	RLSessionsList         = "auth_sessions_list"
	RLAuthSessionsRevoke   = "auth_sessions_revoke"
	RLPasswordChange       = "auth_password_change"
	RLPasswordResetRequest = "auth_password_reset_request"
	RLPasswordResetConfirm = "auth_password_reset_confirm"
	RLAdmin                = "admin"
)

// RateLimiter decides whether key may proceed in bucket.
type RateLimiter interface {
	AllowNamed(ctx context.Context, bucket, key string) (bool, error)
}

const loggerKey = "fleetauth.logger"

// WithLogger makes log available to handlers through Logger.
func WithLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loggerKey, log)
		c.Next()
	}
}

// Logger returns the request logger, or the logrus standard logger.
func Logger(c *gin.Context) logrus.FieldLogger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(logrus.FieldLogger); ok {
			return l
		}
	}
	return logrus.StandardLogger()
}

// AllowNamed applies rl to the client IP. Limiter errors let the request
// through; lockout and audit stay in force regardless.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ok, err := rl.AllowNamed(c.Request.Context(), bucket, c.ClientIP())
	if err != nil {
		Logger(c).WithError(err).WithField("bucket", bucket).Warn("rate limiter unavailable")
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code, "message": lang.Message(c.Request.Context(), lang.MsgInvalidRequest)})
}

func Unauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
}

func Forbidden(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code})
}

func NotFound(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": code})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func ServerErr(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code, "message": lang.Message(c.Request.Context(), lang.MsgInternalError)})
}

// ServerErrWithLog logs err before answering 500. The cause never reaches the client.
func ServerErrWithLog(c *gin.Context, code string, err error, msg string) {
	Logger(c).WithError(err).WithFields(logrus.Fields{"path": c.FullPath(), "code": code}).Error(msg)
	ServerErr(c, code)
}

// Error answers according to the error's kind. Validation messages are safe
// to show; everything else is reduced to code.
func Error(c *gin.Context, code string, err error) {
	switch autherr.KindOf(err) {
	case autherr.KindValidation:
		var e *autherr.Error
		msg := lang.Message(c.Request.Context(), lang.MsgInvalidRequest)
		if errors.As(err, &e) && e.Message != "" {
			msg = e.Message
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code, "message": msg})
	case autherr.KindNotFound:
		NotFound(c, code)
	case autherr.KindPolicy:
		Unauthorized(c, code)
	case autherr.KindConflict:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": code})
	case autherr.KindUnavailable:
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": code})
	default:
		ServerErrWithLog(c, code, err, "request failed")
	}
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch autherr.KindOf(err) {
	case "":
		return http.StatusOK
	case autherr.KindValidation:
		return http.StatusBadRequest
	case autherr.KindNotFound:
		return http.StatusNotFound
	case autherr.KindPolicy:
		return http.StatusUnauthorized
	case autherr.KindConflict:
		return http.StatusConflict
	case autherr.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
