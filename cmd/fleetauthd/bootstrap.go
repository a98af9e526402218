package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	authgin "github.com/PaulFidika/fleetauth/adapters/gin"
	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/config"
	"github.com/PaulFidika/fleetauth/core"
)

// bootstrapAdmin creates the configured admin account. A taken email means an
// earlier start already did it.
func bootstrapAdmin(ctx context.Context, svc *core.Service, b config.BootstrapConfig, log logrus.FieldLogger) error {
	if !b.Enabled() {
		return nil
	}
	log = log.WithField("op", "bootstrap")
	acct, err := svc.CreateUser(ctx, core.NewAccount{
		Email:    b.Email,
		Password: b.Password,
		Roles:    []string{authgin.AdminRole},
	})
	switch {
	case err == nil:
		log.WithField("user_id", acct.ID).Info("bootstrap admin created")
	case autherr.IsConflict(err):
		log.Debug("bootstrap admin already present")
	default:
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}

// logNotifier writes reset tokens to the log instead of delivering them.
// Only wired in dev mode without Redis.
type logNotifier struct {
	log logrus.FieldLogger
}

var _ core.ResetNotifier = logNotifier{}

func (n logNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.log.WithFields(logrus.Fields{"op": "dev.reset", "email": email, "token": token}).
		Warn("password reset token (dev mode, not delivered)")
	return nil
}
