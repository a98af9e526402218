// Command fleetauthd serves the fleet back office login, session and audit
// endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	authgin "github.com/PaulFidika/fleetauth/adapters/gin"
	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/config"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/identity"
	jwtkit "github.com/PaulFidika/fleetauth/jwt"
	migrations "github.com/PaulFidika/fleetauth/migrations/postgres"
	"github.com/PaulFidika/fleetauth/password"
	rlmemory "github.com/PaulFidika/fleetauth/ratelimit/memory"
	rlredis "github.com/PaulFidika/fleetauth/ratelimit/redis"
	"github.com/PaulFidika/fleetauth/retention"
	memorystore "github.com/PaulFidika/fleetauth/storage/memory"
	pgstore "github.com/PaulFidika/fleetauth/storage/postgres"
	redisstore "github.com/PaulFidika/fleetauth/storage/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, log); err != nil {
		log.WithError(err).Error("fleetauthd exited")
		os.Exit(1)
	}
}

// backends are the stores the services run on. Without a database URL (dev
// mode only) everything stays in memory.
type backends struct {
	identity    core.IdentityStore
	audit       audit.Store
	resetTokens core.ResetTokenStore
	notifier    core.ResetNotifier
	limiter     ginutil.RateLimiter
	closers     []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	clk := clock.Real{}
	hasher := password.Hasher(password.Argon2{Params: password.DefaultParams()})
	if cfg.Auth.PasswordHasher == "bcrypt" {
		hasher = password.Bcrypt{}
	}

	be, err := connect(ctx, cfg, hasher, clk, log)
	if err != nil {
		return err
	}
	defer be.close()

	auditSvc, err := audit.NewService(audit.Options{Store: be.audit, Clock: clk, Logger: log, Policy: cfg.AuditPolicy()})
	if err != nil {
		return err
	}

	keys, err := jwtkit.LoadKeySource(cfg.KeyConfig(), log)
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}
	issuer, err := jwtkit.NewIssuer(jwtkit.IssuerOptions{
		Keys:     keys,
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		Clock:    clk,
	})
	if err != nil {
		return err
	}
	verifier, err := jwtkit.NewVerifier(keys, cfg.Tokens.Issuer, cfg.Tokens.Audience, clk)
	if err != nil {
		return err
	}

	authSvc, err := core.NewService(core.Options{
		Identity:    be.identity,
		Audit:       auditSvc,
		Tokens:      issuer,
		ResetTokens: be.resetTokens,
		Notifier:    be.notifier,
		Clock:       clk,
		Logger:      log,
		Policy:      cfg.CorePolicy(),
	})
	if err != nil {
		return err
	}
	if err := bootstrapAdmin(ctx, authSvc, cfg.Bootstrap, log); err != nil {
		return err
	}

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	engine.GET(cfg.HTTP.MetricsPath, gin.WrapH(promhttp.Handler()))
	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	if err := authgin.Register(engine, authgin.Deps{
		Auth:     authSvc,
		Verifier: verifier,
		Keys:     issuer,
		Limiter:  be.limiter,
		Clock:    clk,
		Logger:   log,
	}); err != nil {
		return err
	}

	scheduler, err := retention.New(retention.Options{
		Ledger:          auditSvc,
		RetentionDays:   cfg.Retention.Days,
		SessionMaxAge:   cfg.Auth.SessionDuration,
		CleanupSchedule: cfg.Retention.CleanupSchedule,
		SessionSchedule: cfg.Retention.SessionSchedule,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return scheduler.Run(gctx) })
	return g.Wait()
}

func connect(ctx context.Context, cfg *config.Config, hasher password.Hasher, clk clock.Clock, log logrus.FieldLogger) (*backends, error) {
	be := &backends{}
	limits := cfg.RateLimits()

	if cfg.Postgres.URL == "" {
		log.Warn("no database configured; using in-memory stores (dev only)")
		be.identity = memorystore.NewIdentityStore(hasher, clk)
		be.audit = memorystore.NewAuditStore()
	} else {
		pcfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		if cfg.Postgres.MaxConns > 0 {
			pcfg.MaxConns = cfg.Postgres.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		be.closers = append(be.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			be.close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if _, err := migrations.Up(ctx, pool, log); err != nil {
				be.close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		} else {
			log.Info("skipping database migrations on startup")
		}
		be.identity = identity.NewStore(pool, migrations.Schema, hasher, clk)
		be.audit = pgstore.NewAuditStore(pool, migrations.Schema)
	}

	if cfg.Redis.Addr == "" {
		tokens := memorystore.NewResetTokens(clk)
		be.closers = append(be.closers, func() { _ = tokens.Close() })
		be.resetTokens = tokens
		if cfg.Dev {
			be.notifier = logNotifier{log: log}
		} else {
			log.Warn("no reset notifier without redis; password reset disabled")
		}
		if cfg.RateLimit.Enabled {
			ml := make(map[string]rlmemory.Limit, len(limits))
			for k, v := range limits {
				ml[k] = rlmemory.Limit{Limit: v.Limit, Window: v.Window}
			}
			be.limiter = rlmemory.New(ml, clk)
		}
		return be, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	be.closers = append(be.closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		be.close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	be.resetTokens = redisstore.NewResetTokens(rdb, cfg.Redis.KeyPrefix+"reset:")
	be.notifier = redisstore.NewResetOutbox(rdb, cfg.Redis.KeyPrefix)
	if cfg.RateLimit.Enabled {
		rl := make(map[string]rlredis.Limit, len(limits))
		for k, v := range limits {
			rl[k] = rlredis.Limit{Limit: v.Limit, Window: v.Window}
		}
		be.limiter = rlredis.New(rdb, cfg.Redis.KeyPrefix+"rl:", rl)
	}
	return be, nil
}
