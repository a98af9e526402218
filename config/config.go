// Package config loads fleetauthd settings from the environment.
//
// Variables are read with github.com/caarlos0/env under the FLEETAUTH_
// prefix; a .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/PaulFidika/fleetauth/adapters/ginutil"
	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/core"
	jwtkit "github.com/PaulFidika/fleetauth/jwt"
)

// Prefix is prepended to every variable name.
const Prefix = "FLEETAUTH_"

// Config is the full service configuration.
type Config struct {
	Dev       bool   `env:"DEV"        envDefault:"false"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json | text

	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	Postgres  DBConfig        `envPrefix:"DB_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Auth      AuthConfig      `envPrefix:"AUTH_"`
	Suspicion SuspicionConfig `envPrefix:"SUSPICION_"`
	Tokens    TokenConfig     `envPrefix:"TOKEN_"`
	Retention RetentionConfig `envPrefix:"RETENTION_"`
	RateLimit RateLimitConfig `envPrefix:"RATELIMIT_"`
	Bootstrap BootstrapConfig `envPrefix:"BOOTSTRAP_ADMIN_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES"`
	MetricsPath     string        `env:"METRICS_PATH"     envDefault:"/metrics"`
}

type DBConfig struct {
	URL           string `env:"URL"`
	MaxConns      int32  `env:"MAX_CONNS"      envDefault:"10"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
}

// RedisConfig is optional; without Addr reset tokens and rate limits stay in
// process memory.
type RedisConfig struct {
	Addr      string `env:"ADDR"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB"         envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"fleetauth:"`
}

type AuthConfig struct {
	MaxFailedAttempts int           `env:"MAX_FAILED_ATTEMPTS" envDefault:"5"`
	FailureWindow     time.Duration `env:"FAILURE_WINDOW"      envDefault:"15m"`
	LockoutDuration   time.Duration `env:"LOCKOUT_DURATION"    envDefault:"30m"`
	SessionDuration   time.Duration `env:"SESSION_DURATION"    envDefault:"30m"`
	ResetTokenTTL     time.Duration `env:"RESET_TOKEN_TTL"     envDefault:"1h"`
	MaxUpdateRetries  int           `env:"MAX_UPDATE_RETRIES"  envDefault:"5"`
	PasswordHasher    string        `env:"PASSWORD_HASHER"     envDefault:"argon2id"` // argon2id | bcrypt
}

type SuspicionConfig struct {
	Window            time.Duration `env:"WINDOW"              envDefault:"24h"`
	FailedFromIPCount int           `env:"FAILED_FROM_IP"      envDefault:"3"`
	RapidWindow       time.Duration `env:"RAPID_WINDOW"        envDefault:"5m"`
	RapidAttemptCount int           `env:"RAPID_ATTEMPTS"      envDefault:"3"`
	MobilityWindow    time.Duration `env:"MOBILITY_WINDOW"     envDefault:"2h"`
	MobilityIPCount   int           `env:"MOBILITY_IP_COUNT"   envDefault:"2"`
}

type TokenConfig struct {
	Issuer              string `env:"ISSUER"   envDefault:"fleetauth"`
	Audience            string `env:"AUDIENCE" envDefault:"fleet-backoffice"`
	ActiveKeyID         string `env:"ACTIVE_KEY_ID"`
	ActivePrivateKeyPEM string `env:"ACTIVE_PRIVATE_KEY_PEM"`
	PublicKeysJSON      string `env:"PUBLIC_KEYS_JSON"`
	VaultPath           string `env:"VAULT_PATH"`
	DevKeysDir          string `env:"DEV_KEYS_DIR"`
}

type RetentionConfig struct {
	Days            int    `env:"DAYS"             envDefault:"365"`
	CleanupSchedule string `env:"CLEANUP_SCHEDULE" envDefault:"0 3 * * *"`
	SessionSchedule string `env:"SESSION_SCHEDULE" envDefault:"@every 5m"`
}

// RateLimit is one bucket's allowance.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

type RateLimitConfig struct {
	Enabled            bool `env:"ENABLED"             envDefault:"true"`
	LoginPerMinute     int  `env:"LOGIN_PER_MINUTE"    envDefault:"20"`
	ResetPerHour       int  `env:"RESET_PER_HOUR"      envDefault:"5"`
	DefaultPerMinute   int  `env:"DEFAULT_PER_MINUTE"  envDefault:"120"`
	SensitivePerMinute int  `env:"SENSITIVE_PER_MINUTE" envDefault:"10"`
}

// BootstrapConfig names the admin account created at startup so a fresh
// deployment has someone who can log in.
type BootstrapConfig struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

// Enabled reports whether a bootstrap admin is configured.
func (b BootstrapConfig) Enabled() bool { return b.Email != "" }

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse reads configuration from environ instead of the process environment.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix, Environment: environ}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Postgres.URL) == "" && !c.Dev {
		errs = append(errs, errors.New("FLEETAUTH_DB_URL is required outside dev mode"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want json or text", c.LogFormat))
	}
	switch c.Auth.PasswordHasher {
	case "argon2id", "bcrypt":
	default:
		errs = append(errs, fmt.Errorf("password hasher %q: want argon2id or bcrypt", c.Auth.PasswordHasher))
	}
	if c.Auth.MaxFailedAttempts < 1 {
		errs = append(errs, errors.New("max failed attempts must be at least 1"))
	}
	for name, d := range map[string]time.Duration{
		"failure window":   c.Auth.FailureWindow,
		"lockout duration": c.Auth.LockoutDuration,
		"session duration": c.Auth.SessionDuration,
		"reset token ttl":  c.Auth.ResetTokenTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Retention.Days < 1 {
		errs = append(errs, errors.New("retention days must be at least 1"))
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{"cleanup": c.Retention.CleanupSchedule, "session": c.Retention.SessionSchedule} {
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s schedule %q: %w", name, spec, err))
		}
	}
	if (strings.TrimSpace(c.Bootstrap.Email) == "") != (c.Bootstrap.Password == "") {
		errs = append(errs, errors.New("FLEETAUTH_BOOTSTRAP_ADMIN_EMAIL and FLEETAUTH_BOOTSTRAP_ADMIN_PASSWORD must be set together"))
	}
	if c.Tokens.ActivePrivateKeyPEM != "" && c.Tokens.ActiveKeyID == "" {
		errs = append(errs, errors.New("FLEETAUTH_TOKEN_ACTIVE_KEY_ID is required with an inline private key"))
	}
	return errors.Join(errs...)
}

// CorePolicy is the authentication policy.
func (c *Config) CorePolicy() core.Policy {
	return core.Policy{
		MaxFailedAttempts: c.Auth.MaxFailedAttempts,
		FailureWindow:     c.Auth.FailureWindow,
		LockoutDuration:   c.Auth.LockoutDuration,
		SessionDuration:   c.Auth.SessionDuration,
		SuspicionWindow:   c.Suspicion.Window,
		ResetTokenTTL:     c.Auth.ResetTokenTTL,
		MaxUpdateRetries:  c.Auth.MaxUpdateRetries,
	}
}

// AuditPolicy shares the failure window and session lifetime with CorePolicy.
func (c *Config) AuditPolicy() audit.Policy {
	return audit.Policy{
		SuspicionWindow:   c.Suspicion.Window,
		FailedFromIPCount: c.Suspicion.FailedFromIPCount,
		RapidWindow:       c.Suspicion.RapidWindow,
		RapidAttemptCount: c.Suspicion.RapidAttemptCount,
		MobilityWindow:    c.Suspicion.MobilityWindow,
		MobilityIPCount:   c.Suspicion.MobilityIPCount,
		FailureWindow:     c.Auth.FailureWindow,
		MaxFailedAttempts: c.Auth.MaxFailedAttempts,
		SessionMaxAge:     c.Auth.SessionDuration,
		RetentionDays:     c.Retention.Days,
	}
}

// KeyConfig says where token signing keys come from. Generated keys are
// only allowed in dev mode.
func (c *Config) KeyConfig() jwtkit.KeyConfig {
	return jwtkit.KeyConfig{
		ActiveKeyID:         c.Tokens.ActiveKeyID,
		ActivePrivateKeyPEM: c.Tokens.ActivePrivateKeyPEM,
		PublicKeysJSON:      c.Tokens.PublicKeysJSON,
		VaultPath:           c.Tokens.VaultPath,
		DevKeysDir:          c.Tokens.DevKeysDir,
		AllowGenerated:      c.Dev,
	}
}

// RateLimits returns per-bucket allowances keyed by the ginutil bucket names.
// Buckets not listed fall under "default".
func (c *Config) RateLimits() map[string]RateLimit {
	login := RateLimit{Limit: c.RateLimit.LoginPerMinute, Window: time.Minute}
	reset := RateLimit{Limit: c.RateLimit.ResetPerHour, Window: time.Hour}
	sensitive := RateLimit{Limit: c.RateLimit.SensitivePerMinute, Window: time.Minute}
	return map[string]RateLimit{
		"default":                      {Limit: c.RateLimit.DefaultPerMinute, Window: time.Minute},
		ginutil.RLLogin:                login,
		ginutil.RLPasswordChange:       sensitive,
		ginutil.RLAuthSessionsRevoke:   sensitive,
		ginutil.RLPasswordResetRequest: reset,
		ginutil.RLPasswordResetConfirm: reset,
	}
}

// Logger builds the process logger.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if c.LogFormat == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	return log
}
