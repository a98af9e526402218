package authtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	migrations "github.com/PaulFidika/fleetauth/migrations/postgres"
)

// Environment variables that enable the integration tests.
const (
	EnvDatabaseURL = "FLEETAUTH_TEST_DATABASE_URL"
	EnvRedisAddr   = "FLEETAUTH_TEST_REDIS_ADDR"
)

// Postgres connects to the test database and applies migrations. It skips
// the test in -short mode or when FLEETAUTH_TEST_DATABASE_URL is unset.
//
// Tests share the database; keep them isolated by unique emails and ids
// rather than truncating tables.
func Postgres(t testing.TB) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("authtest: open postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("authtest: ping postgres (is it running?): %v", err)
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if _, err := migrations.Up(ctx, pool, log); err != nil {
		t.Fatalf("authtest: migrate: %v", err)
	}
	return pool
}

// Redis connects to the test Redis. It skips the test in -short mode or when
// FLEETAUTH_TEST_REDIS_ADDR is unset. The returned prefix is unique to the
// test; keys under it are deleted on cleanup.
func Redis(t testing.TB) (*redis.Client, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		t.Skipf("%s not set", EnvRedisAddr)
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Fatalf("authtest: ping redis: %v", err)
	}
	prefix := "fleetauth:test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		iter := rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			rdb.Del(ctx, iter.Val())
		}
		_ = rdb.Close()
	})
	return rdb, prefix
}
