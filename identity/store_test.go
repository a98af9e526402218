package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulFidika/fleetauth/autherr"
	"github.com/PaulFidika/fleetauth/authtest"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
	"github.com/PaulFidika/fleetauth/identity"
	"github.com/PaulFidika/fleetauth/password"
)

func newStore(t *testing.T) (*identity.Store, *clock.Fixed) {
	pool := authtest.Postgres(t)
	clk := clock.NewFixed(time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC))
	return identity.NewStore(pool, "", password.Bcrypt{Cost: bcrypt.MinCost}, clk), clk
}

func uniqueEmail() string { return "driver-" + uuid.NewString()[:8] + "@Fleet.example" }

func TestCreateAndFind(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	email := uniqueEmail()

	acct, err := s.CreateAccount(ctx, core.NewAccount{Email: email, Password: "correct-horse", Roles: []string{"Dispatcher", "admin"}})
	require.NoError(t, err)
	assert.Equal(t, core.NormalizeEmail(email), acct.Email)
	assert.Equal(t, core.StatusActive, acct.Status)
	assert.Equal(t, []string{"admin", "dispatcher"}, acct.Roles)
	assert.EqualValues(t, 1, acct.Version)

	byEmail, err := s.FindByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, byEmail.ID)

	ok, err := s.VerifyPassword(ctx, acct, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.VerifyPassword(ctx, acct, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CreateAccount(ctx, core.NewAccount{Email: email, Password: "another-pass"})
	assert.ErrorIs(t, err, autherr.ErrEmailTaken)
}

func TestUnknownAccounts(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.FindByEmail(ctx, uniqueEmail())
	assert.ErrorIs(t, err, autherr.ErrAccountNotFound)
	_, err = s.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, autherr.ErrAccountNotFound)
	_, err = s.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, autherr.ErrAccountNotFound)
	assert.ErrorIs(t, s.SetPassword(ctx, uuid.NewString(), "correct-horse"), autherr.ErrAccountNotFound)
	assert.ErrorIs(t, s.AddRole(ctx, uuid.NewString(), "admin"), autherr.ErrAccountNotFound)
}

func TestUpdateAccountIsCompareAndSwap(t *testing.T) {
	s, clk := newStore(t)
	ctx := context.Background()
	acct, err := s.CreateAccount(ctx, core.NewAccount{Email: uniqueEmail(), Password: "correct-horse"})
	require.NoError(t, err)

	first := acct.Clone()
	second := acct.Clone()

	until := clk.Now().Add(30 * time.Minute)
	first.FailedAttempts = 5
	first.LockoutUntil = &until
	require.NoError(t, s.UpdateAccount(ctx, first))
	assert.EqualValues(t, 2, first.Version)

	second.FailedAttempts = 1
	assert.ErrorIs(t, s.UpdateAccount(ctx, second), autherr.ErrStaleAccount)

	got, err := s.FindByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedAttempts)
	require.NotNil(t, got.LockoutUntil)
	assert.True(t, got.LockoutUntil.Equal(until))

	ghost := acct.Clone()
	ghost.ID = uuid.NewString()
	assert.ErrorIs(t, s.UpdateAccount(ctx, ghost), autherr.ErrAccountNotFound)
}

func TestSetPasswordBumpsVersion(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	acct, err := s.CreateAccount(ctx, core.NewAccount{Email: uniqueEmail(), Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, s.SetPassword(ctx, acct.ID, "battery-staple"))
	ok, err := s.VerifyPassword(ctx, acct, "battery-staple")
	require.NoError(t, err)
	assert.True(t, ok)

	acct.FailedAttempts = 1
	assert.ErrorIs(t, s.UpdateAccount(ctx, acct), autherr.ErrStaleAccount)
}

func TestRoles(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	acct, err := s.CreateAccount(ctx, core.NewAccount{Email: uniqueEmail(), Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, s.AddRole(ctx, acct.ID, " Admin "))
	require.NoError(t, s.AddRole(ctx, acct.ID, "admin"))
	require.NoError(t, s.AddRole(ctx, acct.ID, "auditor"))
	roles, err := s.Roles(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "auditor"}, roles)

	require.NoError(t, s.RemoveRole(ctx, acct.ID, "ADMIN"))
	roles, err = s.Roles(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"auditor"}, roles)
}
