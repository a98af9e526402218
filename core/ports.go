package core

import (
	"context"
	"time"
)

// IdentityStore owns accounts and credentials. Password hashing happens
// entirely inside the store.
//
// Lookups return autherr.ErrAccountNotFound for unknown accounts.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	VerifyPassword(ctx context.Context, acct *Account, password string) (bool, error)
	// UpdateAccount writes the mutable fields (status, counter, lockout, last
	// login) only if acct.Version still matches, then bumps acct.Version.
	// A mismatch returns autherr.ErrStaleAccount.
	UpdateAccount(ctx context.Context, acct *Account) error
	// CreateAccount returns autherr.ErrEmailTaken when the email is registered.
	CreateAccount(ctx context.Context, in NewAccount) (*Account, error)
	SetPassword(ctx context.Context, userID, password string) error
	Roles(ctx context.Context, userID string) ([]string, error)
	AddRole(ctx context.Context, userID, role string) error
	RemoveRole(ctx context.Context, userID, role string) error
}

// NewAccount is the input to IdentityStore.CreateAccount.
type NewAccount struct {
	Email    string
	Password string
	Roles    []string
	Status   AccountStatus
}

// UserClaims is what a token is minted for.
type UserClaims struct {
	UserID     string
	Email      string
	Roles      []string
	SessionID  string
	Duration   time.Duration
	Persistent bool
}

// TokenIssuer mints signed access tokens.
type TokenIssuer interface {
	IssueToken(ctx context.Context, claims UserClaims) (string, error)
}

// ResetTokenStore holds single-use password reset tokens.
type ResetTokenStore interface {
	Put(ctx context.Context, token, userID string, ttl time.Duration) error
	// Take returns the user id and deletes the token. ok is false for unknown
	// or expired tokens.
	Take(ctx context.Context, token string) (userID string, ok bool, err error)
}

// ResetNotifier delivers password reset tokens to account holders.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}
