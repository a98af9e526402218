package jwtkit

import (
	"context"
	"errors"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
)

// Claim names carried by access tokens.
const (
	ClaimEmail     = "email"
	ClaimRoles     = "roles"
	ClaimSessionID = "sid"
	// ClaimRemember marks a remember-me login. It is a client hint only;
	// the token lifetime is always the session duration.
	ClaimRemember = "rm"
)

// IssuerOptions configures an Issuer.
type IssuerOptions struct {
	Keys     KeySource
	Issuer   string
	Audience string
	Clock    clock.Clock
}

// Issuer mints access tokens for authenticated sessions.
type Issuer struct {
	keys     KeySource
	issuer   string
	audience string
	clock    clock.Clock
}

var _ core.TokenIssuer = (*Issuer)(nil)

func NewIssuer(opts IssuerOptions) (*Issuer, error) {
	if opts.Keys == nil || opts.Keys.ActiveSigner() == nil {
		return nil, errors.New("jwtkit: key source with an active signer is required")
	}
	return &Issuer{
		keys:     opts.Keys,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		clock:    clock.Or(opts.Clock),
	}, nil
}

// IssueToken signs a token bound to the claims' session.
func (i *Issuer) IssueToken(ctx context.Context, c core.UserClaims) (string, error) {
	if c.UserID == "" || c.SessionID == "" {
		return "", errors.New("jwtkit: user id and session id are required")
	}
	if c.Duration <= 0 {
		return "", errors.New("jwtkit: token duration must be positive")
	}
	now := i.clock.Now()
	claims := jwt.MapClaims{
		"sub":          c.UserID,
		"iat":          now.Unix(),
		"nbf":          now.Unix(),
		"exp":          now.Add(c.Duration).Unix(),
		ClaimEmail:     c.Email,
		ClaimSessionID: c.SessionID,
	}
	if len(c.Roles) > 0 {
		claims[ClaimRoles] = c.Roles
	}
	if c.Persistent {
		claims[ClaimRemember] = true
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}
	if i.audience != "" {
		claims["aud"] = i.audience
	}
	return i.keys.ActiveSigner().Sign(ctx, claims)
}

// JWKS returns the public keys tokens may be verified with.
func (i *Issuer) JWKS() JWKS {
	return PublicJWKS(i.keys)
}
