package jwtkit

import (
	"context"
	"errors"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/PaulFidika/fleetauth/clock"
)

// Claims are the identity fields extracted from a verified access token.
type Claims struct {
	UserID    string
	Email     string
	Roles     []string
	SessionID string
	ExpiresAt time.Time
}

// HasRole reports whether the token carries role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verifier validates access tokens against the key source's public keys.
type Verifier struct {
	issuer   string
	audience string
	keySet   jwk.Set
	clock    clock.Clock
	skew     time.Duration
}

// NewVerifier builds a key set from keys. Tokens must carry a kid that
// matches one of the public keys.
func NewVerifier(keys KeySource, issuer, audience string, c clock.Clock) (*Verifier, error) {
	if keys == nil {
		return nil, errors.New("jwtkit: missing key source")
	}
	set, err := publicKeySet(keys)
	if err != nil {
		return nil, err
	}
	return &Verifier{issuer: issuer, audience: audience, keySet: set, clock: clock.Or(c), skew: 30 * time.Second}, nil
}

// Verify validates signature, expiry, issuer and audience and extracts claims.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(v.clock.Now)),
		jwt.WithAcceptableSkew(v.skew),
		jwt.WithContext(ctx),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.ParseString(raw, opts...)
	if err != nil {
		return nil, err
	}

	claims := &Claims{UserID: token.Subject(), ExpiresAt: token.Expiration()}
	if claims.UserID == "" {
		return nil, errors.New("jwtkit: token has no subject")
	}
	if rawEmail, ok := token.Get(ClaimEmail); ok {
		if email, ok := rawEmail.(string); ok {
			claims.Email = email
		}
	}
	if rawSID, ok := token.Get(ClaimSessionID); ok {
		if sid, ok := rawSID.(string); ok {
			claims.SessionID = sid
		}
	}
	if rawRoles, ok := token.Get(ClaimRoles); ok {
		switch roles := rawRoles.(type) {
		case []any:
			for _, r := range roles {
				if s, ok := r.(string); ok {
					claims.Roles = append(claims.Roles, s)
				}
			}
		case []string:
			claims.Roles = append(claims.Roles, roles...)
		}
	}
	return claims, nil
}
