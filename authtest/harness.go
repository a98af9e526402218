// Package authtest wires a complete in-memory authentication stack for tests:
// memory stores, a fixed clock, a real RSA token issuer and verifier, and a
// JWKS endpoint served over httptest.
//
// Example usage:
//
//	h := authtest.New(t)
//	acct := h.CreateUser(t, "dispatch@fleet.example", "correct-horse", "admin")
//	res := h.Auth.Login(ctx, core.LoginRequest{Email: acct.Email, Password: "correct-horse"})
package authtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulFidika/fleetauth/audit"
	"github.com/PaulFidika/fleetauth/clock"
	"github.com/PaulFidika/fleetauth/core"
	jwtkit "github.com/PaulFidika/fleetauth/jwt"
	"github.com/PaulFidika/fleetauth/password"
	memorystore "github.com/PaulFidika/fleetauth/storage/memory"
)

// Epoch is where harness clocks start.
var Epoch = time.Date(2026, time.March, 2, 7, 30, 0, 0, time.UTC)

const (
	Issuer   = "https://auth.fleet.test"
	Audience = "fleet-backoffice"
)

// Harness is a ready-to-use service stack.
type Harness struct {
	Clock       *clock.Fixed
	Logger      *logrus.Logger
	Hook        *test.Hook
	Identity    *memorystore.IdentityStore
	Ledger      *memorystore.AuditStore
	ResetTokens *memorystore.ResetTokens
	Outbox      *Outbox
	Audit       *audit.Service
	Auth        *core.Service
	Issuer      *jwtkit.Issuer
	Verifier    *jwtkit.Verifier

	signer *jwtkit.RSASigner
	server *httptest.Server
}

// Option adjusts the service options before the stack is built.
type Option func(*core.Options, *audit.Options)

// WithPolicy overrides the authentication policy.
func WithPolicy(p core.Policy) Option {
	return func(o *core.Options, _ *audit.Options) { o.Policy = p }
}

// WithAuditPolicy overrides the audit policy.
func WithAuditPolicy(p audit.Policy) Option {
	return func(_ *core.Options, o *audit.Options) { o.Policy = p }
}

// New builds a harness. Everything it starts is stopped via t.Cleanup.
func New(t testing.TB, opts ...Option) *Harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	clk := clock.NewFixed(Epoch)

	signer, err := jwtkit.NewRSASigner(2048, "test-key-1")
	if err != nil {
		t.Fatalf("authtest: rsa signer: %v", err)
	}
	keys := jwtkit.NewStaticKeySource(signer)
	issuer, err := jwtkit.NewIssuer(jwtkit.IssuerOptions{
		Keys:     keys,
		Issuer:   Issuer,
		Audience: Audience,
		Clock:    clk,
	})
	if err != nil {
		t.Fatalf("authtest: issuer: %v", err)
	}
	verifier, err := jwtkit.NewVerifier(keys, Issuer, Audience, clk)
	if err != nil {
		t.Fatalf("authtest: verifier: %v", err)
	}

	h := &Harness{
		Clock:       clk,
		Logger:      logger,
		Hook:        hook,
		Identity:    memorystore.NewIdentityStore(password.Bcrypt{Cost: bcrypt.MinCost}, clk),
		Ledger:      memorystore.NewAuditStore(),
		ResetTokens: memorystore.NewResetTokens(clk),
		Outbox:      &Outbox{},
		Issuer:      issuer,
		Verifier:    verifier,
		signer:      signer,
	}
	t.Cleanup(func() { _ = h.ResetTokens.Close() })

	ao := audit.Options{Store: h.Ledger, Clock: clk, Logger: logger}
	co := core.Options{
		Identity:    h.Identity,
		Tokens:      issuer,
		ResetTokens: h.ResetTokens,
		Notifier:    h.Outbox,
		Clock:       clk,
		Logger:      logger,
	}
	for _, o := range opts {
		o(&co, &ao)
	}
	if h.Audit, err = audit.NewService(ao); err != nil {
		t.Fatalf("authtest: audit service: %v", err)
	}
	co.Audit = h.Audit
	if h.Auth, err = core.NewService(co); err != nil {
		t.Fatalf("authtest: auth service: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, issuer.JWKS())
	})
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

// URL is the base URL of the JWKS server.
func (h *Harness) URL() string { return h.server.URL }

// CreateUser registers an active account or fails the test.
func (h *Harness) CreateUser(t testing.TB, email, pw string, roles ...string) *core.Account {
	t.Helper()
	acct, err := h.Auth.CreateUser(context.Background(), core.NewAccount{Email: email, Password: pw, Roles: roles})
	if err != nil {
		t.Fatalf("authtest: create user %s: %v", email, err)
	}
	return acct
}

// Login signs the user in and fails the test unless it succeeds.
func (h *Harness) Login(t testing.TB, email, pw string) core.AuthenticationResult {
	t.Helper()
	res := h.Auth.Login(context.Background(), core.LoginRequest{Email: email, Password: pw, IPAddress: "198.51.100.10"})
	if !res.Success {
		t.Fatalf("authtest: login %s: %s (%s)", email, res.Message, res.Outcome)
	}
	return res
}

// SignClaims signs arbitrary claims with the harness key. Standard claims
// the caller leaves out are filled in as a valid token would carry them.
func (h *Harness) SignClaims(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	now := h.Clock.Now()
	defaults := jwt.MapClaims{
		"iss": Issuer,
		"aud": Audience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range defaults {
		if _, ok := claims[k]; !ok {
			claims[k] = v
		}
	}
	tok, err := h.signer.Sign(context.Background(), claims)
	if err != nil {
		t.Fatalf("authtest: sign: %v", err)
	}
	return tok
}

// ExpiredToken returns a correctly signed token that expired an hour ago.
func (h *Harness) ExpiredToken(t testing.TB, userID, sessionID string) string {
	t.Helper()
	now := h.Clock.Now()
	return h.SignClaims(t, jwt.MapClaims{
		"sub":                 userID,
		jwtkit.ClaimSessionID: sessionID,
		"iat":                 now.Add(-2 * time.Hour).Unix(),
		"exp":                 now.Add(-time.Hour).Unix(),
	})
}

// Outbox is a core.ResetNotifier that keeps the last token sent per address.
type Outbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

var _ core.ResetNotifier = (*Outbox)(nil)

func (o *Outbox) SendPasswordReset(_ context.Context, email, token string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tokens == nil {
		o.tokens = make(map[string]string)
	}
	o.tokens[email] = token
	return nil
}

// Token returns the last reset token sent to email.
func (o *Outbox) Token(email string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	tok, ok := o.tokens[email]
	return tok, ok
}
