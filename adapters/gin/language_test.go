package authgin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/authtest"
	"github.com/PaulFidika/fleetauth/core"
	jwtkit "github.com/PaulFidika/fleetauth/jwt"
	"github.com/PaulFidika/fleetauth/lang"
)

func resolveFor(t *testing.T, cfg *LanguageConfig, target, acceptLanguage, cookie string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, target, nil)
	if acceptLanguage != "" {
		req.Header.Set("Accept-Language", acceptLanguage)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "lang", Value: cookie})
	}
	c.Request = req
	return newLanguageResolver(cfg).resolve(c)
}

func TestLanguageResolver(t *testing.T) {
	three := &LanguageConfig{Supported: []string{"en", "es", "fr"}, Default: "en"}
	tests := []struct {
		name   string
		cfg    *LanguageConfig
		target string
		accept string
		cookie string
		want   string
	}{
		{"query wins", three, "/auth/login?lang=es", "fr-FR,fr;q=0.9", "en", "es"},
		{"cookie before header", three, "/auth/login", "fr-FR", "es", "es"},
		{"header region stripped", three, "/auth/login", "fr-CA,en;q=0.5", "", "fr"},
		{"unsupported inputs skipped", &LanguageConfig{Supported: []string{"en", "es"}}, "/auth/login?lang=fr", "fr-FR,fr;q=0.9,es;q=0.8", "fr", "es"},
		{"nothing usable falls back", three, "/auth/login?lang=klingon", "de", "", "en"},
		{"default honoured when supported", &LanguageConfig{Supported: []string{"en", "es"}, Default: "es-ES"}, "/auth/login", "", "", "es"},
		{"nil config uses catalog", nil, "/auth/login", "es-MX", "", "es"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveFor(t, tt.cfg, tt.target, tt.accept, tt.cookie); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLanguageMiddleware_LocalizesLoginFailure(t *testing.T) {
	h := authtest.New(t)
	h.CreateUser(t, "driver@fleet.example", "correct-horse")
	r := newRouter(t, h)

	body, _ := json.Marshal(map[string]any{"email": "driver@fleet.example", "password": "wrong-horse"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login?lang=es", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	var res core.PublicResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := lang.Translate("es", lang.MsgInvalidCredentials); res.Message != want {
		t.Fatalf("expected %q, got %q", want, res.Message)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)
	if err := json.Unmarshal(w2.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := lang.Translate("en", lang.MsgInvalidCredentials); res.Message != want {
		t.Fatalf("unsupported language should fall back to english, got %q", res.Message)
	}
}

func TestCurrentUser_UsesRequestLanguageFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Unauthenticated: should still return request language.
	{
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
		req = req.WithContext(lang.WithLanguage(req.Context(), "es"))
		c.Request = req

		u, ok := CurrentUser(c)
		if ok {
			t.Fatalf("expected ok=false for unauthenticated")
		}
		if u.Language != "es" {
			t.Fatalf("expected language es, got %q", u.Language)
		}
	}

	// Authenticated: should still return request language (independent of identity structs).
	{
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		ctx := lang.WithLanguage(context.Background(), "es")
		ctx = SetClaims(ctx, jwtkit.Claims{UserID: "u_1", Email: "user@example.com", SessionID: "s_1"})
		req := httptest.NewRequest(http.MethodGet, "/auth/session", nil).WithContext(ctx)
		c.Request = req

		u, ok := CurrentUser(c)
		if !ok {
			t.Fatalf("expected ok=true for authenticated claims")
		}
		if u.Language != "es" {
			t.Fatalf("expected language es, got %q", u.Language)
		}
	}
}
