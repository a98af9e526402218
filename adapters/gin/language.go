package authgin

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PaulFidika/fleetauth/lang"
)

// KeyLanguage holds the resolved language in the gin context.
const KeyLanguage = "fleetauth.language"

// LanguageConfig controls how the request language is resolved. A nil
// config supports the languages with a message catalog.
type LanguageConfig struct {
	Supported  []string
	Default    string
	QueryParam string
	CookieName string
}

// languageResolver picks the first supported language from, in order, the
// query parameter, the cookie and Accept-Language, then the default.
type languageResolver struct {
	supported map[string]bool
	fallback  string
	query     string
	cookie    string
}

func newLanguageResolver(cfg *LanguageConfig) languageResolver {
	var c LanguageConfig
	if cfg != nil {
		c = *cfg
	}
	if len(c.Supported) == 0 {
		c.Supported = lang.Supported()
	}
	r := languageResolver{
		supported: make(map[string]bool, len(c.Supported)),
		query:     orDefault(c.QueryParam, "lang"),
		cookie:    orDefault(c.CookieName, "lang"),
	}
	for _, s := range c.Supported {
		if b := validTag(s); b != "" {
			r.supported[b] = true
		}
	}
	r.fallback = lang.DefaultLanguage
	if d := validTag(c.Default); r.supported[d] {
		r.fallback = d
	}
	return r
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// validTag returns the two-letter primary subtag of s, or "".
func validTag(s string) string {
	b := lang.Base(s)
	if len(b) != 2 || b[0] < 'a' || b[0] > 'z' || b[1] < 'a' || b[1] > 'z' {
		return ""
	}
	return b
}

func (r languageResolver) accept(s string) (string, bool) {
	b := validTag(s)
	return b, b != "" && r.supported[b]
}

func (r languageResolver) resolve(c *gin.Context) string {
	if l, ok := r.accept(c.Query(r.query)); ok {
		return l
	}
	if v, err := c.Cookie(r.cookie); err == nil {
		if l, ok := r.accept(v); ok {
			return l
		}
	}
	// q-values are ignored; browsers list languages in preference order
	for _, part := range strings.Split(c.GetHeader("Accept-Language"), ",") {
		if i := strings.IndexByte(part, ';'); i >= 0 {
			part = part[:i]
		}
		if l, ok := r.accept(part); ok {
			return l
		}
	}
	return r.fallback
}

// LanguageMiddleware resolves the request language and attaches it to the
// request context, where lang.Message picks it up.
func LanguageMiddleware(cfg *LanguageConfig) gin.HandlerFunc {
	r := newLanguageResolver(cfg)
	return func(c *gin.Context) {
		l := r.resolve(c)
		c.Set(KeyLanguage, l)
		c.Request = c.Request.WithContext(lang.WithLanguage(c.Request.Context(), l))
		c.Next()
	}
}
