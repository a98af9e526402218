// Package lang carries the request language and the public message catalog.
package lang

import (
	"context"
	"strings"
)

type languageKey struct{}

// Base reduces a language tag such as "es-MX" or "ES_mx" to its lowercase
// primary subtag.
func Base(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// WithLanguage stores the primary subtag of language on ctx. An empty tag
// leaves ctx unchanged.
func WithLanguage(ctx context.Context, language string) context.Context {
	if b := Base(language); b != "" {
		return context.WithValue(ctx, languageKey{}, b)
	}
	return ctx
}

// LanguageFromContext returns the language stored by WithLanguage.
func LanguageFromContext(ctx context.Context) (string, bool) {
	s, _ := ctx.Value(languageKey{}).(string)
	return s, s != ""
}
