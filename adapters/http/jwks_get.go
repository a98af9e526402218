package authhttp

import (
	"net/http"

	jwtkit "github.com/PaulFidika/fleetauth/jwt"
)

// KeyPublisher exposes the public verification keys.
type KeyPublisher interface {
	JWKS() jwtkit.JWKS
}

// JWKSHandler serves the public JWKS document.
func JWKSHandler(keys KeyPublisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtkit.ServeJWKS(w, r, keys.JWKS())
	})
}
