package jwtkit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWK is the public part of one RSA verification key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the document served at /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// publicKeySet converts every public key of keys into a jwk.Set ordered by
// kid. The verifier and the published document share it.
func publicKeySet(keys KeySource) (jwk.Set, error) {
	pubs := keys.PublicKeys()
	kids := make([]string, 0, len(pubs))
	for kid := range pubs {
		kids = append(kids, kid)
	}
	slices.Sort(kids)

	set := jwk.NewSet()
	for _, kid := range kids {
		key, err := jwk.FromRaw(pubs[kid])
		if err != nil {
			return nil, fmt.Errorf("jwtkit: key %s: %w", kid, err)
		}
		for k, v := range map[string]any{
			jwk.KeyIDKey:     kid,
			jwk.AlgorithmKey: jwa.RS256,
			jwk.KeyUsageKey:  jwk.ForSignature,
		} {
			if err := key.Set(k, v); err != nil {
				return nil, err
			}
		}
		if err := set.AddKey(key); err != nil {
			return nil, err
		}
	}
	if set.Len() == 0 {
		return nil, errors.New("jwtkit: no public keys")
	}
	return set, nil
}

// PublicJWKS renders the public keys of keys. A key source without usable
// public keys yields an empty document.
func PublicJWKS(keys KeySource) JWKS {
	doc := JWKS{Keys: []JWK{}}
	set, err := publicKeySet(keys)
	if err != nil {
		return doc
	}
	b, err := json.Marshal(set)
	if err != nil {
		return doc
	}
	_ = json.Unmarshal(b, &doc)
	return doc
}

// ServeJWKS writes ks with an ETag derived from its content and honours
// If-None-Match.
func ServeJWKS(w http.ResponseWriter, r *http.Request, ks JWKS) {
	b, err := json.Marshal(ks)
	if err != nil {
		http.Error(w, "jwks unavailable", http.StatusInternalServerError)
		return
	}
	sum := sha256.Sum256(b)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`

	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", "public, max-age=300, must-revalidate")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
