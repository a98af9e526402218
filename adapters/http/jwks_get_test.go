package authhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwtkit "github.com/PaulFidika/fleetauth/jwt"
)

func TestJWKSHandlerServesPublicKeys(t *testing.T) {
	signer, err := jwtkit.NewRSASigner(2048, "k1")
	require.NoError(t, err)
	iss, err := jwtkit.NewIssuer(jwtkit.IssuerOptions{Keys: jwtkit.NewStaticKeySource(signer)})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	JWKSHandler(iss).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc jwtkit.JWKS
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, "k1", doc.Keys[0].Kid)
	assert.Equal(t, "RSA", doc.Keys[0].Kty)
	assert.NotContains(t, w.Body.String(), `"d"`)
}
