// Package jwtkit signs and verifies the access tokens bound to login
// sessions, and publishes the verification keys as a JWKS document.
package jwtkit

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Signer signs token claims with the active key. The kid is written to the
// token header so verifiers can pick the matching public key.
type Signer interface {
	KID() string
	Sign(ctx context.Context, claims jwt.MapClaims) (string, error)
}

// RSASigner signs RS256 tokens with an in-memory key.
type RSASigner struct {
	key *rsa.PrivateKey
	kid string
}

var _ Signer = (*RSASigner)(nil)

// NewRSASigner generates a fresh key of the given size (2048 when zero).
func NewRSASigner(bits int, kid string) (*RSASigner, error) {
	if bits <= 0 {
		bits = 2048
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("jwtkit: generate key: %w", err)
	}
	return &RSASigner{key: key, kid: kid}, nil
}

// NewRSASignerFromPEM loads a PKCS#1 or PKCS#8 RSA private key.
func NewRSASignerFromPEM(kid string, pemBytes []byte) (*RSASigner, error) {
	key, err := parseRSAPrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("jwtkit: key %s: %w", kid, err)
	}
	return &RSASigner{key: key, kid: kid}, nil
}

func (s *RSASigner) KID() string               { return s.kid }
func (s *RSASigner) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

// PrivateKeyPEM encodes the key as PKCS#1 PEM.
func (s *RSASigner) PrivateKeyPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(s.key)})
}

func (s *RSASigner) Sign(_ context.Context, claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.kid
	return tok.SignedString(s.key)
}

func parseRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("no PEM block found")
	}
	if blk.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(blk.Bytes)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PKCS#8 key is %T, not RSA", parsed)
	}
	return key, nil
}
