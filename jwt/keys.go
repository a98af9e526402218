package jwtkit

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// DefaultVaultPath is where External Secrets mounts keys.json in the cluster.
const DefaultVaultPath = "/vault/auth"

// KeySource provides the active signer and public keys for JWKS.
type KeySource interface {
	ActiveSigner() Signer
	PublicKeys() map[string]*rsa.PublicKey
}

// StaticKeySource is a simple in-memory implementation.
type StaticKeySource struct {
	Active Signer
	Pubs   map[string]*rsa.PublicKey
}

func (s StaticKeySource) ActiveSigner() Signer                  { return s.Active }
func (s StaticKeySource) PublicKeys() map[string]*rsa.PublicKey { return s.Pubs }

// NewStaticKeySource wraps a single RSA signer.
func NewStaticKeySource(s *RSASigner) StaticKeySource {
	return StaticKeySource{Active: s, Pubs: map[string]*rsa.PublicKey{s.KID(): s.PublicKey()}}
}

// KeyConfig says where signing keys come from. Sources are tried in order:
// inline PEM, VaultPath/keys.json, then a generated key persisted under
// DevKeysDir when AllowGenerated is set.
type KeyConfig struct {
	ActiveKeyID         string
	ActivePrivateKeyPEM string
	// PublicKeysJSON maps extra key ids to PEM public keys, for rotation.
	PublicKeysJSON string
	VaultPath      string
	DevKeysDir     string
	AllowGenerated bool
}

const (
	privateKeyFile = "private.pem"
	keyIDFile      = "kid"
)

// LoadKeySource resolves cfg into a KeySource. It fails when keys are
// provided but invalid, or when nothing is provided and generation is off.
func LoadKeySource(cfg KeyConfig, log logrus.FieldLogger) (KeySource, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "jwt_keys")

	if ks, err := keysFromInline(cfg, log); err != nil {
		return nil, fmt.Errorf("inline keys: %w", err)
	} else if ks != nil {
		return ks, nil
	}

	vault := cfg.VaultPath
	if vault == "" {
		vault = DefaultVaultPath
	}
	if ks, err := keysFromFile(vault, log); err != nil {
		return nil, fmt.Errorf("keys from %s: %w", vault, err)
	} else if ks != nil {
		return ks, nil
	}

	if !cfg.AllowGenerated {
		return nil, fmt.Errorf("no JWT keys configured and none found in %s", vault)
	}
	dir := cfg.DevKeysDir
	if dir == "" {
		dir = ".runtime/fleetauth"
	}
	return generatedKeys(dir, log)
}

func keysFromInline(cfg KeyConfig, log logrus.FieldLogger) (KeySource, error) {
	kid := strings.TrimSpace(cfg.ActiveKeyID)
	pemStr := strings.TrimSpace(cfg.ActivePrivateKeyPEM)
	if kid == "" && pemStr == "" {
		return nil, nil
	}
	if kid == "" {
		return nil, fmt.Errorf("private key is set but key id is missing")
	}
	if pemStr == "" {
		return nil, fmt.Errorf("key id is set but private key is missing")
	}
	signer, err := NewRSASignerFromPEM(kid, []byte(pemStr))
	if err != nil {
		return nil, err
	}
	ks := NewStaticKeySource(signer)
	if extra := strings.TrimSpace(cfg.PublicKeysJSON); extra != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(extra), &m); err != nil {
			return nil, fmt.Errorf("parse public keys: %w", err)
		}
		addPublicKeys(ks.Pubs, m, log)
	}
	return ks, nil
}

func keysFromFile(dir string, log logrus.FieldLogger) (KeySource, error) {
	data, err := os.ReadFile(filepath.Join(dir, "keys.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var kd struct {
		ActiveKeyID         string            `json:"active_key_id"`
		ActivePrivateKeyPEM string            `json:"active_private_key_pem"`
		PublicKeys          map[string]string `json:"public_keys"`
	}
	if err := json.Unmarshal(data, &kd); err != nil {
		return nil, fmt.Errorf("parse keys.json: %w", err)
	}
	if kd.ActiveKeyID == "" || kd.ActivePrivateKeyPEM == "" {
		return nil, fmt.Errorf("keys.json needs active_key_id and active_private_key_pem")
	}
	signer, err := NewRSASignerFromPEM(kd.ActiveKeyID, []byte(kd.ActivePrivateKeyPEM))
	if err != nil {
		return nil, err
	}
	ks := NewStaticKeySource(signer)
	addPublicKeys(ks.Pubs, kd.PublicKeys, log)
	return ks, nil
}

// addPublicKeys skips keys that do not parse; a bad retired key must not
// stop the service.
func addPublicKeys(dst map[string]*rsa.PublicKey, src map[string]string, log logrus.FieldLogger) {
	for kid, pemStr := range src {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemStr))
		if err != nil {
			log.WithField("kid", kid).WithError(err).Warn("skipping unparsable public key")
			continue
		}
		dst[kid] = pub
	}
}

// generatedKeys loads or creates a development key under dir and reuses it
// across restarts.
func generatedKeys(dir string, log logrus.FieldLogger) (KeySource, error) {
	keyPath := filepath.Join(dir, privateKeyFile)
	if pemBytes, err := os.ReadFile(keyPath); err == nil {
		kid := "dev"
		if b, err := os.ReadFile(filepath.Join(dir, keyIDFile)); err == nil && strings.TrimSpace(string(b)) != "" {
			kid = strings.TrimSpace(string(b))
		}
		if signer, err := NewRSASignerFromPEM(kid, pemBytes); err == nil {
			return NewStaticKeySource(signer), nil
		}
		log.WithField("path", keyPath).Warn("ignoring unreadable development key")
	}

	kid := fmt.Sprintf("dev-%d", time.Now().Unix())
	signer, err := NewRSASigner(2048, kid)
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	if err := persistKey(dir, signer); err != nil {
		log.WithError(err).Warn("development key not persisted; tokens will not survive a restart")
	} else {
		log.WithFields(logrus.Fields{"kid": kid, "dir": dir}).Warn("generated development signing key")
	}
	return NewStaticKeySource(signer), nil
}

func persistKey(dir string, signer *RSASigner) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), signer.PrivateKeyPEM(), 0o600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, keyIDFile), []byte(signer.KID()), 0o600)
}
