package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes; longer passwords are refused rather
// than silently truncated.
const bcryptMaxBytes = 72

// ErrTooLongForBcrypt is returned by Bcrypt.Hash for inputs over 72 bytes.
var ErrTooLongForBcrypt = errors.New("password_too_long_for_bcrypt")

// Bcrypt hashes with bcrypt. A zero Cost means bcrypt.DefaultCost.
type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Hash(password string) (string, error) {
	if len(password) > bcryptMaxBytes {
		return "", ErrTooLongForBcrypt
	}
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

func (Bcrypt) Verify(encoded, password string) (bool, error) { return Verify(encoded, password) }

// VerifyBcrypt reports whether password matches hash. A mismatch is not an
// error; a malformed hash is.
func VerifyBcrypt(hash, password string) (bool, error) {
	switch err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

// IsBcryptHash reports whether hash carries one of the bcrypt version prefixes.
func IsBcryptHash(hash string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(hash, p) {
			return true
		}
	}
	return false
}
