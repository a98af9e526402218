package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestArgon2RoundTrip(t *testing.T) {
	h, err := Argon2{Params: Params{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32}}.Hash("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", h)
	}
	ok, err := Verify(h, "correct horse")
	if err != nil || !ok {
		t.Fatalf("verify correct: ok=%v err=%v", ok, err)
	}
	ok, err = Verify(h, "wrong horse")
	if err != nil || ok {
		t.Fatalf("verify wrong: ok=%v err=%v", ok, err)
	}
}

func TestBcryptVerifiesThroughDispatch(t *testing.T) {
	h, err := Bcrypt{Cost: bcrypt.MinCost}.Hash("battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !IsBcryptHash(h) {
		t.Fatalf("not a bcrypt hash: %q", h)
	}
	if ok, _ := Verify(h, "battery staple"); !ok {
		t.Fatal("expected match")
	}
	if ok, _ := Verify(h, "battery"); ok {
		t.Fatal("expected mismatch")
	}
}

func TestVerifyUnknownEncoding(t *testing.T) {
	if _, err := Verify("plaintext", "plaintext"); err == nil {
		t.Fatal("expected error for unsupported hash")
	}
	if ok, err := Verify("", "anything"); ok || err != nil {
		t.Fatalf("empty hash: ok=%v err=%v", ok, err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]error{
		"":                       ErrBlank,
		"        ":               ErrBlank,
		"short":                  ErrTooShort,
		"longenough":             nil,
		strings.Repeat("x", 129): ErrTooLong,
	}
	for in, want := range cases {
		if got := Validate(in); got != want {
			t.Errorf("Validate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBcryptRefusesOverlongInput(t *testing.T) {
	if _, err := (Bcrypt{Cost: bcrypt.MinCost}).Hash(strings.Repeat("é", 40)); err != ErrTooLongForBcrypt {
		t.Fatalf("expected ErrTooLongForBcrypt, got %v", err)
	}
	if _, err := VerifyBcrypt("$2a$04$broken", "whatever"); err == nil {
		t.Fatal("malformed hash should error")
	}
}
