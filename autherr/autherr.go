// Package autherr defines the error taxonomy shared by the audit and
// authentication services. Kinds drive logging and transport mapping; the
// wrapped cause is for server-side logs only and must never reach a client.
package autherr

import (
	"errors"
	"fmt"
)

// Kind categorizes an error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindPolicy     Kind = "policy"
	KindConflict   Kind = "conflict"
	KindStorage    Kind = "storage"
	KindSystem     Kind = "system"
	// KindUnavailable marks a feature the deployment has not configured.
	KindUnavailable Kind = "unavailable"
)

// Error is a classified error with an optional operation name and cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrAccountNotFound = &Error{Kind: KindNotFound, Message: "account not found"}
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "session not found"}
	ErrRecordNotFound  = &Error{Kind: KindNotFound, Message: "audit record not found"}
	// ErrStaleAccount reports a lost optimistic-concurrency race on an account write.
	ErrStaleAccount     = &Error{Kind: KindConflict, Message: "account modified concurrently"}
	ErrEmailTaken       = &Error{Kind: KindConflict, Message: "email already registered"}
	ErrInvalidToken     = &Error{Kind: KindValidation, Message: "invalid or expired token"}
	ErrResetUnavailable = &Error{Kind: KindUnavailable, Message: "password reset is not available"}
	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike.
	ErrInvalidCredentials = &Error{Kind: KindPolicy, Message: "invalid credentials"}
)

func Validation(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Policy(op, message string) *Error {
	return &Error{Kind: KindPolicy, Op: op, Message: message}
}

func NotFound(op, message string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Storage wraps a persistence failure. Returns nil when err is nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != KindStorage && e.Kind != KindSystem {
		// already classified by the store (not found, conflict); keep it
		return err
	}
	return &Error{Kind: KindStorage, Op: op, Message: "storage failure", Err: err}
}

// System wraps an unexpected failure. Returns nil when err is nil.
func System(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindSystem, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, KindSystem for unclassified errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func IsNotFound(err error) bool   { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool   { return IsKind(err, KindConflict) }
func IsValidation(err error) bool { return IsKind(err, KindValidation) }
func IsStorage(err error) bool    { return IsKind(err, KindStorage) }
