package core

import (
	"strings"
	"time"
)

// AccountStatus is the administrative state of an account. Only active
// accounts may authenticate.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
	StatusLocked    AccountStatus = "locked"
	StatusArchived  AccountStatus = "archived"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusLocked, StatusArchived:
		return true
	}
	return false
}

// IndefiniteLockout is the lockout end used by admin locks without an end time.
var IndefiniteLockout = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Account is the identity-store record the authentication service reads and
// partially mutates. Version is the optimistic concurrency token: every
// UpdateAccount is conditional on it.
type Account struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	PasswordHash   string        `json:"-"`
	Roles          []string      `json:"roles,omitempty"`
	Status         AccountStatus `json:"status"`
	FailedAttempts int           `json:"failed_attempts"`
	LockoutUntil   *time.Time    `json:"lockout_until,omitempty"`
	LastLoginAt    *time.Time    `json:"last_login_at,omitempty"`
	LastLoginIP    string        `json:"last_login_ip,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Version        int64         `json:"-"`
}

// IsLockedAt reports whether the lockout is in force at now.
func (a *Account) IsLockedAt(now time.Time) bool {
	return a.LockoutUntil != nil && now.Before(*a.LockoutUntil)
}

// HasRole reports whether the account carries role (case-insensitive).
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Roles = append([]string(nil), a.Roles...)
	if a.LockoutUntil != nil {
		t := *a.LockoutUntil
		c.LockoutUntil = &t
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
