package domain

import (
	"errors"
	"strings"
	"time"
)

// IdentifierKind tags how a login identifier is interpreted.
type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

// ClassifyIdentifier derives the identifier kind: anything containing "@" is an
// email, everything else a phone number. The heuristic is fixed; callers and
// token claims depend on it being reproduced exactly.
func ClassifyIdentifier(value string) IdentifierKind {
	if strings.Contains(value, "@") {
		return IdentifierEmail
	}
	return IdentifierPhone
}

// Role is the user's coarse authorization role carried in access-token claims.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is the directory record this subsystem authenticates against. It is
// externally owned; everything here is read-only except verification flags.
type User struct {
	ID            string
	Email         string
	Phone         string
	PasswordHash  string
	Role          Role
	EmailVerified bool
	PhoneVerified bool
	Status        UserStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" && u.Phone == "" {
		return errors.New("at least one of email or phone is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// Sanitized returns a copy of the user with the password hash stripped.
func (u *User) Sanitized() *User {
	c := *u
	c.PasswordHash = ""
	return &c
}

// IdentifierFor returns the user's identifier value for the given kind.
func (u *User) IdentifierFor(kind IdentifierKind) string {
	if kind == IdentifierEmail {
		return u.Email
	}
	return u.Phone
}

// VerifiedFor reports whether the channel matching kind has been verified.
func (u *User) VerifiedFor(kind IdentifierKind) bool {
	if kind == IdentifierEmail {
		return u.EmailVerified
	}
	return u.PhoneVerified
}

// PrimaryIdentifier returns the preferred identifier and its kind: email when
// present, else phone. Used when re-issuing claims without the original login
// identifier, e.g. on refresh.
func (u *User) PrimaryIdentifier() (string, IdentifierKind) {
	if u.Email != "" {
		return u.Email, IdentifierEmail
	}
	return u.Phone, IdentifierPhone
}
