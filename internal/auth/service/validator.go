package service

import (
	"context"

	userdomain "auth-control-plane/internal/user/domain"
)

// UserDirectory is the minimal user repository needed by the auth service.
type UserDirectory interface {
	FindByIdentifier(ctx context.Context, value string, kind userdomain.IdentifierKind) (*userdomain.User, error)
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// SecretComparer verifies a plaintext secret against a stored hash in constant
// time. The hashing primitive is pluggable; *security.Hasher satisfies it.
type SecretComparer interface {
	Compare(hash string, password []byte) error
}

// Validator checks an identifier and secret against the user directory.
// It has no side effects and never touches the counter store.
type Validator struct {
	users  UserDirectory
	hasher SecretComparer
}

// NewValidator returns a Validator over the given directory and secret comparer.
func NewValidator(users UserDirectory, hasher SecretComparer) *Validator {
	return &Validator{users: users, hasher: hasher}
}

// Validate resolves the identifier (contains "@" means email, else phone),
// verifies the secret, and returns the user with the password hash stripped.
// Missing user, empty fields, and secret mismatch all collapse to
// ErrInvalidCredentials; a matched-but-unverified channel returns
// ErrAccountNotVerified.
func (v *Validator) Validate(ctx context.Context, identifier, secret string) (*userdomain.User, error) {
	kind := userdomain.ClassifyIdentifier(identifier)
	user, err := v.users.FindByIdentifier(ctx, identifier, kind)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(user.PasswordHash, []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.VerifiedFor(kind) {
		return nil, ErrAccountNotVerified
	}
	return user.Sanitized(), nil
}
