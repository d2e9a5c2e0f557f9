package service

import (
	"errors"
	"fmt"
	"time"

	"auth-control-plane/internal/lockout"
	"auth-control-plane/internal/security"
)

// Sentinel errors for the auth service; the transport layer maps them to wire codes.
var (
	// ErrInvalidCredentials never says which field was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotVerified = errors.New("account not verified")
	// ErrInvalidRefreshToken deliberately merges revoked, expired, and unknown
	// so a caller cannot probe which sessions exist.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrSessionNotFound     = errors.New("session not found")
)

// AccountLockedError is returned while an identifier is locked out.
type AccountLockedError struct {
	EndsAt time.Time
}

func (e *AccountLockedError) Error() string {
	if e.EndsAt.IsZero() {
		return "account temporarily locked"
	}
	return fmt.Sprintf("account temporarily locked until %s", e.EndsAt.Format(time.RFC3339))
}

// Code maps an auth error to its stable machine-readable code. Infra errors,
// including the internal store-unavailable state, collapse to
// "temporarily_unavailable"; their detail is logged, never surfaced.
func Code(err error) string {
	var locked *AccountLockedError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountNotVerified):
		return "account_not_verified"
	case errors.As(err, &locked):
		return "account_locked"
	case errors.Is(err, ErrInvalidRefreshToken):
		return "invalid_refresh_token"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, security.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, security.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, lockout.ErrStoreUnavailable):
		return "temporarily_unavailable"
	default:
		return "temporarily_unavailable"
	}
}
