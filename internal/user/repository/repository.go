package repository

import (
	"context"

	"auth-control-plane/internal/user/domain"
)

// Repository is the user directory consumed by the auth service.
type Repository interface {
	// FindByIdentifier returns the user whose email or phone (per kind) equals
	// value, or nil if not found.
	FindByIdentifier(ctx context.Context, value string, kind domain.IdentifierKind) (*domain.User, error)
	// GetByID returns the user for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// Create persists the user. The user must have ID set.
	Create(ctx context.Context, u *domain.User) error
}
