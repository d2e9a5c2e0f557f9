package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auth-control-plane/internal/user/domain"
)

const userColumns = `id, email, phone, password_hash, role, email_verified, phone_verified, status, created_at, updated_at`

// PostgresRepository is the database-backed user directory.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByIdentifier returns the user matching value on the column selected by
// kind, or nil if not found. It returns an error only for database failures.
func (r *PostgresRepository) FindByIdentifier(ctx context.Context, value string, kind domain.IdentifierKind) (*domain.User, error) {
	column := "phone"
	if kind == domain.IdentifierEmail {
		column = "email"
	}
	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column), value)
	return scanUser(row)
}

// GetByID returns the user for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, phone, password_hash, role, email_verified, phone_verified, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, u.ID, u.Email, u.Phone, u.PasswordHash, string(u.Role), u.EmailVerified, u.PhoneVerified, string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var role, status string
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &role, &u.EmailVerified, &u.PhoneVerified, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	return &u, nil
}
