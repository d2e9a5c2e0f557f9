// seed inserts a verified development user for local testing.
// Idempotent: skips the insert if dev@example.com already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"auth-control-plane/internal/config"
	"auth-control-plane/internal/db"
	"auth-control-plane/internal/security"
	userdomain "auth-control-plane/internal/user/domain"
	userrepo "auth-control-plane/internal/user/repository"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "Password123!abc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}
	if cfg.Env == "production" {
		fmt.Fprintln(os.Stderr, "seed: refusing to run with APP_ENV=production")
		os.Exit(1)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer sqlDB.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(sqlDB)

	existing, err := users.FindByIdentifier(ctx, devEmail, userdomain.IdentifierEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		fmt.Println("seed: dev user already present, nothing to do")
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	now := time.Now().UTC()
	u := &userdomain.User{
		ID:            uuid.New().String(),
		Email:         devEmail,
		PasswordHash:  hash,
		Role:          userdomain.RoleUser,
		EmailVerified: true,
		Status:        userdomain.UserStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.Validate(); err != nil {
		log.Fatalf("seed: %v", err)
	}
	if err := users.Create(ctx, u); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("seed: created %s (password %q)\n", devEmail, devPassword)
}
