// Package app wires configuration, logging, telemetry, storage, and the auth
// services into one composition root for host programs to embed.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	auditpkg "auth-control-plane/internal/audit"
	auditrepo "auth-control-plane/internal/audit/repository"
	authservice "auth-control-plane/internal/auth/service"
	"auth-control-plane/internal/config"
	"auth-control-plane/internal/db"
	"auth-control-plane/internal/kv"
	"auth-control-plane/internal/lockout"
	"auth-control-plane/internal/security"
	sessionrepo "auth-control-plane/internal/session/repository"
	sessionservice "auth-control-plane/internal/session/service"
	"auth-control-plane/internal/telemetry"
	otelx "auth-control-plane/internal/telemetry/otel"
	userrepo "auth-control-plane/internal/user/repository"
)

// App holds the composed auth subsystem and its connections.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	DB       *sql.DB
	Redis    *redis.Client
	Otel     *otelx.Providers
	Users    *userrepo.PostgresRepository
	Guard    *lockout.Guard
	Sessions *sessionservice.Manager
	Auth     *authservice.AuthService
}

// New loads config and builds the full dependency graph. On error, anything
// already opened is closed before returning.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds the dependency graph from an already-loaded config.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	log := newLogger(cfg)

	providers, err := otelx.NewProviders(ctx, cfg.OTLPEndpoint, "auth-control-plane", cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	metrics, err := telemetry.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	redisClient, err := kv.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	tokens, err := buildTokenProvider(cfg)
	if err != nil {
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, err
	}

	users := userrepo.NewPostgresRepository(sqlDB)
	hasher := security.NewHasher(cfg.BcryptCost)
	validator := authservice.NewValidator(users, hasher)

	guard := lockout.NewGuard(lockout.NewRedisStore(redisClient), lockout.Config{
		MaxAttempts:     cfg.MaxFailedAttempts,
		AttemptWindow:   cfg.AttemptWindow(),
		LockoutDuration: cfg.LockoutDuration(),
	}, log)

	sessions := sessionservice.NewManager(sessionrepo.NewPostgresRepository(sqlDB), tokens, log)
	auditLog := auditpkg.NewLogger(auditrepo.NewPostgresRepository(sqlDB), log)

	auth := authservice.NewAuthService(users, validator, guard, sessions, tokens, auditLog, metrics, log)

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       sqlDB,
		Redis:    redisClient,
		Otel:     providers,
		Users:    users,
		Guard:    guard,
		Sessions: sessions,
		Auth:     auth,
	}, nil
}

// Close flushes telemetry and closes connections in reverse open order.
func (a *App) Close(ctx context.Context) error {
	var first error
	if a.Otel != nil {
		if err := a.Otel.Shutdown(ctx); err != nil {
			first = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().
		Timestamp().
		Str("service", "auth-control-plane").
		Logger()
}

func buildTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTSigningAlg == "HS256" {
		return security.NewHMACTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL()), nil
	}
	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("jwt private key: %w", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("jwt public key: %w", err)
	}
	if got := security.KeyAlg(pub); got != cfg.JWTSigningAlg {
		return nil, fmt.Errorf("jwt key type %q does not match JWT_SIGNING_ALG %q", got, cfg.JWTSigningAlg)
	}
	return security.NewKeypairTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL()), nil
}
