// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"auth-control-plane/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN for the session store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the counter-store address (host:port).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the counter-store password; empty for no auth.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the counter-store database index.
	RedisDB int `mapstructure:"REDIS_DB"`
	// JWTSigningAlg selects the token signature scheme: HS256 (secret), RS256 or ES256 (key pair).
	JWTSigningAlg string `mapstructure:"JWT_SIGNING_ALG"`
	// JWTSecret is the HMAC secret; required when JWT_SIGNING_ALG is HS256 in production.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTPrivateKey is the PEM-encoded private key or a path to one; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or a path to one.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "auth-core").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTokenTTL is the access token lifetime as "<int>m" or "<int>s" (e.g. "5m", "300s").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh session lifetime (e.g. "720h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// MaxFailedAttempts is the number of failed logins before lockout.
	MaxFailedAttempts int `mapstructure:"MAX_FAILED_ATTEMPTS"`
	// AttemptWindowStr is how long the failed-attempt counter lives (e.g. "30m").
	AttemptWindowStr string `mapstructure:"ATTEMPT_WINDOW"`
	// LockoutDurationStr is how long a lockout lasts once triggered (e.g. "15m").
	LockoutDurationStr string `mapstructure:"LOCKOUT_DURATION"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

var validSigningAlgs = map[string]bool{"HS256": true, "RS256": true, "ES256": true}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SIGNING_ALG", "HS256")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "auth-core")
	v.SetDefault("JWT_AUDIENCE", "api")
	v.SetDefault("ACCESS_TOKEN_TTL", "5m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h") // 30d
	v.SetDefault("MAX_FAILED_ATTEMPTS", 3)
	v.SetDefault("ATTEMPT_WINDOW", "30m")
	v.SetDefault("LOCKOUT_DURATION", "15m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if !validSigningAlgs[cfg.JWTSigningAlg] {
		return nil, fmt.Errorf("config: JWT_SIGNING_ALG must be one of HS256, RS256, ES256, got %q", cfg.JWTSigningAlg)
	}
	if cfg.JWTSigningAlg == "HS256" && cfg.JWTSecret == "" && cfg.Env == "production" {
		return nil, errors.New("config: JWT_SECRET must be set when JWT_SIGNING_ALG=HS256 in production")
	}
	if cfg.JWTSigningAlg != "HS256" && (cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "") {
		return nil, fmt.Errorf("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set when JWT_SIGNING_ALG=%s", cfg.JWTSigningAlg)
	}
	if cfg.MaxFailedAttempts < 1 {
		return nil, errors.New("config: MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL with the fixed "<int>m"/"<int>s" heuristic.
// Absent or malformed values fall back to 5 minutes.
func (c *Config) AccessTTL() time.Duration {
	return security.ParseTokenTTL(c.AccessTokenTTL)
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// AttemptWindow parses AttemptWindowStr as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AttemptWindow() time.Duration {
	d, err := time.ParseDuration(c.AttemptWindowStr)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// LockoutDuration parses LockoutDurationStr as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) LockoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockoutDurationStr)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}
