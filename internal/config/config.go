package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envProduction = "production"

	// devSecret is the development fallback signing secret. It is refused in
	// production.
	devSecret = "tenantcrm-dev-only-secret-change-me"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Env           string
	HTTPAddr      string
	GRPCAddr      string
	PostgresDSN   string
	JWTSecret     string
	JWTIssuer     string
	TokenTTL      time.Duration
	RedisAddr     string
	RoleCacheTTL  time.Duration
	RoleCacheSize int
	AuditQueue    int
	LoginRate     float64
	LoginBurst    int
	LogLevel      string
	Version       string

	// AllowedOrigins lists browser origins granted CORS access.
	AllowedOrigins []string
	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For header
	// is believed. Empty means the peer address is always the client.
	TrustedProxies []string
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:         strings.ToLower(GetEnv("CRM_ENV", "development")),
		HTTPAddr:    GetEnv("CRM_HTTP_ADDR", ":8080"),
		GRPCAddr:    ":9090",
		PostgresDSN: os.Getenv("CRM_PG_DSN"),
		JWTSecret:   strings.TrimSpace(os.Getenv("CRM_JWT_SECRET")),
		JWTIssuer:   GetEnv("CRM_JWT_ISSUER", "tenantcrm"),
		RedisAddr:   os.Getenv("CRM_REDIS_ADDR"),
		LogLevel:    GetEnv("CRM_LOG_LEVEL", "info"),
		Version:     GetEnv("CRM_VERSION", "dev"),
	}
	// An explicitly empty CRM_GRPC_ADDR disables the gRPC listener.
	if addr, ok := os.LookupEnv("CRM_GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(addr)
	}
	cfg.AllowedOrigins = listEnv("CRM_CORS_ORIGINS")
	cfg.TrustedProxies = listEnv("CRM_TRUSTED_PROXIES")

	var err error
	if cfg.TokenTTL, err = durationEnv("CRM_TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RoleCacheTTL, err = durationEnv("CRM_ROLE_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RoleCacheSize, err = intEnv("CRM_ROLE_CACHE_SIZE", 512); err != nil {
		return Config{}, err
	}
	if cfg.AuditQueue, err = intEnv("CRM_AUDIT_QUEUE", 1024); err != nil {
		return Config{}, err
	}
	if cfg.LoginBurst, err = intEnv("CRM_LOGIN_BURST", 10); err != nil {
		return Config{}, err
	}
	rate, err := intEnv("CRM_LOGIN_RATE", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.LoginRate = float64(rate)

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return Config{}, errors.New("CRM_JWT_SECRET is required in production")
		}
		cfg.JWTSecret = devSecret
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("CRM_TOKEN_TTL must be positive")
	}
	// A cached role may not outlive the tokens minted against it.
	if cfg.RoleCacheTTL > cfg.TokenTTL {
		cfg.RoleCacheTTL = cfg.TokenTTL
	}
	return cfg, nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Env == envProduction
}

// UsesDevSecret reports whether the committed development secret is active.
func (c Config) UsesDevSecret() bool {
	return c.JWTSecret == devSecret
}

// GetEnv returns the value of envVar or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return defaultValue
	}
	return value
}

// listEnv splits a comma-separated variable, dropping empty items.
func listEnv(name string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(name), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func intEnv(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive", name)
	}
	return v, nil
}
