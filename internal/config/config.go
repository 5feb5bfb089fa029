package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// minSecretLength はトークン署名鍵の最小バイト長。
const minSecretLength = 16

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Ephemeral store
	RedisURL     string
	StoreTimeout time.Duration

	// Auth
	AuthSecretKey          string
	AuthAlgorithm          string
	AccessTokenExpireAfter time.Duration

	// Cooldown
	CooldownTTL time.Duration

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAuth    int

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または署名設定が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.AuthSecretKey = os.Getenv("AUTH_SECRET_KEY")
	if cfg.AuthSecretKey == "" {
		missing = append(missing, "AUTH_SECRET_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthAlgorithm = strings.ToUpper(getEnvString("AUTH_ALGORITHM", "HS256"))
	cfg.AccessTokenExpireAfter = time.Duration(getEnvInt("AUTH_ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute
	cfg.CooldownTTL = getEnvDuration("COOLDOWN_TTL", 5*time.Second)
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 2*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は起動時に致命的となる設定不備を検出する。
func (c *Config) validate() error {
	if len(c.AuthSecretKey) < minSecretLength {
		return fmt.Errorf("AUTH_SECRET_KEY must be at least %d bytes", minSecretLength)
	}
	switch c.AuthAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("unsupported AUTH_ALGORITHM: %q", c.AuthAlgorithm)
	}
	if c.AccessTokenExpireAfter <= 0 {
		return fmt.Errorf("AUTH_ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.CooldownTTL <= 0 {
		return fmt.Errorf("COOLDOWN_TTL must be positive")
	}
	// 0以下のレートは全リクエストを拒否するリミッタになる
	if c.RateLimitGeneral <= 0 {
		return fmt.Errorf("RATE_LIMIT_GENERAL must be positive")
	}
	if c.RateLimitAuth <= 0 {
		return fmt.Errorf("RATE_LIMIT_AUTH must be positive")
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
