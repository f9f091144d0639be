package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SessionStore はSessionスロットの保存先。
type SessionStore string

const (
	SessionStorePostgres SessionStore = "postgres"
	SessionStoreRedis    SessionStore = "redis"
	SessionStoreMemory   SessionStore = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session store
	SessionStore  SessionStore
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Identity provider
	IdentityAPIKey     string
	IdentityAPIBaseURL string
	ProviderTimeout    time.Duration

	// Phone OTP
	PhoneCountryCode  string
	OTPResendCooldown time.Duration
	OTPMaxAttempts    int
	OTPFlowTTL        time.Duration
	RecaptchaSiteKey  string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitOTPSend int

	// Logging
	LogLevel         string
	LogRetentionDays int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string

	// Help
	ChatWidgetURL string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む。既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.SessionStore = SessionStore(getEnvString("SESSION_STORE", string(SessionStorePostgres)))
	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreRedis, SessionStoreMemory:
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE %q: must be postgres, redis or memory", cfg.SessionStore)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.SessionStore == SessionStoreRedis && cfg.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.IdentityAPIKey = os.Getenv("IDENTITY_API_KEY")
	if cfg.IdentityAPIKey == "" {
		missing = append(missing, "IDENTITY_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.IdentityAPIBaseURL = getEnvString("IDENTITY_API_BASE_URL", "https://identitytoolkit.googleapis.com/v1")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.PhoneCountryCode = getEnvString("PHONE_COUNTRY_CODE", "+91")
	cfg.OTPResendCooldown = getEnvDuration("OTP_RESEND_COOLDOWN", 30*time.Second)
	cfg.OTPMaxAttempts = getEnvInt("OTP_MAX_ATTEMPTS", 5)
	cfg.OTPFlowTTL = getEnvDuration("OTP_FLOW_TTL", 10*time.Minute)
	cfg.RecaptchaSiteKey = getEnvString("RECAPTCHA_SITE_KEY", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 60)
	cfg.RateLimitOTPSend = getEnvInt("RATE_LIMIT_OTP_SEND", 5)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogRetentionDays = getEnvInt("LOG_RETENTION_DAYS", 14)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", strings.HasPrefix(cfg.BaseURL, "https://"))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.ChatWidgetURL = getEnvString("CHAT_WIDGET_URL", "")

	return cfg, nil
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
