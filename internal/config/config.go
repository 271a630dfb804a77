package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string
	LogLevel string

	DatabaseURL string
	RedisAddr   string

	JWTIssuer     string
	JWTAudience   string
	JWTSecret     string
	JWTSessionTTL time.Duration
	SecretPepper  string

	ClientURL string

	VerifyTokenTTL time.Duration
	LoginCodeTTL   time.Duration

	PaystackSecretKey string
	PaystackBaseURL   string

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	ConverterDelay time.Duration

	AuthRateLimitPerMin int
	APIRateLimitPerMin  int

	// CIDRs whose webhook deliveries skip rate limiting, so gateway
	// retry storms are not throttled into further retries.
	TrustedWebhookCIDRs []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		JWTIssuer:           getEnv("JWT_ISSUER", "pdflux-api"),
		JWTAudience:         getEnv("JWT_AUDIENCE", "pdflux-client"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		SecretPepper:        os.Getenv("SECRET_PEPPER"),
		ClientURL:           getEnv("CLIENT_URL", "http://localhost:3000"),
		PaystackSecretKey:   os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		StorageEndpoint:     os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey:    os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:    os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:       getEnv("STORAGE_BUCKET", "pdflux"),
		StorageUseSSL:       getEnvBool("STORAGE_USE_SSL", true),
		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		TrustedWebhookCIDRs: getEnvList("TRUSTED_WEBHOOK_CIDRS"),
	}

	sessionTTL, err := time.ParseDuration(getEnv("JWT_SESSION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse JWT_SESSION_TTL: %w", err)
	}
	cfg.JWTSessionTTL = sessionTTL

	verifyTTL, err := time.ParseDuration(getEnv("VERIFY_TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse VERIFY_TOKEN_TTL: %w", err)
	}
	cfg.VerifyTokenTTL = verifyTTL

	codeTTL, err := time.ParseDuration(getEnv("LOGIN_CODE_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("parse LOGIN_CODE_TTL: %w", err)
	}
	cfg.LoginCodeTTL = codeTTL

	converterDelay, err := time.ParseDuration(getEnv("CONVERTER_DELAY", "3s"))
	if err != nil {
		return nil, fmt.Errorf("parse CONVERTER_DELAY: %w", err)
	}
	cfg.ConverterDelay = converterDelay

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if len(c.SecretPepper) < 16 {
		errs = append(errs, "SECRET_PEPPER must be at least 16 chars")
	}
	if c.PaystackSecretKey == "" {
		errs = append(errs, "PAYSTACK_SECRET_KEY is required")
	}
	if c.StorageEndpoint == "" {
		errs = append(errs, "STORAGE_ENDPOINT is required")
	}
	if c.StorageAccessKey == "" || c.StorageSecretKey == "" {
		errs = append(errs, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required")
	}
	if c.JWTSessionTTL <= 0 || c.JWTSessionTTL > (30*24*time.Hour) {
		errs = append(errs, "JWT_SESSION_TTL must be between 1s and 30d")
	}
	if c.VerifyTokenTTL <= 0 {
		errs = append(errs, "VERIFY_TOKEN_TTL must be > 0")
	}
	if c.LoginCodeTTL <= 0 || c.LoginCodeTTL > time.Hour {
		errs = append(errs, "LOGIN_CODE_TTL must be between 1s and 1h")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
