// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetDatabaseMaxConns() int32
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthCoreConfig provides settings needed by the generic auth core.
type AuthCoreConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerifyTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetRequireEmailVerification() bool
	GetRequireMFA() bool
	GetMaxLoginAttempts() int
	GetLoginLockoutWindow() time.Duration
	GetSessionTimeout() time.Duration
	GetMFAChallengeTTL() time.Duration
	GetMFAIssuer() string
}

// TenantAuthConfig provides the switches read by the tenant auth orchestrator.
type TenantAuthConfig interface {
	GetRequireEmailVerification() bool
	GetRequireMFA() bool
	GetDefaultRole() string
	IsWelcomeEmailEnabled() bool
	IsOnboardingEnabled() bool
	IsAnalyticsEnabled() bool
	GetPortalBaseURL() string
}

// SchedulerConfig provides settings for the asynq queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetAsynqQueue() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetPortalBaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// CookieConfig provides settings for the refresh token cookie.
type CookieConfig interface {
	GetRefreshTokenTTL() time.Duration
	GetRefreshCookieName() string
	GetRefreshCookieDomain() string
	GetRefreshCookieSecure() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketAvatars() string
	IsMinIOEnabled() bool
}

// ProfileConfig provides settings for tenant user profiles.
type ProfileConfig interface {
	GetDefaultPhoneRegion() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	DatabaseMaxConns         int32
	RedisURL                 string
	AsynqQueue               string
	AsynqConcurrency         int
	JWTAccessSecret          string
	AccessTokenTTL           time.Duration
	RefreshTokenTTL          time.Duration
	VerifyTokenTTL           time.Duration
	ResetTokenTTL            time.Duration
	RequireEmailVerification bool
	RequireMFA               bool
	MaxLoginAttempts         int
	LoginLockoutWindow       time.Duration
	SessionTimeout           time.Duration
	MFAChallengeTTL          time.Duration
	MFAIssuer                string
	DefaultRole              string
	WelcomeEmailEnabled      bool
	OnboardingEnabled        bool
	AnalyticsEnabled         bool
	PortalBaseURL            string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	RefreshCookieName        string
	RefreshCookieDomain      string
	RefreshCookieSecure      bool
	EmailEnabled             bool
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketAvatars       string
	DefaultPhoneRegion       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetDatabaseMaxConns() int32 { return c.DatabaseMaxConns }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// AuthCoreConfig implementation
func (c *Config) GetAccessTokenTTL() time.Duration     { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration    { return c.RefreshTokenTTL }
func (c *Config) GetVerifyTokenTTL() time.Duration     { return c.VerifyTokenTTL }
func (c *Config) GetResetTokenTTL() time.Duration      { return c.ResetTokenTTL }
func (c *Config) GetRequireEmailVerification() bool    { return c.RequireEmailVerification }
func (c *Config) GetRequireMFA() bool                  { return c.RequireMFA }
func (c *Config) GetMaxLoginAttempts() int             { return c.MaxLoginAttempts }
func (c *Config) GetLoginLockoutWindow() time.Duration { return c.LoginLockoutWindow }
func (c *Config) GetSessionTimeout() time.Duration     { return c.SessionTimeout }
func (c *Config) GetMFAChallengeTTL() time.Duration    { return c.MFAChallengeTTL }
func (c *Config) GetMFAIssuer() string                 { return c.MFAIssuer }

// TenantAuthConfig implementation
func (c *Config) GetDefaultRole() string      { return c.DefaultRole }
func (c *Config) IsWelcomeEmailEnabled() bool { return c.WelcomeEmailEnabled }
func (c *Config) IsOnboardingEnabled() bool   { return c.OnboardingEnabled }
func (c *Config) IsAnalyticsEnabled() bool    { return c.AnalyticsEnabled }
func (c *Config) GetPortalBaseURL() string    { return c.PortalBaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetAsynqQueue() string    { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string      { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string     { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string     { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool          { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketAvatars() string { return c.MinioBucketAvatars }
func (c *Config) IsMinIOEnabled() bool          { return c.MinIOEndpoint != "" }

// CookieConfig implementation
func (c *Config) GetRefreshCookieName() string   { return c.RefreshCookieName }
func (c *Config) GetRefreshCookieDomain() string { return c.RefreshCookieDomain }
func (c *Config) GetRefreshCookieSecure() bool   { return c.RefreshCookieSecure }

// ProfileConfig implementation
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultPhoneRegion }

// Load reads configuration from environment variables (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := getBool("CORS_ALLOW_ALL", false)
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := getBool("EMAIL_ENABLED", true)

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:         int32(mustInt(getEnv("DATABASE_MAX_CONNS", "25"))),
		RedisURL:                 getEnv("REDIS_URL", ""),
		AsynqQueue:               getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:           mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		RefreshTokenTTL:          mustDuration(getEnv("JWT_REFRESH_TTL", "720h")),
		VerifyTokenTTL:           mustDuration(getEnv("VERIFY_TOKEN_TTL", "24h")),
		ResetTokenTTL:            mustDuration(getEnv("RESET_TOKEN_TTL", "30m")),
		RequireEmailVerification: getBool("REQUIRE_EMAIL_VERIFICATION", false),
		RequireMFA:               getBool("REQUIRE_MFA", false),
		MaxLoginAttempts:         mustInt(getEnv("MAX_LOGIN_ATTEMPTS", "5")),
		LoginLockoutWindow:       mustDuration(getEnv("LOGIN_LOCKOUT_WINDOW", "15m")),
		SessionTimeout:           mustDuration(getEnv("SESSION_TIMEOUT", "720h")),
		MFAChallengeTTL:          mustDuration(getEnv("MFA_CHALLENGE_TTL", "5m")),
		MFAIssuer:                getEnv("MFA_ISSUER", "Tenant Portal"),
		DefaultRole:              getEnv("DEFAULT_ROLE", "member"),
		WelcomeEmailEnabled:      getBool("ENABLE_WELCOME_EMAIL", true),
		OnboardingEnabled:        getBool("ENABLE_ONBOARDING", true),
		AnalyticsEnabled:         getBool("ENABLE_ANALYTICS", true),
		PortalBaseURL:            strings.TrimRight(getEnv("PORTAL_BASE_URL", "http://localhost:3000"), "/"),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           getBool("CORS_ALLOW_CREDENTIALS", true),
		RefreshCookieName:        getEnv("REFRESH_COOKIE_NAME", "tenant_refresh_token"),
		RefreshCookieDomain:      getEnv("REFRESH_COOKIE_DOMAIN", ""),
		RefreshCookieSecure:      getBool("REFRESH_COOKIE_SECURE", false),
		EmailEnabled:             emailEnabled && smtpHost != "",
		SMTPHost:                 smtpHost,
		SMTPPort:                 mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Tenant Portal"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              getBool("MINIO_USE_SSL", false),
		MinioBucketAvatars:       getEnv("MINIO_BUCKET_AVATARS", "user-avatars"),
		DefaultPhoneRegion:       strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "US")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 || c.SessionTimeout <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL and SESSION_TIMEOUT must be positive durations")
	}
	if c.MaxLoginAttempts <= 0 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be a positive integer")
	}
	if c.DefaultRole == "" {
		return fmt.Errorf("DEFAULT_ROLE cannot be empty")
	}
	if c.EmailEnabled && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}
	return strings.EqualFold(strings.TrimSpace(val), "true")
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
