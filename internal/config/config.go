package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Auth       AuthConfig
	Redis      RedisConfig
	Email      EmailConfig
	Messaging  MessagingConfig
	Notifier   NotifierConfig
	Moderation ModerationConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret           string
	AccessTokenExpiry   time.Duration
	GuardianTokenExpiry time.Duration
	// GuardianTOTPKey encrypts guardian authenticator secrets (AES-256).
	// Nil disables guardian dashboard sign-in.
	GuardianTOTPKey    []byte
	GuardianTOTPIssuer string
	AdminEmail         string
	AdminPassword      string
}

// RedisConfig configures live-delivery fan-out. An empty URL keeps fan-out in process.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type EmailConfig struct {
	Provider       string // "ses", "sendgrid" or "log"
	AWSRegion      string
	FromAddress    string
	FromName       string
	SendGridAPIKey string
	AppBaseURL     string
}

type MessagingConfig struct {
	ScreeningThreshold     int
	MaxMessageLength       int
	SendRateLimitPerMinute int
}

type NotifierConfig struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	SendTimeout time.Duration
}

type ModerationConfig struct {
	HighSeveritySuspensionDays int
	SuspensionAutoLift         bool
	SuspensionSweepSchedule    string
	ReportRateLimitPerHour     int
}

const (
	EmailProviderSES      = "ses"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderLog      = "log"
)

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "mithaq"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
		},
		Auth: AuthConfig{
			JWTSecret:           jwtSecret,
			AccessTokenExpiry:   getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
			GuardianTokenExpiry: getEnvAsDuration("GUARDIAN_TOKEN_EXPIRY", 30*time.Minute),
			GuardianTOTPIssuer:  getEnv("GUARDIAN_TOTP_ISSUER", "Mithaq"),
			AdminEmail:          getEnv("ADMIN_EMAIL", ""),
			AdminPassword:       getEnv("ADMIN_PASSWORD", ""),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Email: EmailConfig{
			Provider:       strings.ToLower(getEnv("EMAIL_PROVIDER", EmailProviderLog)),
			AWSRegion:      getEnv("AWS_REGION", "eu-west-3"),
			FromAddress:    getEnv("EMAIL_FROM_ADDRESS", "no-reply@mithaq.local"),
			FromName:       getEnv("EMAIL_FROM_NAME", "Mithaq"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			AppBaseURL:     strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		},
		Messaging: MessagingConfig{
			ScreeningThreshold:     getEnvAsInt("SCREENING_THRESHOLD", 3),
			MaxMessageLength:       getEnvAsInt("MESSAGE_MAX_LENGTH", 2000),
			SendRateLimitPerMinute: getEnvAsInt("MESSAGE_RATE_LIMIT_PER_MINUTE", 30),
		},
		Notifier: NotifierConfig{
			Workers:     getEnvAsInt("NOTIFIER_WORKERS", 2),
			QueueSize:   getEnvAsInt("NOTIFIER_QUEUE_SIZE", 256),
			MaxAttempts: getEnvAsInt("NOTIFIER_MAX_ATTEMPTS", 1),
			SendTimeout: getEnvAsDuration("NOTIFIER_SEND_TIMEOUT", 10*time.Second),
		},
		Moderation: ModerationConfig{
			HighSeveritySuspensionDays: getEnvAsInt("HIGH_SEVERITY_SUSPENSION_DAYS", 7),
			SuspensionAutoLift:         getEnvAsBool("SUSPENSION_AUTO_LIFT", false),
			SuspensionSweepSchedule:    getEnv("SUSPENSION_SWEEP_SCHEDULE", "0 */5 * * * *"),
			ReportRateLimitPerHour:     getEnvAsInt("REPORT_RATE_LIMIT_PER_HOUR", 20),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate JWT secret strength
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	key, err := parseTOTPKey(getEnv("GUARDIAN_TOTP_KEY", ""))
	if err != nil {
		return nil, err
	}
	cfg.Auth.GuardianTOTPKey = key

	if err := cfg.Email.validate(); err != nil {
		return nil, err
	}

	if err := cfg.validateLimits(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// parseTOTPKey decodes GUARDIAN_TOTP_KEY. An empty value disables the feature.
func parseTOTPKey(raw string) ([]byte, error) {
	if raw == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("GUARDIAN_TOTP_KEY must be base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("GUARDIAN_TOTP_KEY must decode to 32 bytes (got %d)", len(key))
	}

	return key, nil
}

func (c *EmailConfig) validate() error {
	switch c.Provider {
	case EmailProviderLog, EmailProviderSES:
		return nil
	case EmailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid")
		}
		return nil
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be one of ses, sendgrid, log (got %q)", c.Provider)
	}
}

func (c *Config) validateLimits() error {
	if c.Messaging.ScreeningThreshold < 0 {
		return fmt.Errorf("SCREENING_THRESHOLD cannot be negative")
	}
	if c.Messaging.MaxMessageLength < 1 {
		return fmt.Errorf("MESSAGE_MAX_LENGTH must be positive")
	}
	if c.Notifier.Workers < 1 || c.Notifier.QueueSize < 1 {
		return fmt.Errorf("NOTIFIER_WORKERS and NOTIFIER_QUEUE_SIZE must be positive")
	}
	if c.Notifier.MaxAttempts < 1 {
		return fmt.Errorf("NOTIFIER_MAX_ATTEMPTS must be at least 1")
	}
	if c.Moderation.HighSeveritySuspensionDays < 1 {
		return fmt.Errorf("HIGH_SEVERITY_SUSPENSION_DAYS must be at least 1")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		return splitList(originsStr)
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
