package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPath     string
	DBLogLevel string

	RedisHost     string
	RedisPort     string
	SessionSecret string

	JWTSecret string
	TokenTTL  time.Duration

	Timezone *time.Location

	PasswordResetTTL           time.Duration
	PasswordResetPurgeInterval time.Duration
	PasswordResetURL           string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	OpenAIAPIKey string
	LogLevel     string
}

// Load reads configuration from environment variables, falling back to
// defaults suitable for local development.
func Load() (*Config, error) {
	tzName := getEnv("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tzName, err)
	}

	tokenTTL, err := getDuration("TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	resetTTL, err := getDuration("PASSWORD_RESET_TTL", time.Hour)
	if err != nil {
		return nil, err
	}
	purgeInterval, err := getDuration("PASSWORD_RESET_PURGE_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "catena"),
		DBPassword: getEnv("DB_PASSWORD", "catena"),
		DBName:     getEnv("DB_NAME", "catena"),
		DBPath:     getEnv("DB_PATH", "catena.db"),
		DBLogLevel: strings.ToLower(getEnv("DB_LOG_LEVEL", "warn")),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		SessionSecret: getEnv("SESSION_SECRET", "default-secret-key-change-me"),

		JWTSecret: getEnv("JWT_SECRET", "default-jwt-secret-change-me"),
		TokenTTL:  tokenTTL,

		Timezone: loc,

		PasswordResetTTL:           resetTTL,
		PasswordResetPurgeInterval: purgeInterval,
		PasswordResetURL:           getEnv("PASSWORD_RESET_URL", "http://localhost:3000/reset"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     smtpPort,
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		MailFrom:     getEnv("MAIL_FROM", "noreply@catena.local"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	switch cfg.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}
