// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Email     EmailConfig
	Bank      BankConfig
	Recon     ReconConfig
	Scheduler SchedulerConfig
	Admin     AdminConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Enabled  bool
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPUseTLS   bool
}

// BankConfig describes the external bank transaction feed. When APIURL is
// empty the mock feed is used instead.
type BankConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// ReconConfig holds the tunables of the matching and settlement engine.
type ReconConfig struct {
	RatePerCredit      decimal.Decimal
	MatchTolerance     decimal.Decimal
	MaxOverpayment     decimal.Decimal
	MaxUnderpayment    decimal.Decimal
	ExactDelta         decimal.Decimal
	MinDepositAmount   decimal.Decimal
	MaxDepositAmount   decimal.Decimal
	AutoApproveScore   float64
	SaneAmountMin      decimal.Decimal
	SaneAmountMax      decimal.Decimal
	Currency           string
}

type SchedulerConfig struct {
	Interval time.Duration
	Enabled  bool
}

type AdminConfig struct {
	Email  string
	APIKey string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			Enabled:  getBoolEnv("REDIS_ENABLED", false),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", ""),
			SMTPUseTLS:   getBoolEnv("SMTP_USE_TLS", true),
		},
		Bank: BankConfig{
			APIURL:  getEnv("BANK_API_URL", ""),
			APIKey:  getEnv("BANK_API_KEY", ""),
			Timeout: getDurationEnv("BANK_API_TIMEOUT", 30*time.Second),
		},
		Recon: ReconConfig{
			RatePerCredit:    getDecimalEnv("RATE_PER_CREDIT", "50.00"),
			MatchTolerance:   getDecimalEnv("MATCH_TOLERANCE", "0.10"),
			MaxOverpayment:   getDecimalEnv("MAX_OVERPAYMENT", "0.20"),
			MaxUnderpayment:  getDecimalEnv("MAX_UNDERPAYMENT", "0.20"),
			ExactDelta:       getDecimalEnv("EXACT_MATCH_DELTA", "1.00"),
			MinDepositAmount: getDecimalEnv("MIN_DEPOSIT_AMOUNT", "10.00"),
			MaxDepositAmount: getDecimalEnv("MAX_DEPOSIT_AMOUNT", "100000.00"),
			AutoApproveScore: getFloatEnv("AUTO_APPROVE_SCORE", 0.8),
			SaneAmountMin:    getDecimalEnv("SANE_AMOUNT_MIN", "50.00"),
			SaneAmountMax:    getDecimalEnv("SANE_AMOUNT_MAX", "5000.00"),
			Currency:         getEnv("CURRENCY", "ZAR"),
		},
		Scheduler: SchedulerConfig{
			Interval: getDurationEnv("RECON_INTERVAL", 5*time.Minute),
			Enabled:  getBoolEnv("RECON_SCHEDULER_ENABLED", true),
		},
		Admin: AdminConfig{
			Email:  getEnv("ADMIN_EMAIL", "finance@prolead.co.za"),
			APIKey: getEnv("ADMIN_API_KEY", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDecimalEnv(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}
