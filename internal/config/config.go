package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
}

type DatabaseConfig struct {
	Type string // "postgres" or "sqlite"

	// Postgres settings
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

	// SQLite settings
	SQLitePath string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	SessionTTL              time.Duration
	SlidingExpiry           bool
	MaxLoginAttempts        int
	AccountLockoutDuration  time.Duration
	AddressLockoutDuration  time.Duration
	MinPasswordLength       int
	AdminUsername           string
	AdminPassword           string
	SweepInterval           time.Duration // 0 disables the background sweep
	LoginRequestsPerMinute  int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Type:              strings.ToLower(getEnv("DB_TYPE", "sqlite")),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "qnachat"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			SQLitePath:        getEnv("SQLITE_PATH", "db/qnachat.db"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: parseTrustedProxies(),
		},
		Auth: AuthConfig{
			SessionTTL:             getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			SlidingExpiry:          getEnvAsBool("SESSION_SLIDING", true),
			MaxLoginAttempts:       getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			AccountLockoutDuration: getEnvAsDuration("ACCOUNT_LOCKOUT_DURATION", 15*time.Minute),
			AddressLockoutDuration: getEnvAsDuration("ADDRESS_LOCKOUT_DURATION", 15*time.Minute),
			MinPasswordLength:      getEnvAsInt("MIN_PASSWORD_LENGTH", 8),
			AdminUsername:          getEnv("ADMIN_USERNAME", "admin"),
			AdminPassword:          getEnv("ADMIN_PASSWORD", ""),
			SweepInterval:          getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
			LoginRequestsPerMinute: getEnvAsInt("LOGIN_REQUESTS_PER_MINUTE", 10),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Type {
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for postgres")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE: %s", c.Database.Type)
	}

	if c.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 1")
	}

	// Production refuses a missing or throwaway admin bootstrap password
	if c.Server.Env == "production" && c.Auth.AdminPassword != "" {
		if len(c.Auth.AdminPassword) < c.Auth.MinPasswordLength {
			return fmt.Errorf("ADMIN_PASSWORD shorter than MIN_PASSWORD_LENGTH")
		}
		weak := []string{"admin", "password", "changeme", "admin@123"}
		for _, w := range weak {
			if strings.EqualFold(c.Auth.AdminPassword, w) {
				return fmt.Errorf("ADMIN_PASSWORD cannot be a common weak value")
			}
		}
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

func parseTrustedProxies() []string {
	raw := getEnv("TRUSTED_PROXIES", "")
	if raw == "" {
		return nil
	}
	proxies := strings.Split(raw, ",")
	for i, p := range proxies {
		proxies[i] = strings.TrimSpace(p)
	}
	return proxies
}
