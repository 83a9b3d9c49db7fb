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
	Check    CheckConfig
	Vault    VaultConfig
	Notify   NotifyConfig
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
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// CheckConfig holds the verification pipeline tuning knobs
type CheckConfig struct {
	LookupBaseURL     string
	LookupTimeout     time.Duration
	DailyKeyQuota     int
	KeyFailThreshold  int
	Phase1Delay       time.Duration
	Phase2Delay       time.Duration
	CooldownThreshold int
	CooldownBase      time.Duration
	CooldownMax       time.Duration
	SchedulerInterval time.Duration
	RenderTimeout     time.Duration
	OwnerConcurrency  int
	SnapshotDir       string
	ProxyStrategy     string // "priority" or "adaptive"
	TrustDeepVerify   bool   // deep false overrides lookup true
}

type VaultConfig struct {
	Key string // empty disables encryption (passthrough)
}

type NotifyConfig struct {
	Driver      string // "ses" or "log"
	AWSRegion   string
	FromAddress string
}

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
			Name:              getEnv("DB_NAME", "instachecker"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:   jwtSecret,
			TokenExpiry: getEnvAsDuration("TOKEN_EXPIRY", 24*time.Hour),
		},
		Check: CheckConfig{
			LookupBaseURL:     getEnv("LOOKUP_BASE_URL", "https://lookup.example.com/v1"),
			LookupTimeout:     getEnvAsDuration("LOOKUP_TIMEOUT", 15*time.Second),
			DailyKeyQuota:     getEnvAsInt("LOOKUP_DAILY_QUOTA", 100),
			KeyFailThreshold:  getEnvAsInt("LOOKUP_KEY_FAIL_THRESHOLD", 3),
			Phase1Delay:       getEnvAsDuration("CHECK_PHASE1_DELAY", 2*time.Second),
			Phase2Delay:       getEnvAsDuration("CHECK_PHASE2_DELAY", 15*time.Second),
			CooldownThreshold: getEnvAsInt("PROXY_COOLDOWN_THRESHOLD", 5),
			CooldownBase:      getEnvAsDuration("PROXY_COOLDOWN_DURATION", 10*time.Minute),
			CooldownMax:       getEnvAsDuration("PROXY_COOLDOWN_MAX", 4*time.Hour),
			SchedulerInterval: getEnvAsDuration("SCHEDULER_INTERVAL", 30*time.Minute),
			RenderTimeout:     getEnvAsDuration("RENDER_TIMEOUT", 45*time.Second),
			OwnerConcurrency:  getEnvAsInt("OWNER_CONCURRENCY", 8),
			SnapshotDir:       getEnv("SNAPSHOT_DIR", os.TempDir()),
			ProxyStrategy:     getEnv("PROXY_STRATEGY", "adaptive"),
			TrustDeepVerify:   getEnvAsBool("CHECK_TRUST_DEEP_VERIFY", true),
		},
		Vault: VaultConfig{
			Key: getEnv("VAULT_KEY", ""),
		},
		Notify: NotifyConfig{
			Driver:      getEnv("NOTIFY_DRIVER", "log"),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("NOTIFY_FROM_ADDRESS", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Check.validate(); err != nil {
		return nil, err
	}

	if cfg.Notify.Driver == "ses" && cfg.Notify.FromAddress == "" {
		return nil, fmt.Errorf("NOTIFY_FROM_ADDRESS is required when NOTIFY_DRIVER=ses")
	}

	return cfg, nil
}

func (c CheckConfig) validate() error {
	if c.DailyKeyQuota <= 0 {
		return fmt.Errorf("LOOKUP_DAILY_QUOTA must be positive")
	}
	if c.CooldownThreshold <= 0 {
		return fmt.Errorf("PROXY_COOLDOWN_THRESHOLD must be positive")
	}
	if c.OwnerConcurrency <= 0 {
		return fmt.Errorf("OWNER_CONCURRENCY must be positive")
	}
	if c.Phase2Delay < c.Phase1Delay {
		return fmt.Errorf("CHECK_PHASE2_DELAY must not be shorter than CHECK_PHASE1_DELAY")
	}
	if c.ProxyStrategy != "priority" && c.ProxyStrategy != "adaptive" {
		return fmt.Errorf("PROXY_STRATEGY must be priority or adaptive")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
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

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
