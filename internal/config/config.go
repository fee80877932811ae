package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Environment string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Storage     StorageConfig
	RateLimit   RateLimitConfig
	Players     PlayersConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                    int
	ReadTimeoutSeconds      int
	WriteTimeoutSeconds     int
	IdleTimeoutSeconds      int
	GracefulShutdownSeconds int
	CORSOrigins             []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
}

// StorageConfig holds S3 object storage configuration
type StorageConfig struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	SignedURLTTL    time.Duration
	MaxFileMB       int
}

// RateLimitConfig holds the global per-IP request budget
type RateLimitConfig struct {
	Points int
	Window time.Duration
}

// PlayersConfig holds session heartbeat settings
type PlayersConfig struct {
	OnlineThreshold time.Duration
	SweepInterval   time.Duration
}

const minSecretLength = 32

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:                    getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeoutSeconds:      getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeoutSeconds:     getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeoutSeconds:      getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			GracefulShutdownSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30),
			CORSOrigins:             getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "signage"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			AccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
			RefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
			AccessTTL:     getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getEnvAsDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			BcryptCost:    getEnvAsInt("BCRYPT_COST", 10),
		},
		Storage: StorageConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PathStyle:       getEnvAsBool("AWS_S3_PATH_STYLE", false),
			SignedURLTTL:    getEnvAsDuration("SIGNED_URL_TTL", 7*24*time.Hour),
			MaxFileMB:       getEnvAsInt("MAX_FILE_MB", 100),
		},
		RateLimit: RateLimitConfig{
			Points: getEnvAsInt("RATE_LIMIT_POINTS", 1000),
			Window: getEnvAsDuration("RATE_LIMIT_WINDOW", time.Hour),
		},
		Players: PlayersConfig{
			OnlineThreshold: getEnvAsDuration("PLAYER_ONLINE_THRESHOLD", 5*time.Minute),
			SweepInterval:   getEnvAsDuration("PLAYER_SWEEP_INTERVAL", time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Auth.AccessSecret) < minSecretLength {
		return fmt.Errorf("JWT_ACCESS_SECRET must be at least %d characters", minSecretLength)
	}
	if len(c.Auth.RefreshSecret) < minSecretLength {
		return fmt.Errorf("JWT_REFRESH_SECRET must be at least %d characters", minSecretLength)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("AWS_S3_BUCKET is required")
	}
	if c.Players.OnlineThreshold <= 0 {
		return fmt.Errorf("PLAYER_ONLINE_THRESHOLD must be positive")
	}
	if c.RateLimit.Points <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit points and window must be positive")
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("15m") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
