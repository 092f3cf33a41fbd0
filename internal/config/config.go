package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	Database  DatabaseConfig
	Log       LogConfig
	Redis     RedisConfig
	Codegen   CodegenConfig
	Labels    LabelConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	LogLevel string // silent, error, warn, info
	Tracing  bool
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string
	Format string // json or text
}

// RedisConfig is optional. An empty Address disables distributed locking.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// CodegenConfig tunes document number allocation
type CodegenConfig struct {
	MaxAttempts int
}

// LabelConfig holds batch label rendering options
type LabelConfig struct {
	QRPrefix string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	nodeEnv := getEnv("NODE_ENV", "development")
	defaultFormat := "text"
	if nodeEnv == "production" {
		defaultFormat = "json"
	}

	return &Config{
		NodeEnv:   nodeEnv,
		Port:      getEnv("PORT", "3210"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "loomtrace"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
			Tracing:  getEnv("DB_TRACING", "false") == "true",
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", defaultFormat),
		},
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Codegen: CodegenConfig{
			MaxAttempts: getEnvInt("CODEGEN_MAX_ATTEMPTS", 3),
		},
		Labels: LabelConfig{
			QRPrefix: getEnv("LABEL_QR_PREFIX", "LOT:"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}
