package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	LogLevel        string
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
	ShutdownTimeout time.Duration
	Redis           RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether the presence mirror should connect at all.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// IsProduction reports whether the process runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	// Parse allowed origins (comma-separated)
	origins := splitCSV(getEnv("ALLOWED_ORIGINS", "*"))

	env := getEnv("ENVIRONMENT", "development")
	defaultLevel := "debug"
	if env == "production" {
		defaultLevel = "info"
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		LogLevel:       getEnv("LOG_LEVEL", defaultLevel),
		AllowedOrigins: origins,
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
	}

	var err error
	if cfg.SendBuffer, err = getEnvInt("SEND_BUFFER", 256); err != nil {
		return nil, err
	}
	maxBytes, err := getEnvInt("MAX_MESSAGE_BYTES", 64*1024)
	if err != nil {
		return nil, err
	}
	cfg.MaxMessageBytes = int64(maxBytes)
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.Redis.TTL, err = getEnvDuration("PRESENCE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that may also be set by command line flags.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if c.MaxMessageBytes < 1 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return i, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
