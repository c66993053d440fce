package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Backend  BackendConfig  `json:"backend" yaml:"backend"`
	Retry    RetryConfig    `json:"retry" yaml:"retry"`
	Probe    ProbeConfig    `json:"probe" yaml:"probe"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Auth     AuthConfig     `json:"auth" yaml:"auth"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server configuration for the feedback daemon
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	AdminOrigin  string        `json:"admin_origin" yaml:"admin_origin"`
}

// BackendConfig locates the backend the client-side pipeline talks to
type BackendConfig struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	AuthToken   string        `json:"auth_token" yaml:"auth_token"`
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`
}

// RetryConfig contains retry executor defaults
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" yaml:"max_delay"`
	Jitter     bool          `json:"jitter" yaml:"jitter"`
}

// ProbeConfig contains health probe settings
type ProbeConfig struct {
	RequestTimeout    time.Duration `json:"request_timeout" yaml:"request_timeout"`
	CacheTTL          time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	MonitorInterval   time.Duration `json:"monitor_interval" yaml:"monitor_interval"`
	HealthyRatio      float64       `json:"healthy_ratio" yaml:"healthy_ratio"`
	CriticalEndpoints []string      `json:"critical_endpoints" yaml:"critical_endpoints"`
}

// DatabaseConfig contains report store database configuration
type DatabaseConfig struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	Name            string        `json:"name" yaml:"name"`
	User            string        `json:"user" yaml:"user"`
	Password        string        `json:"password" yaml:"password"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	PoolSize int    `json:"pool_size" yaml:"pool_size"`
}

// AuthConfig contains report endpoint authentication configuration
type AuthConfig struct {
	JWTSecret     string        `json:"jwt_secret" yaml:"jwt_secret"`
	JWTExpiration time.Duration `json:"jwt_expiration" yaml:"jwt_expiration"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
}

// Load builds configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			AdminOrigin:  getEnvString("ADMIN_ORIGIN", "https://admin.dominicanews.dm"),
		},
		Backend: BackendConfig{
			BaseURL:     getEnvString("BACKEND_BASE_URL", "http://localhost:8080"),
			AuthToken:   getEnvString("BACKEND_AUTH_TOKEN", ""),
			HTTPTimeout: getEnvDuration("BACKEND_HTTP_TIMEOUT", 15*time.Second),
		},
		Retry: RetryConfig{
			MaxRetries: getEnvInt("RETRY_MAX_RETRIES", 3),
			BaseDelay:  getEnvDuration("RETRY_BASE_DELAY", 1*time.Second),
			MaxDelay:   getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
			Jitter:     getEnvBool("RETRY_JITTER", false),
		},
		Probe: ProbeConfig{
			RequestTimeout:  getEnvDuration("PROBE_REQUEST_TIMEOUT", 15*time.Second),
			CacheTTL:        getEnvDuration("PROBE_CACHE_TTL", 30*time.Second),
			MonitorInterval: getEnvDuration("PROBE_MONITOR_INTERVAL", 60*time.Second),
			HealthyRatio:    getEnvFloat("PROBE_HEALTHY_RATIO", 0.75),
			CriticalEndpoints: getEnvStringSlice("PROBE_CRITICAL_ENDPOINTS", []string{
				"/api/v1/articles",
				"/api/v1/categories",
				"/api/v1/authors",
				"/api/v1/users/me",
			}),
		},
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "dominica_feedback"),
			User:            getEnvString("DB_USER", "dominica"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnvString("JWT_SECRET", ""),
			JWTExpiration: getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays configuration from a YAML file on top of the
// environment defaults. Missing file is an error; callers decide
// whether a config file is required.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system assumes
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry max_retries must not be negative: %d", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base_delay must be positive: %s", c.Retry.BaseDelay)
	}
	if c.Probe.HealthyRatio <= 0 || c.Probe.HealthyRatio > 1 {
		return fmt.Errorf("probe healthy_ratio must be in (0,1]: %f", c.Probe.HealthyRatio)
	}
	if len(c.Probe.CriticalEndpoints) == 0 {
		return fmt.Errorf("probe critical_endpoints must not be empty")
	}
	return nil
}

// DSN builds the Postgres connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

// Addr builds the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
