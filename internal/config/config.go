package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	DB        DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	App       AppConfig
	Logger    LoggerConfig
}

// DatabaseConfig holds configuration for the database
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds configuration for the user cache and the rate limiters.
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	CacheTTL    time.Duration
}

// RateLimitConfig is shared by the gRPC and HTTP limiters.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	WindowSeconds     int
	BurstCapacity     int
}

// AppConfig holds configuration for the application server
type AppConfig struct {
	Env             string
	GRPCPort        string
	HTTPPort        string
	ShutdownTimeout time.Duration
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level            string
	Format           string
	OutputPath       string
	SlowQuerySeconds float64
	EnableSampling   bool
	ServiceName      string
	ServiceVersion   string
}

// LoadConfig reads configuration from <path>/app.env and the environment.
// Environment variables win over the file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// APP_ENV picks the logger defaults, so it has to be known first
	setDefaults(v, v.GetString("APP_ENV"))

	cfg := &Config{
		DB: DatabaseConfig{
			Driver:          v.GetString("DB_DRIVER"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			SQLitePath:      v.GetString("DB_SQLITE_PATH"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Enabled:     v.GetBool("REDIS_ENABLED"),
			Host:        v.GetString("REDIS_HOST"),
			Port:        v.GetString("REDIS_PORT"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			MaxRetries:  v.GetInt("REDIS_MAX_RETRIES"),
			PoolSize:    v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConn: v.GetInt("REDIS_MIN_IDLE_CONN"),
			CacheTTL:    v.GetDuration("REDIS_CACHE_TTL"),
		},
		RateLimit: RateLimitConfig{
			Enabled:           v.GetBool("RATE_LIMIT_ENABLED"),
			RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			WindowSeconds:     v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			BurstCapacity:     v.GetInt("RATE_LIMIT_BURST"),
		},
		App: AppConfig{
			Env:             v.GetString("APP_ENV"),
			GRPCPort:        v.GetString("GRPC_PORT"),
			HTTPPort:        v.GetString("HTTP_PORT"),
			ShutdownTimeout: time.Duration(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Logger: LoggerConfig{
			Level:            v.GetString("LOG_LEVEL"),
			Format:           v.GetString("LOG_FORMAT"),
			OutputPath:       v.GetString("LOG_OUTPUT_PATH"),
			SlowQuerySeconds: v.GetFloat64("LOG_SLOW_QUERY_SECONDS"),
			EnableSampling:   v.GetBool("LOG_ENABLE_SAMPLING"),
			ServiceName:      v.GetString("SERVICE_NAME"),
			ServiceVersion:   v.GetString("SERVICE_VERSION"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "user_records")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "user_records.db")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONN", 2)
	v.SetDefault("REDIS_CACHE_TTL", "5m")

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)

	if env == "production" {
		v.SetDefault("LOG_LEVEL", "info")
		v.SetDefault("LOG_FORMAT", "json")
		v.SetDefault("LOG_ENABLE_SAMPLING", true)
	} else {
		v.SetDefault("LOG_LEVEL", "debug")
		v.SetDefault("LOG_FORMAT", "console")
		v.SetDefault("LOG_ENABLE_SAMPLING", false)
	}
	v.SetDefault("LOG_OUTPUT_PATH", "stdout")
	v.SetDefault("LOG_SLOW_QUERY_SECONDS", 0.2)
	v.SetDefault("SERVICE_NAME", "user-record-service")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.DB.SQLitePath == "" {
			return errors.New("DB_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}

	if c.DB.MaxOpenConns < 0 || c.DB.MaxIdleConns < 0 {
		return errors.New("database pool sizes must not be negative")
	}
	if c.DB.MaxOpenConns > 0 && c.DB.MaxIdleConns > c.DB.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) exceeds DB_MAX_OPEN_CONNS (%d)", c.DB.MaxIdleConns, c.DB.MaxOpenConns)
	}

	for name, port := range map[string]string{"GRPC_PORT": c.App.GRPCPort, "HTTP_PORT": c.App.HTTPPort} {
		if err := validatePort(port); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.App.GRPCPort == c.App.HTTPPort {
		return errors.New("GRPC_PORT and HTTP_PORT must differ")
	}

	if c.Redis.Enabled {
		if err := validatePort(c.Redis.Port); err != nil {
			return fmt.Errorf("REDIS_PORT: %w", err)
		}
		if c.Redis.CacheTTL <= 0 {
			return errors.New("REDIS_CACHE_TTL must be positive")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return errors.New("RATE_LIMIT_RPS must be positive")
		}
		if c.RateLimit.WindowSeconds <= 0 {
			return errors.New("RATE_LIMIT_WINDOW_SECONDS must be positive")
		}
		if c.RateLimit.BurstCapacity <= 0 {
			return errors.New("RATE_LIMIT_BURST must be positive")
		}
	}

	return nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// DSN returns the PostgreSQL Data Source Name
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}
