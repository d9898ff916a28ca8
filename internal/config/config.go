package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth" validate:"required"`
	Scorer      ScorerConfig      `mapstructure:"scorer"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Calibration CalibrationConfig `mapstructure:"calibration" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	// AcquireTimeout bounds how long a request waits for a pooled connection
	// before failing with a retryable error.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" validate:"gt=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	BCryptCost           int    `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// ScorerConfig points at the external recommendation scorer. An empty URL
// disables recommendations.
type ScorerConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// CacheConfig configures the Redis cache for scorer rankings. An empty
// address disables caching.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

// CalibrationConfig schedules the calibration repair sweep.
type CalibrationConfig struct {
	SweepSchedule    string `mapstructure:"sweep_schedule" validate:"required"`
	SweepConcurrency int    `mapstructure:"sweep_concurrency" validate:"gte=1,lte=64"`
}
