// Package config loads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverBadger   = "badger"

	defaultDatabaseDSN = "host=localhost user=user password=password dbname=duochatdb port=5432 sslmode=disable"
)

var ErrFriendGraphUnavailable = errors.New("friendship enforcement requires the postgres storage driver")

// Config holds everything the server needs at start-up.
type Config struct {
	Port            int           `env:"PORT,default=3000" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`

	StorageDriver string `env:"STORAGE_DRIVER,default=postgres" validate:"oneof=postgres badger"`
	DatabaseDSN   string `env:"DATABASE_DSN"`
	BadgerPath    string `env:"BADGER_PATH,default=./data/messages"`

	// RedisAddr is optional. When empty the server runs as a single process.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0" validate:"min=0"`

	JWTSecret         string `env:"JWT_SECRET,required=true" validate:"required"`
	EncryptionKey     string `env:"ENCRYPTION_KEY"`
	EnforceFriendship bool   `env:"ENFORCE_FRIENDSHIP,default=true"`

	LogLevel  string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	LogFormat string `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("No .env file loaded")
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = defaultDatabaseDSN
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.EnforceFriendship && c.StorageDriver != StorageDriverPostgres {
		return ErrFriendGraphUnavailable
	}
	return nil
}

// UsesRedis reports whether cross-process fan-out is enabled.
func (c Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

// ConfigureLogging applies the configured level and formatter to the standard logrus logger.
func (c Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logrus.SetLevel(level)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
