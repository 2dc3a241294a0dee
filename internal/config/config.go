// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port      int    `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	HistoryCapacity          int           `envconfig:"HISTORY_CAPACITY" default:"100" validate:"min=1"`
	ClientBufferSize         int           `envconfig:"CLIENT_BUFFER_SIZE" default:"16" validate:"min=4"`
	WriteTimeout             time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s" validate:"gt=0"`
	SubmitRate               float64       `envconfig:"SUBMIT_RATE" default:"5" validate:"gt=0"`
	SubmitBurst              int           `envconfig:"SUBMIT_BURST" default:"10" validate:"min=1"`
	RejectInvalidSubmissions bool          `envconfig:"REJECT_INVALID_SUBMISSIONS" default:"false"`

	RedisURL      string        `envconfig:"REDIS_URL" validate:"omitempty,url"`
	NotifyTopic   string        `envconfig:"NOTIFY_TOPIC" default:"chat" validate:"required"`
	NotifyTimeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"3s" validate:"gt=0"`

	JournalPath        string        `envconfig:"JOURNAL_PATH"`
	CompactionInterval time.Duration `envconfig:"COMPACTION_INTERVAL" default:"10m" validate:"gt=0"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Address is the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}
