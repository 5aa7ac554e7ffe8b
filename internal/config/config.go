package config

import (
	"fmt"
	"time"
)

type DB struct {
	Host string `envconfig:"DB_HOST" validate:"required"`
	Port uint64 `envconfig:"DB_PORT" validate:"required"`

	UserName string `envconfig:"DB_USER_NAME" validate:"required"`
	Password string `envconfig:"DB_PASSWORD" validate:"required"`
	DataBase string `envconfig:"DB_NAME" validate:"required"`
}

// Metrics ...
type Metrics struct {
	Port      string `envconfig:"METRICS_PORT" default:"9090"`
	Namespace string `envconfig:"METRICS_NAMESPACE" default:"deadliner"`
	Subsystem string `envconfig:"METRICS_SUBSYSTEM" default:"reminders"`
}

type Server struct {
	Port           string        `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"300s"`
	ReadBufferSize int           `envconfig:"READ_BUFFER_SIZE" default:"16384"`
}

// Sweep configures the due-reminder processor and its triggers.
type Sweep struct {
	// CronSecret authorizes the external HTTP trigger.
	CronSecret string `envconfig:"CRON_SECRET" validate:"required"`
	// CronSpec drives the in-process trigger; empty disables it.
	CronSpec      string        `envconfig:"SWEEP_CRON" default:"@every 2m"`
	Horizon       time.Duration `envconfig:"SWEEP_HORIZON" default:"5m"`
	MaxConcurrent int64         `envconfig:"SWEEP_MAX_CONCURRENT" default:"4"`
}

func (d DB) Address() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

type Config struct {
	DB      DB
	Metrics Metrics
	Server  Server
	Sweep   Sweep
}
