package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	collection "meter-collector/internal/collection/domain"
	"meter-collector/internal/metering/infrastructure/iammeter"
	"meter-collector/internal/metering/interfaces"
)

const (
	// DriverPostgres stores meters, readings and schedules in Postgres.
	DriverPostgres = "postgres"
	// DriverMemory keeps everything in process memory.
	DriverMemory = "memory"
)

// Vendor configures the IAMMETER client.
type Vendor struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"-"`

	TimeoutValue string `yaml:"timeout"`
}

// Schedule is a collection window as written in YAML.
type Schedule struct {
	StartTime       string `yaml:"start_time"`
	EndTime         string `yaml:"end_time"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

// Collection configures the engine.
type Collection struct {
	Workers   int       `yaml:"workers"`
	Resume    bool      `yaml:"resume"`
	Autostart bool      `yaml:"autostart"`
	Schedule  *Schedule `yaml:"schedule"`
}

// Kafka configures reading event publication. Empty brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Meter is a meter seeded at boot.
type Meter struct {
	Name         string `yaml:"name"`
	SerialNumber string `yaml:"serial_number"`
}

// Config holds process configuration.
type Config struct {
	HTTPAddr    string     `yaml:"http_addr"`
	DatabaseURL string     `yaml:"database_url"`
	StoreDriver string     `yaml:"store_driver"`
	Timezone    string     `yaml:"timezone"`
	Vendor      Vendor     `yaml:"vendor"`
	Collection  Collection `yaml:"collection"`
	Kafka       Kafka      `yaml:"kafka"`
	Meters      []Meter    `yaml:"meters"`

	Location *time.Location `yaml:"-"`
}

// Load builds config from defaults, the optional COLLECTOR_CONFIG yaml file and env overrides.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:    ":8080",
		StoreDriver: DriverPostgres,
		Timezone:    "Local",
		Vendor: Vendor{
			BaseURL: iammeter.DefaultBaseURL,
			Timeout: iammeter.DefaultTimeout,
		},
		Collection: Collection{Workers: 1, Resume: true},
		Kafka:      Kafka{Topic: interfaces.DefaultReadingsTopic},
	}

	if path := os.Getenv("COLLECTOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", cfg.StoreDriver))
	cfg.Timezone = getenvDefault("COLLECTOR_TIMEZONE", cfg.Timezone)
	cfg.Vendor.BaseURL = getenvDefault("IAMMETER_BASE_URL", cfg.Vendor.BaseURL)
	cfg.Vendor.Token = getenvDefault("IAMMETER_TOKEN", cfg.Vendor.Token)
	cfg.Vendor.TimeoutValue = getenvDefault("IAMMETER_TIMEOUT", cfg.Vendor.TimeoutValue)
	cfg.Collection.Workers = getenvIntDefault("COLLECTOR_WORKERS", cfg.Collection.Workers)
	cfg.Collection.Resume = getenvBoolDefault("COLLECTOR_RESUME", cfg.Collection.Resume)
	cfg.Collection.Autostart = getenvBoolDefault("COLLECTOR_AUTOSTART", cfg.Collection.Autostart)
	if brokers := splitCSV(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.Kafka.Brokers = brokers
	}
	cfg.Kafka.Topic = getenvDefault("KAFKA_TOPIC", cfg.Kafka.Topic)

	if err := cfg.finalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) finalize() error {
	if c.Vendor.TimeoutValue != "" {
		timeout, err := time.ParseDuration(c.Vendor.TimeoutValue)
		if err != nil || timeout <= 0 {
			return fmt.Errorf("config: invalid vendor timeout %q", c.Vendor.TimeoutValue)
		}
		c.Vendor.Timeout = timeout
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	c.Location = loc

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}

	if c.Collection.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Collection.Workers)
	}
	if c.Collection.Schedule != nil {
		if _, err := c.Collection.Schedule.Config(); err != nil {
			return fmt.Errorf("config: schedule: %w", err)
		}
	}
	if c.Collection.Autostart && c.Collection.Schedule == nil {
		return errors.New("config: autostart requires collection.schedule")
	}
	for i, meter := range c.Meters {
		if strings.TrimSpace(meter.SerialNumber) == "" {
			return fmt.Errorf("config: meters[%d] has no serial_number", i)
		}
	}
	return nil
}

// RequireVendorToken fails when no IAMMETER token is configured.
func (c Config) RequireVendorToken() error {
	if c.Vendor.Token == "" {
		return errors.New("config: IAMMETER_TOKEN is required")
	}
	return nil
}

// Config converts the YAML schedule to a validated collection schedule.
func (s Schedule) Config() (collection.ScheduleConfig, error) {
	return collection.NewScheduleConfig(s.StartTime, s.EndTime, s.IntervalSeconds)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
