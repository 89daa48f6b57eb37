// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents the complete application configuration.
type Config struct {
	WRDS       WRDSConfig       `envconfig:"WRDS"`
	Postgres   PostgresConfig   `envconfig:"POSTGRES"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Server     ServerConfig     `envconfig:"SERVER"`
	Logging    LoggingConfig    `envconfig:"LOG"`
	Pull       PullConfig       `envconfig:"PULL"`
	CDS        CDSConfig        `envconfig:"CDS"`
}

// WRDSConfig holds WRDS PostgreSQL credentials and endpoint.
type WRDSConfig struct {
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	Host     string `envconfig:"HOST" default:"wrds-pgdata.wharton.upenn.edu"`
	Port     int    `envconfig:"PORT" default:"9737"`
	Database string `envconfig:"DATABASE" default:"wrds"`
}

// PostgresConfig holds the pull ledger connection string.
type PostgresConfig struct {
	DSN string `envconfig:"DSN"`
}

// ClickHouseConfig holds the snapshot database connection string.
type ClickHouseConfig struct {
	DSN string `envconfig:"DSN"`
}

// ServerConfig contains HTTP server and scheduler configuration.
type ServerConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	PullInterval    time.Duration `envconfig:"PULL_INTERVAL" default:"24h"`
	DatasetInterval time.Duration `envconfig:"DATASET_INTERVAL" default:"24h"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Pretty bool   `envconfig:"PRETTY" default:"true"`
	File   string `envconfig:"FILE"`
}

// PullConfig controls the snapshot pull jobs.
type PullConfig struct {
	StartDate       string `envconfig:"START_DATE" default:"1925-01-01"`
	EndDate         string `envconfig:"END_DATE" default:"2024-01-01"`
	DelistingPolicy string `envconfig:"DELISTING_POLICY" default:"imputed"`
	BatchSize       int    `envconfig:"BATCH_SIZE" default:"5000"`
}

// CDSConfig controls the CDS portfolio pipeline.
type CDSConfig struct {
	StartDate string `envconfig:"START_DATE" default:"2002-04-01"`
	EndDate   string `envconfig:"END_DATE" default:"2013-03-01"`
	FREDURL   string `envconfig:"FRED_URL"`
	FedURL    string `envconfig:"FED_URL"`
	Output    string `envconfig:"OUTPUT" default:"returns_data.xlsx"`
}

// Load reads the .env file when present, then the environment, under the
// CRSPLAB prefix.
func Load() (*Config, error) {
	LoadEnvFile()

	var cfg Config
	if err := envconfig.Process("CRSPLAB", &cfg); err != nil {
		return nil, fmt.Errorf("loading config from env: %w", err)
	}
	return &cfg, nil
}

// Window parses the pull window dates.
func (c PullConfig) Window() (start, end time.Time, err error) {
	return parseWindow(c.StartDate, c.EndDate)
}

// Window parses the CDS window dates.
func (c CDSConfig) Window() (start, end time.Time, err error) {
	return parseWindow(c.StartDate, c.EndDate)
}

func parseWindow(startDate, endDate string) (start, end time.Time, err error) {
	start, err = time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing start date %q: %w", startDate, err)
	}
	end, err = time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window end %s precedes start %s", endDate, startDate)
	}
	return start, end, nil
}

// LoadEnvFile loads environment variables from a .env file if it exists.
// Existing variables win.
func LoadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
