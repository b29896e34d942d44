// Package config loads runtime settings and the ticker universe.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every settings variable. Keys also resolve without it.
const EnvPrefix = "ETL"

// Settings is the runtime configuration of one ETL run.
type Settings struct {
	APIKey      string        `envconfig:"ALPHAVANTAGE_API_KEY"`
	BaseURL     string        `envconfig:"ALPHAVANTAGE_BASE_URL" default:"https://www.alphavantage.co/query" validate:"required,url"`
	Timeout     time.Duration `envconfig:"ALPHAVANTAGE_TIMEOUT" default:"10s" validate:"gt=0"`
	MinInterval time.Duration `envconfig:"ALPHAVANTAGE_MIN_INTERVAL" default:"15s" validate:"gte=0"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=1"`
	Backoff     time.Duration `envconfig:"BACKOFF" default:"20s" validate:"gte=0"`

	OutputDir        string `envconfig:"OUTPUT_DIR" default:"data" validate:"required"`
	DocsDataDir      string `envconfig:"DOCS_DATA_DIR" default:"docs/data"`
	RawDataDir       string `envconfig:"RAW_DATA_DIR" default:"data/raw" validate:"required"`
	TickerConfigPath string `envconfig:"TICKER_CONFIG_PATH" default:"config/tickers.yaml" validate:"required"`
	Workbook         bool   `envconfig:"WORKBOOK" default:"false"`

	DedupPolicy string `envconfig:"DEDUP_POLICY" default:"last_ingested" validate:"oneof=last_ingested first_ingested last_source"`
	Workers     int    `envconfig:"WORKERS" default:"4" validate:"min=1,max=64"`
	SourceName  string `envconfig:"SOURCE_NAME" default:"AlphaVantage" validate:"required"`

	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	ClickHouseDSN string `envconfig:"CLICKHOUSE_DSN"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" validate:"omitempty,hostname_port"`
}

var validate = validator.New()

// LoadSettings reads envFile (if it exists) into the environment without
// overriding variables already set, then populates Settings from it.
func LoadSettings(envFile string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var s Settings
	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return nil, fmt.Errorf("load settings from env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks field constraints.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}
	return nil
}

// RequireAPIKey fails when no API key is configured.
func (s *Settings) RequireAPIKey() error {
	if s.APIKey == "" {
		return errors.New("ALPHAVANTAGE_API_KEY is not set")
	}
	return nil
}
