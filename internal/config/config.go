// Package config loads runtime configuration from IDA_*-prefixed environment
// variables. Everything operational (connection string, batch size, retry
// budget, concurrency, metrics endpoints) lives here; the indicator domain
// tables (variable codes, provider aliases) are code, not configuration.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration.
type Config struct {
	// Storage.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Schema      string `envconfig:"SCHEMA" default:"ida"`
	StorageKind string `envconfig:"STORAGE_KIND" default:"postgres"`

	// Catalog discovery. APIKey is the personal dados.gov.br key; the portal
	// throttles anonymous access hard.
	APIKey         string `envconfig:"API_KEY"`
	CatalogBaseURL string `envconfig:"CATALOG_BASE_URL"`
	DatasetID      string `envconfig:"DATASET_ID"`

	// Resource selection.
	Services []string `envconfig:"SERVICES" default:"SMP,STFC,SCM"`
	YearFrom int      `envconfig:"YEAR_FROM" default:"2017"`
	YearTo   int      `envconfig:"YEAR_TO" default:"2019"`

	// Pipeline tuning.
	BatchSize   int           `envconfig:"BATCH_SIZE" default:"1000"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" default:"3"`
	Concurrency int           `envconfig:"CONCURRENCY" default:"3"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"120s"`

	// Metrics backends; both optional.
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	DogstatsdAddr  string `envconfig:"DOGSTATSD_ADDR"`
}

// Load reads and validates the configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("ida", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
