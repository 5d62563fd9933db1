package config

import (
	"testing"
	"time"
)

// Load reads the process environment, so these tests use t.Setenv and must
// not run in parallel.

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("IDA_DATABASE_URL", "postgres://user:pw@localhost:5432/ida")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Schema != "ida" || cfg.StorageKind != "postgres" {
		t.Errorf("storage defaults = %s/%s", cfg.Schema, cfg.StorageKind)
	}
	if cfg.BatchSize != 1000 || cfg.MaxRetries != 3 || cfg.Concurrency != 3 {
		t.Errorf("tuning defaults = %d/%d/%d", cfg.BatchSize, cfg.MaxRetries, cfg.Concurrency)
	}
	if cfg.HTTPTimeout != 120*time.Second {
		t.Errorf("HTTPTimeout = %s", cfg.HTTPTimeout)
	}
	if len(cfg.Services) != 3 || cfg.Services[0] != "SMP" {
		t.Errorf("Services = %v", cfg.Services)
	}
	if cfg.YearFrom != 2017 || cfg.YearTo != 2019 {
		t.Errorf("years = %d..%d", cfg.YearFrom, cfg.YearTo)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("IDA_BATCH_SIZE", "250")
	t.Setenv("IDA_SERVICES", "SMP")
	t.Setenv("IDA_YEAR_FROM", "2018")
	t.Setenv("IDA_YEAR_TO", "2018")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize != 250 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if len(cfg.Services) != 1 || cfg.Services[0] != "SMP" {
		t.Errorf("Services = %v", cfg.Services)
	}
	if cfg.YearFrom != 2018 || cfg.YearTo != 2018 {
		t.Errorf("years = %d..%d", cfg.YearFrom, cfg.YearTo)
	}
}

func TestLoadMissingDatabaseURL(t *testing.T) {
	t.Setenv("IDA_DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without a database URL")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		DatabaseURL: "postgres://x",
		BatchSize:   1,
		Concurrency: 1,
		Services:    []string{"SMP"},
		YearFrom:    2017,
		YearTo:      2019,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"inverted years", func(c *Config) { c.YearFrom = 2020; c.YearTo = 2017 }},
		{"no services", func(c *Config) { c.Services = nil }},
	}
	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted invalid config", tc.name)
		}
	}
}
