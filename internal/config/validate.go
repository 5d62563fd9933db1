package config

import "fmt"

// Validate checks cross-field consistency beyond what envconfig's tag-level
// parsing enforces.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: IDA_DATABASE_URL is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be > 0, got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: max retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("config: concurrency must be > 0, got %d", c.Concurrency)
	}
	if c.YearFrom > 0 && c.YearTo > 0 && c.YearFrom > c.YearTo {
		return fmt.Errorf("config: year range inverted: %d > %d", c.YearFrom, c.YearTo)
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("config: at least one service is required")
	}
	return nil
}
