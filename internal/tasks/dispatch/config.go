// internal/tasks/dispatch/config.go
package dispatch

import "time"

// Config holds the dispatcher task configuration.
type Config struct {
	// BatchSize caps the rows processed per pass.
	BatchSize int
	// MaxRetries is the attempt count after which a row is marked failed.
	MaxRetries int
	// StaleAfter bounds how long a row may sit in sending before a crash
	// is assumed and the row is requeued.
	StaleAfter time.Duration
}

func (c *Config) batchSize() int {
	if c == nil || c.BatchSize <= 0 {
		return 50
	}
	return c.BatchSize
}

func (c *Config) maxRetries() int {
	if c == nil || c.MaxRetries <= 0 {
		return 5
	}
	return c.MaxRetries
}

func (c *Config) staleAfter() time.Duration {
	if c == nil || c.StaleAfter <= 0 {
		return 30 * time.Minute
	}
	return c.StaleAfter
}
