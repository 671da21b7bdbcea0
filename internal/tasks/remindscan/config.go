// internal/tasks/remindscan/config.go
package remindscan

// Config holds the scanner task configuration.
type Config struct {
	// DefaultTimezone is used when an agent has no timezone or an invalid
	// one.
	DefaultTimezone string
}

func (c *Config) timezone() string {
	if c == nil || c.DefaultTimezone == "" {
		return "America/New_York"
	}
	return c.DefaultTimezone
}
