package querycache

import "time"

// Config holds configuration for a query cache Client.
type Config struct {
	// KeepUnusedFor is how long an entry survives after its last subscriber left.
	// default: 60 * time.Second
	KeepUnusedFor time.Duration `mapstructure:"keep_unused_for"`
	// FetchTimeout bounds every fetch started by the cache.
	// default: 30 * time.Second
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// AbortOnLastUnsubscribe cancels an in-flight fetch when its last subscriber leaves.
	AbortOnLastUnsubscribe bool `mapstructure:"abort_on_last_unsubscribe"`
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		KeepUnusedFor:          60 * time.Second,
		FetchTimeout:           30 * time.Second,
		AbortOnLastUnsubscribe: true,
	}
}

// MergeDefaults returns a copy of c with zero durations replaced by defaults.
func (c *Config) MergeDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	merged := *c
	defaults := DefaultConfig()
	if merged.KeepUnusedFor == 0 {
		merged.KeepUnusedFor = defaults.KeepUnusedFor
	}
	if merged.FetchTimeout == 0 {
		merged.FetchTimeout = defaults.FetchTimeout
	}
	return &merged
}

// Validate checks that all durations are usable.
func (c *Config) Validate() error {
	if c.KeepUnusedFor <= 0 {
		return ErrInvalidKeepUnusedFor(c.KeepUnusedFor)
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout(c.FetchTimeout)
	}
	return nil
}
