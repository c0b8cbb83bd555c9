package orchd

import (
	"os"
	"time"
)

// Default configuration values.
const (
	DefaultMaxEventDepth       = 10
	DefaultAgentHandlerTimeout = 30 * time.Second
	DefaultRecentEventsLimit   = 10
)

// Config holds the bootstrap configuration for a Core/Orchestrator.
type Config struct {
	// DatabaseURL is the Postgres connection string. Falls back to the
	// ORCHD_DATABASE_URL environment variable when empty.
	DatabaseURL string

	// CacheURL optionally configures a cache backend. Empty disables the
	// cache front entirely (orchd/cache.NoOp is used).
	CacheURL string

	// MaxEventDepth bounds the cascading-dispatch recursion depth.
	// Default: 10.
	MaxEventDepth int

	// AgentHandlerTimeout bounds a single AgentImplementation.HandleEvent
	// call. Default: 30s.
	AgentHandlerTimeout time.Duration

	// RecentEventsLimit caps how many recent events are loaded into
	// AgentContext.RecentEvents. Default: 10.
	RecentEventsLimit int

	// Logger receives structured log lines from every component. Nil
	// disables logging.
	Logger Logger
}

// SetDefaults fills zero-valued fields with their defaults, including the
// DatabaseURL environment fallback.
func (c *Config) SetDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("ORCHD_DATABASE_URL")
	}
	if c.MaxEventDepth == 0 {
		c.MaxEventDepth = DefaultMaxEventDepth
	}
	if c.AgentHandlerTimeout == 0 {
		c.AgentHandlerTimeout = DefaultAgentHandlerTimeout
	}
	if c.RecentEventsLimit == 0 {
		c.RecentEventsLimit = DefaultRecentEventsLimit
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return NewOrchdError("Config.Validate", ErrInvalidConfig).
			WithContext("reason", "DatabaseURL is required")
	}
	if c.MaxEventDepth <= 0 {
		return NewOrchdError("Config.Validate", ErrInvalidConfig).
			WithContext("reason", "MaxEventDepth must be positive").
			WithContext("value", c.MaxEventDepth)
	}
	if c.AgentHandlerTimeout <= 0 {
		return NewOrchdError("Config.Validate", ErrInvalidConfig).
			WithContext("reason", "AgentHandlerTimeout must be positive")
	}
	if c.RecentEventsLimit <= 0 {
		return NewOrchdError("Config.Validate", ErrInvalidConfig).
			WithContext("reason", "RecentEventsLimit must be positive")
	}
	return nil
}
