package model

import "time"

// Shared defaults used by the server, the CLI and the providers.
const (
	DefaultPageLimit   = 10
	MaxPageLimit       = 100
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	DefaultCacheTTL     = 5 * time.Second
	DefaultQueryTimeout = 30 * time.Second
)
