package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse     bool

	// Query is the initial content of the search input.
	Query string

	// RefreshInterval is how often the current query is run again so that
	// entries refreshed in the background show up.
	RefreshInterval time.Duration

	// RenderCacheSize bounds the memory used by rendered descriptions.
	RenderCacheSize int64 `env:"GITLAB_LOOKUP_RENDER_CACHE_SIZE" envDefault:"4194304"`
}
