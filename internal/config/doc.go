// Package config loads, normalizes, and validates ytarchive configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_API_KEY and YTARCHIVE_MYSQL_DSN. The Config type centralizes every
// knob the pipeline and CLI need, so callers should pass a loaded *Config
// rather than reading environment variables directly.
package config
