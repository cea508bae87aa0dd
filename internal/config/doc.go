// Package config loads the explorer configuration.
//
// # Resolution Order
//
//  1. Built-in defaults (see Default)
//  2. TOML file at the given path, or ~/.config/explorer/config.toml
//  3. EXPLORER_* environment variables, optionally seeded from a .env file
//     via LoadDotEnv
//
// A missing config file is not an error. Blank string values in the file
// keep the default, except log_path where an empty string disables file
// logging. Durations are written as Go duration strings ("30s", "5m").
//
// # Example
//
//	api_base = "https://rickandmortyapi.com"
//	storage = "redis"
//	redis_url = "redis://localhost:6379/0"
//	list_fresh_for = "1m"
//	revalidate_every = "30s"
//	metrics_addr = "127.0.0.1:9464"
//
// The same keys are available as environment variables in upper case with
// the EXPLORER_ prefix, for example EXPLORER_STORAGE=memory.
//
// Tilde paths in data_dir and log_path are expanded to the home directory.
// The resulting Config is validated with struct tags before it is returned.
package config
