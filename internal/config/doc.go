// Package config loads, normalizes, and validates reviewgate configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REVIEWGATE_MAILBOX_DIR and HF_TOKEN. The Config type centralizes every knob
// the daemon and CLI need: where the shared mailbox lives, how often waiters
// poll, how long each request kind may wait, and how the speech watcher
// reaches WhisperX.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
