// Package config loads, normalizes, and validates captioner configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// CAPTIONER_LLM_API_KEY and CAPTIONER_REDIS_ADDR. The Config type centralizes
// every knob the daemon and CLI need so storage directories, render limits,
// and worker pool sizing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
