// Package config loads, normalizes, and validates alphareel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ALPHAREEL_FFMPEG and ALPHAREEL_SCRATCH_DIR. Always obtain settings through
// this package so downstream code receives sanitized paths and clear
// validation errors.
package config
