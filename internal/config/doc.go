// Package config loads, normalizes, and validates shelfpair's TOML
// configuration, including the tunable pairing thresholds and job chunking
// settings.
package config
