// Package logging wraps log/slog with shelfpair's handler construction and
// shared attribute helpers so packages log with consistent field names.
package logging
