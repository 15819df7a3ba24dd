// Package normalize derives comparable brand, size, packaging, and category
// fields from raw classifier output.
package normalize
