package testsupport

import (
	"path/filepath"
	"testing"

	"shelfpair/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Classifier.APIKey = "test"
	cfg.Jobs.ChunkSize = 2
	cfg.Jobs.MaxChunksPerInvocation = 2

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithChunkSize overrides the job chunk size on the test config.
func WithChunkSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Jobs.ChunkSize = size
	}
}

// WithMaxChunks overrides how many chunks one invocation may claim.
func WithMaxChunks(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Jobs.MaxChunksPerInvocation = n
	}
}
