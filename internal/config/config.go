package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Classifier contains connection settings for the vision classification model.
type Classifier struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// MaxConcurrent caps in-flight classification calls process-wide,
	// independent of chunk parallelism.
	MaxConcurrent int `toml:"max_concurrent"`
	// MaxImageEdge bounds the longest image edge before upload; larger
	// images are downscaled.
	MaxImageEdge int `toml:"max_image_edge"`
}

// TieBreak contains settings for the LLM tie-break judge. Connection fields
// fall back to [classifier] when empty.
type TieBreak struct {
	Enabled           bool   `toml:"enabled"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	RetryBaseSeconds  int    `toml:"retry_base_seconds"`
	RetryMaxSeconds   int    `toml:"retry_max_seconds"`
	MaxCandidateChars int    `toml:"max_candidate_chars"`
}

// Pairing contains the tunable thresholds for the candidate scorer and
// decision engine.
type Pairing struct {
	AutoPairScore     float64 `toml:"auto_pair_score"`
	AutoPairGap       float64 `toml:"auto_pair_gap"`
	AutoPairHairScore float64 `toml:"auto_pair_hair_score"`
	AutoPairHairGap   float64 `toml:"auto_pair_hair_gap"`
	MinCandidateScore float64 `toml:"min_candidate_score"`
	MaxCandidates     int     `toml:"max_candidates"`
	// MaxExtras caps attached extra shots per pair; zero disables extras.
	MaxExtras     int     `toml:"max_extras"`
	MinExtraScore float64 `toml:"min_extra_score"`
	// BuildBudgetSeconds bounds total candidate-building wall-clock time per
	// batch; remaining fronts become singletons when exceeded.
	BuildBudgetSeconds int `toml:"build_budget_seconds"`
	// GenericBackRatio flags a back image matched by at least this many
	// fronts as a suspected generic panel.
	GenericBackRatio int `toml:"generic_back_ratio"`
}

// Jobs contains chunking and retention settings for pairing jobs.
type Jobs struct {
	ChunkSize              int `toml:"chunk_size"`
	MaxChunksPerInvocation int `toml:"max_chunks_per_invocation"`
	ChunkLockTTLSeconds    int `toml:"chunk_lock_ttl_seconds"`
	JobTTLHours            int `toml:"job_ttl_hours"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for shelfpair.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Classifier: vision model connection and concurrency limits
//   - TieBreak: LLM judge connection and retry policy
//   - Pairing: scorer thresholds and guardrails
//   - Jobs: chunk sizing, lock TTL, and job retention
//   - Logging: log level and format
type Config struct {
	Paths      Paths      `toml:"paths"`
	Classifier Classifier `toml:"classifier"`
	TieBreak   TieBreak   `toml:"tiebreak"`
	Pairing    Pairing    `toml:"pairing"`
	Jobs       Jobs       `toml:"jobs"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shelfpair/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shelfpair.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for job processing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common LLM connection settings used across features.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// ClassifierLLM returns the connection settings for the vision classifier.
func (c *Config) ClassifierLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.Classifier.APIKey),
		BaseURL:        strings.TrimSpace(c.Classifier.BaseURL),
		Model:          strings.TrimSpace(c.Classifier.Model),
		TimeoutSeconds: c.Classifier.TimeoutSeconds,
	}
}

// TieBreakLLM returns the LLM settings for the tie-break judge.
// Falls back to [classifier] settings when not explicitly configured.
func (c *Config) TieBreakLLM() LLMConfig {
	cfg := LLMConfig{
		APIKey:         strings.TrimSpace(c.TieBreak.APIKey),
		BaseURL:        strings.TrimSpace(c.TieBreak.BaseURL),
		Model:          strings.TrimSpace(c.TieBreak.Model),
		TimeoutSeconds: c.TieBreak.TimeoutSeconds,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(c.Classifier.APIKey)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = strings.TrimSpace(c.Classifier.BaseURL)
	}
	if cfg.Model == "" {
		cfg.Model = strings.TrimSpace(c.Classifier.Model)
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = c.Classifier.TimeoutSeconds
	}
	return cfg
}
