package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shelfpair/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("SHELFPAIR_CLASSIFIER_API_KEY", "env-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "shelfpair")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.LogDir != filepath.Join(wantData, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Classifier.APIKey != "env-key" {
		t.Fatalf("expected classifier key from env, got %q", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.BaseURL != config.Default().Classifier.BaseURL {
		t.Fatalf("unexpected classifier base url: %q", cfg.Classifier.BaseURL)
	}
	if !cfg.TieBreak.Enabled {
		t.Fatal("expected tie-break enabled by default")
	}
	if cfg.Pairing.AutoPairScore != 3.0 || cfg.Pairing.AutoPairGap != 1.0 {
		t.Fatalf("unexpected auto-pair thresholds: %.2f/%.2f", cfg.Pairing.AutoPairScore, cfg.Pairing.AutoPairGap)
	}
	if cfg.Jobs.ChunkSize != config.Default().Jobs.ChunkSize {
		t.Fatalf("unexpected chunk size: %d", cfg.Jobs.ChunkSize)
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"",
		"[classifier]",
		`api_key = "file-key"`,
		"max_concurrent = 8",
		"",
		"[pairing]",
		"auto_pair_hair_score = 2.4",
		"auto_pair_hair_gap = 0.8",
		"",
		"[jobs]",
		"chunk_size = 10",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != path {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Classifier.APIKey != "file-key" {
		t.Fatalf("unexpected api key %q", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.MaxConcurrent != 8 {
		t.Fatalf("unexpected max_concurrent %d", cfg.Classifier.MaxConcurrent)
	}
	if cfg.Jobs.ChunkSize != 10 {
		t.Fatalf("unexpected chunk size %d", cfg.Jobs.ChunkSize)
	}
	if cfg.Pairing.MaxCandidates != config.Default().Pairing.MaxCandidates {
		t.Fatalf("expected default max_candidates, got %d", cfg.Pairing.MaxCandidates)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[pairing]",
		"auto_pair_score = 0.5",
		"min_candidate_score = 1.0",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for auto_pair_score below min_candidate_score")
	}
}

func TestLoadRejectsUnsupportedLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"verbose\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.level") {
		t.Fatalf("expected logging.level error, got %v", err)
	}
}

func TestTieBreakLLMFallsBackToClassifier(t *testing.T) {
	cfg := config.Default()
	cfg.Classifier.APIKey = "shared-key"
	cfg.Classifier.Model = "vision-model"

	llm := cfg.TieBreakLLM()
	if llm.APIKey != "shared-key" {
		t.Fatalf("expected classifier key fallback, got %q", llm.APIKey)
	}
	if llm.Model != "vision-model" {
		t.Fatalf("expected classifier model fallback, got %q", llm.Model)
	}

	cfg.TieBreak.Model = "judge-model"
	if got := cfg.TieBreakLLM().Model; got != "judge-model" {
		t.Fatalf("expected explicit tiebreak model, got %q", got)
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not validate: %v", err)
	}
}
