package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateTieBreak(); err != nil {
		return err
	}
	if err := c.validatePairing(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateClassifier() error {
	if strings.TrimSpace(c.Classifier.BaseURL) == "" {
		return errors.New("classifier.base_url must be set")
	}
	if strings.TrimSpace(c.Classifier.Model) == "" {
		return errors.New("classifier.model must be set")
	}
	if c.Classifier.MaxConcurrent < 1 {
		return errors.New("classifier.max_concurrent must be at least 1")
	}
	return nil
}

func (c *Config) validateTieBreak() error {
	if !c.TieBreak.Enabled {
		return nil
	}
	if c.TieBreak.MaxAttempts < 1 {
		return errors.New("tiebreak.max_attempts must be at least 1")
	}
	if c.TieBreak.RetryMaxSeconds < c.TieBreak.RetryBaseSeconds {
		return errors.New("tiebreak.retry_max_seconds must be >= tiebreak.retry_base_seconds")
	}
	return nil
}

func (c *Config) validatePairing() error {
	p := c.Pairing
	if p.AutoPairScore < p.MinCandidateScore {
		return fmt.Errorf("pairing.auto_pair_score (%.2f) must be >= pairing.min_candidate_score (%.2f)", p.AutoPairScore, p.MinCandidateScore)
	}
	if p.AutoPairHairScore > p.AutoPairScore {
		return errors.New("pairing.auto_pair_hair_score must not exceed pairing.auto_pair_score")
	}
	if p.AutoPairHairGap > p.AutoPairGap {
		return errors.New("pairing.auto_pair_hair_gap must not exceed pairing.auto_pair_gap")
	}
	if p.MaxCandidates < 2 {
		return errors.New("pairing.max_candidates must be at least 2")
	}
	return nil
}

func (c *Config) validateJobs() error {
	if c.Jobs.ChunkSize < 1 {
		return errors.New("jobs.chunk_size must be at least 1")
	}
	if c.Jobs.MaxChunksPerInvocation < 1 {
		return errors.New("jobs.max_chunks_per_invocation must be at least 1")
	}
	if c.Jobs.ChunkLockTTLSeconds < 1 {
		return errors.New("jobs.chunk_lock_ttl_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "text", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
