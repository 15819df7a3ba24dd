package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClassifier()
	c.normalizeTieBreak()
	c.normalizePairing()
	c.normalizeJobs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeClassifier() {
	if c.Classifier.APIKey == "" {
		c.Classifier.APIKey = strings.TrimSpace(os.Getenv("SHELFPAIR_CLASSIFIER_API_KEY"))
	}
	if strings.TrimSpace(c.Classifier.BaseURL) == "" {
		c.Classifier.BaseURL = defaultClassifierBaseURL
	}
	if strings.TrimSpace(c.Classifier.Model) == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	if c.Classifier.TimeoutSeconds <= 0 {
		c.Classifier.TimeoutSeconds = defaultClassifierTimeoutSeconds
	}
	if c.Classifier.MaxConcurrent <= 0 {
		c.Classifier.MaxConcurrent = defaultClassifierMaxConcurrent
	}
	if c.Classifier.MaxImageEdge <= 0 {
		c.Classifier.MaxImageEdge = defaultClassifierMaxImageEdge
	}
}

func (c *Config) normalizeTieBreak() {
	if c.TieBreak.APIKey == "" {
		c.TieBreak.APIKey = strings.TrimSpace(os.Getenv("SHELFPAIR_TIEBREAK_API_KEY"))
	}
	if c.TieBreak.MaxAttempts <= 0 {
		c.TieBreak.MaxAttempts = defaultTieBreakMaxAttempts
	}
	if c.TieBreak.RetryBaseSeconds <= 0 {
		c.TieBreak.RetryBaseSeconds = defaultTieBreakRetryBaseSeconds
	}
	if c.TieBreak.RetryMaxSeconds <= 0 {
		c.TieBreak.RetryMaxSeconds = defaultTieBreakRetryMaxSeconds
	}
	if c.TieBreak.MaxCandidateChars <= 0 {
		c.TieBreak.MaxCandidateChars = defaultTieBreakMaxCandidateChars
	}
}

func (c *Config) normalizePairing() {
	if c.Pairing.AutoPairScore <= 0 {
		c.Pairing.AutoPairScore = defaultAutoPairScore
	}
	if c.Pairing.AutoPairGap <= 0 {
		c.Pairing.AutoPairGap = defaultAutoPairGap
	}
	if c.Pairing.AutoPairHairScore <= 0 {
		c.Pairing.AutoPairHairScore = defaultAutoPairHairScore
	}
	if c.Pairing.AutoPairHairGap <= 0 {
		c.Pairing.AutoPairHairGap = defaultAutoPairHairGap
	}
	if c.Pairing.MinCandidateScore <= 0 {
		c.Pairing.MinCandidateScore = defaultMinCandidateScore
	}
	if c.Pairing.MaxCandidates <= 0 {
		c.Pairing.MaxCandidates = defaultMaxCandidates
	}
	if c.Pairing.MaxExtras < 0 {
		c.Pairing.MaxExtras = defaultMaxExtras
	}
	if c.Pairing.MinExtraScore <= 0 {
		c.Pairing.MinExtraScore = defaultMinExtraScore
	}
	if c.Pairing.BuildBudgetSeconds <= 0 {
		c.Pairing.BuildBudgetSeconds = defaultBuildBudget
	}
	if c.Pairing.GenericBackRatio <= 0 {
		c.Pairing.GenericBackRatio = defaultGenericBackRatio
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.ChunkSize <= 0 {
		c.Jobs.ChunkSize = defaultChunkSize
	}
	if c.Jobs.MaxChunksPerInvocation <= 0 {
		c.Jobs.MaxChunksPerInvocation = defaultMaxChunksPerInvocation
	}
	if c.Jobs.ChunkLockTTLSeconds <= 0 {
		c.Jobs.ChunkLockTTLSeconds = defaultChunkLockTTLSeconds
	}
	if c.Jobs.JobTTLHours <= 0 {
		c.Jobs.JobTTLHours = defaultJobTTLHours
	}
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
}
