package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"shelfpair/internal/config"
	"shelfpair/internal/images"
	"shelfpair/internal/insight"
	"shelfpair/internal/jobs"
	"shelfpair/internal/logging"
	"shelfpair/internal/pairing"
	"shelfpair/internal/services/llm"
	"shelfpair/internal/tiebreak"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		// Secrets may live in a local .env file; missing files are fine.
		_ = godotenv.Load()

		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runtime bundles the collaborators one command invocation needs. The store
// lock is held for the duration of the callback.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *jobs.Store
	orch   *jobs.Orchestrator
}

func (c *commandContext) withRuntime(fn func(*runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewForDir(cfg.Paths.LogDir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher := images.NewFetcher(cfg, logger)
	classifier := insight.NewClassifier(cfg, logger)

	var engineOpts []pairing.Option
	if cfg.TieBreak.Enabled {
		judgeLLM := cfg.TieBreakLLM()
		client := llm.NewClient(
			llm.Config{
				APIKey:         judgeLLM.APIKey,
				BaseURL:        judgeLLM.BaseURL,
				Model:          judgeLLM.Model,
				TimeoutSeconds: judgeLLM.TimeoutSeconds,
			},
			llm.WithRetryMaxAttempts(cfg.TieBreak.MaxAttempts),
			llm.WithRetryBackoff(
				time.Duration(cfg.TieBreak.RetryBaseSeconds)*time.Second,
				time.Duration(cfg.TieBreak.RetryMaxSeconds)*time.Second,
			),
		)
		judge := tiebreak.NewJudge(client, cfg.TieBreak.MaxCandidateChars, logger)
		engineOpts = append(engineOpts, pairing.WithJudge(judge))
	}

	engine := pairing.NewEngine(pairing.PolicyFrom(cfg.Pairing), logger, engineOpts...)
	orch := jobs.NewOrchestrator(cfg, store, classifier, fetcher, engine, logger)

	return fn(&runtime{cfg: cfg, logger: logger, store: store, orch: orch})
}
