package config

const (
	defaultDataDir = "~/.local/share/shelfpair"
	defaultLogDir  = "~/.local/share/shelfpair/logs"

	defaultClassifierBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultClassifierModel          = "google/gemini-3-flash-preview"
	defaultClassifierTimeoutSeconds = 60
	defaultClassifierMaxConcurrent  = 4
	defaultClassifierMaxImageEdge   = 1536

	defaultTieBreakMaxAttempts       = 3
	defaultTieBreakRetryBaseSeconds  = 1
	defaultTieBreakRetryMaxSeconds   = 10
	defaultTieBreakMaxCandidateChars = 1200

	defaultAutoPairScore     = 3.0
	defaultAutoPairGap       = 1.0
	defaultAutoPairHairScore = 2.4
	defaultAutoPairHairGap   = 0.8
	defaultMinCandidateScore = 1.0
	defaultMaxCandidates     = 8
	defaultMaxExtras         = 4
	defaultMinExtraScore     = 1.5
	defaultBuildBudget       = 60
	defaultGenericBackRatio  = 4

	defaultChunkSize              = 5
	defaultMaxChunksPerInvocation = 3
	defaultChunkLockTTLSeconds    = 120
	defaultJobTTLHours            = 24

	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Classifier: Classifier{
			BaseURL:        defaultClassifierBaseURL,
			Model:          defaultClassifierModel,
			TimeoutSeconds: defaultClassifierTimeoutSeconds,
			MaxConcurrent:  defaultClassifierMaxConcurrent,
			MaxImageEdge:   defaultClassifierMaxImageEdge,
		},
		TieBreak: TieBreak{
			Enabled:           true,
			MaxAttempts:       defaultTieBreakMaxAttempts,
			RetryBaseSeconds:  defaultTieBreakRetryBaseSeconds,
			RetryMaxSeconds:   defaultTieBreakRetryMaxSeconds,
			MaxCandidateChars: defaultTieBreakMaxCandidateChars,
		},
		Pairing: Pairing{
			AutoPairScore:      defaultAutoPairScore,
			AutoPairGap:        defaultAutoPairGap,
			AutoPairHairScore:  defaultAutoPairHairScore,
			AutoPairHairGap:    defaultAutoPairHairGap,
			MinCandidateScore:  defaultMinCandidateScore,
			MaxCandidates:      defaultMaxCandidates,
			MaxExtras:          defaultMaxExtras,
			MinExtraScore:      defaultMinExtraScore,
			BuildBudgetSeconds: defaultBuildBudget,
			GenericBackRatio:   defaultGenericBackRatio,
		},
		Jobs: Jobs{
			ChunkSize:              defaultChunkSize,
			MaxChunksPerInvocation: defaultMaxChunksPerInvocation,
			ChunkLockTTLSeconds:    defaultChunkLockTTLSeconds,
			JobTTLHours:            defaultJobTTLHours,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
