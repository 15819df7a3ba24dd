package pairing

import (
	"context"
	"time"

	"shelfpair/internal/config"
	"shelfpair/internal/insight"
)

// Policy carries every tunable the decision engine consults. Callers build
// it from configuration once and pass it by value; nothing in the engine
// reads ambient state.
type Policy struct {
	AutoPairScore     float64
	AutoPairGap       float64
	AutoPairHairScore float64
	AutoPairHairGap   float64
	MinCandidateScore float64
	MaxCandidates     int
	// MaxExtras caps extra shots per pair; zero disables extras.
	MaxExtras        int
	MinExtraScore    float64
	BuildBudget      time.Duration
	GenericBackRatio int
}

// PolicyFrom maps the pairing configuration section onto an engine policy.
func PolicyFrom(cfg config.Pairing) Policy {
	return Policy{
		AutoPairScore:     cfg.AutoPairScore,
		AutoPairGap:       cfg.AutoPairGap,
		AutoPairHairScore: cfg.AutoPairHairScore,
		AutoPairHairGap:   cfg.AutoPairHairGap,
		MinCandidateScore: cfg.MinCandidateScore,
		MaxCandidates:     cfg.MaxCandidates,
		MaxExtras:         cfg.MaxExtras,
		MinExtraScore:     cfg.MinExtraScore,
		BuildBudget:       time.Duration(cfg.BuildBudgetSeconds) * time.Second,
		GenericBackRatio:  cfg.GenericBackRatio,
	}
}

// Judge resolves an ambiguous candidate set. Resolve returns the index of
// the selected candidate, or a negative index when no candidate matches.
type Judge interface {
	Resolve(ctx context.Context, front insight.ImageInsight, candidates []insight.ImageInsight) (int, error)
}

// Pair is one accepted front/back match, with optional extra shots and the
// evidence strings naming which signals fired.
type Pair struct {
	FrontKey   string   `json:"frontKey"`
	BackKey    string   `json:"backKey"`
	Confidence float64  `json:"confidence"`
	Brand      string   `json:"brand,omitempty"`
	Product    string   `json:"product,omitempty"`
	Extras     []string `json:"extras,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
}

// Singleton is an image that finished the job unpaired.
type Singleton struct {
	Key         string `json:"key"`
	Reason      string `json:"reason"`
	NeedsReview bool   `json:"needsReview"`
}

// Metrics summarizes one pairing run for SLO tracking.
type Metrics struct {
	Images       int      `json:"images"`
	Fronts       int      `json:"fronts"`
	Backs        int      `json:"backs"`
	AutoPairs    int      `json:"autoPairs"`
	JudgePairs   int      `json:"judgePairs"`
	Escalations  int      `json:"escalations"`
	Singletons   int      `json:"singletons"`
	GenericBacks []string `json:"genericBacks,omitempty"`
}

// Result partitions every input image into exactly one pair slot or one
// singleton.
type Result struct {
	Pairs      []Pair      `json:"pairs"`
	Singletons []Singleton `json:"singletons"`
	Metrics    Metrics     `json:"metrics"`
}
