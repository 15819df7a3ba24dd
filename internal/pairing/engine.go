package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"shelfpair/internal/insight"
	"shelfpair/internal/logging"
	"shelfpair/internal/normalize"
	"shelfpair/internal/rolecheck"
)

// Engine turns one job's classified images into accepted pairs and
// singletons. It is stateless between Build calls.
type Engine struct {
	policy Policy
	judge  Judge
	logger *slog.Logger
	now    func() time.Time
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithJudge wires the tie-break judge. Without one, ambiguous candidate
// sets become singletons.
func WithJudge(judge Judge) Option {
	return func(e *Engine) { e.judge = judge }
}

// WithClock overrides the wall clock used by the build budget.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(policy Policy, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine := &Engine{
		policy: policy,
		logger: logging.NewComponentLogger(logger, "pairing"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

type decision int

const (
	decisionEscalate decision = iota
	decisionAccept
)

// decide applies the threshold rule to the top two candidate scores. The
// relaxed hair/cosmetic thresholds apply only when ingredient-list evidence
// was detected for the pair.
func (p Policy) decide(s1, s2 float64, hairContext bool) decision {
	gap := s1 - s2
	if s1 >= p.AutoPairScore && gap >= p.AutoPairGap {
		return decisionAccept
	}
	if hairContext && s1 >= p.AutoPairHairScore && gap >= p.AutoPairHairGap {
		return decisionAccept
	}
	return decisionEscalate
}

// Build runs role correction, candidate scoring, and the decision rule over
// a complete classification set. Every input image lands in exactly one
// pair slot or one singleton; guardrail trips degrade to singletons rather
// than failing the batch.
func (e *Engine) Build(ctx context.Context, insights []insight.ImageInsight) Result {
	start := e.now()
	result := Result{Metrics: Metrics{Images: len(insights)}}

	corrected := e.correctRoles(insights)

	var fronts, backs, others []scoredImage
	confidences := make(map[string]float64, len(corrected))
	for _, img := range corrected {
		confidences[img.ins.Key] = img.ins.Confidence
		switch img.ins.Role {
		case insight.RoleFront:
			fronts = append(fronts, img)
		case insight.RoleBack:
			backs = append(backs, img)
		default:
			others = append(others, img)
		}
	}
	result.Metrics.Fronts = len(fronts)
	result.Metrics.Backs = len(backs)

	// Highest-confidence fronts pick first so a contested back goes to the
	// stronger claim. Ties break on key for determinism.
	sort.Slice(fronts, func(i, j int) bool {
		ci, cj := confidences[fronts[i].ins.Key], confidences[fronts[j].ins.Key]
		if ci != cj {
			return ci > cj
		}
		return fronts[i].ins.Key < fronts[j].ins.Key
	})

	usedBacks := make(map[string]bool, len(backs))
	plausible := make(map[string]int, len(backs))

	for _, front := range fronts {
		if ctx.Err() != nil || (e.policy.BuildBudget > 0 && e.now().Sub(start) > e.policy.BuildBudget) {
			e.logger.Warn("pairing budget exhausted, truncating remaining fronts",
				logging.String(logging.FieldImageKey, front.ins.Key))
			result.Singletons = append(result.Singletons, Singleton{
				Key:         front.ins.Key,
				Reason:      "pairing budget exceeded",
				NeedsReview: true,
			})
			continue
		}

		candidates := e.generateCandidates(front, backs, usedBacks, plausible)
		if len(candidates) == 0 {
			result.Singletons = append(result.Singletons, Singleton{
				Key:         front.ins.Key,
				Reason:      "no candidate backs",
				NeedsReview: true,
			})
			continue
		}

		s1 := candidates[0].score
		s2 := 0.0
		if len(candidates) > 1 {
			s2 = candidates[1].score
		}
		hair := hairCosmeticContext(front.ins, candidates[0].back)

		if e.policy.decide(s1, s2, hair) == decisionAccept {
			pair := e.makePair(front, candidates[0])
			result.Pairs = append(result.Pairs, pair)
			usedBacks[candidates[0].back.Key] = true
			result.Metrics.AutoPairs++
			continue
		}

		result.Metrics.Escalations++
		pair, singleton := e.escalate(ctx, front, candidates)
		if singleton != nil {
			result.Singletons = append(result.Singletons, *singleton)
			continue
		}
		result.Pairs = append(result.Pairs, *pair)
		usedBacks[pair.BackKey] = true
		result.Metrics.JudgePairs++
	}

	e.attachExtras(&result, fronts, others)

	for _, back := range backs {
		if !usedBacks[back.ins.Key] {
			result.Singletons = append(result.Singletons, Singleton{
				Key:         back.ins.Key,
				Reason:      "no matching front",
				NeedsReview: true,
			})
		}
	}

	if e.policy.GenericBackRatio > 0 {
		for key, count := range plausible {
			if count >= e.policy.GenericBackRatio {
				result.Metrics.GenericBacks = append(result.Metrics.GenericBacks, key)
				e.logger.Warn("back image plausible for unusually many fronts",
					logging.String(logging.FieldImageKey, key),
					logging.Int("front_count", count))
			}
		}
		sort.Strings(result.Metrics.GenericBacks)
	}

	sort.Slice(result.Pairs, func(i, j int) bool { return result.Pairs[i].FrontKey < result.Pairs[j].FrontKey })
	sort.Slice(result.Singletons, func(i, j int) bool { return result.Singletons[i].Key < result.Singletons[j].Key })
	result.Metrics.Singletons = len(result.Singletons)
	return result
}

// correctRoles runs the per-image corrector, cross-checks each provisional
// product group, and returns the images with corrected roles and
// confidences applied.
func (e *Engine) correctRoles(insights []insight.ImageInsight) []scoredImage {
	images := make([]scoredImage, len(insights))
	groups := make(map[string][]int)
	for i, ins := range insights {
		features := normalize.Derive(ins)
		images[i] = scoredImage{ins: ins, features: features}
		key := features.BrandNorm
		if key == "" {
			key = features.CategoryTail
		}
		groups[key] = append(groups[key], i)
	}

	for _, indices := range groups {
		corrections := make([]rolecheck.Correction, len(indices))
		for j, i := range indices {
			corrections[j] = rolecheck.Score(images[i].ins)
		}
		corrections = rolecheck.CrossCheckGroup(corrections)
		for j, i := range indices {
			if corrections[j].Role != images[i].ins.Role {
				e.logger.Debug("role corrected",
					logging.String(logging.FieldImageKey, images[i].ins.Key),
					logging.String("from", string(images[i].ins.Role)),
					logging.String("to", string(corrections[j].Role)))
			}
			images[i].ins.Role = corrections[j].Role
			images[i].ins.Confidence = corrections[j].Confidence
		}
	}
	return images
}

// generateCandidates scores every unused back in the front's neighborhood,
// drops those below the minimum pre-score, and returns the top K. The
// plausible map counts, per back, how many fronts it cleared the minimum
// for, feeding the generic-back guard.
func (e *Engine) generateCandidates(front scoredImage, backs []scoredImage, usedBacks map[string]bool, plausible map[string]int) []candidate {
	var candidates []candidate
	for _, back := range backs {
		if usedBacks[back.ins.Key] || !sameNeighborhood(front, back) {
			continue
		}
		score, evidence := scoreCandidate(front, back)
		if score < e.policy.MinCandidateScore {
			continue
		}
		plausible[back.ins.Key]++
		candidates = append(candidates, candidate{back: back.ins, score: score, evidence: evidence})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].back.Key < candidates[j].back.Key
	})
	if e.policy.MaxCandidates > 0 && len(candidates) > e.policy.MaxCandidates {
		candidates = candidates[:e.policy.MaxCandidates]
	}
	return candidates
}

func (e *Engine) escalate(ctx context.Context, front scoredImage, candidates []candidate) (*Pair, *Singleton) {
	if e.judge == nil {
		return nil, &Singleton{
			Key:         front.ins.Key,
			Reason:      "ambiguous candidates, tie-break disabled",
			NeedsReview: true,
		}
	}

	backInsights := make([]insight.ImageInsight, len(candidates))
	for i, c := range candidates {
		backInsights[i] = c.back
	}

	selected, err := e.judge.Resolve(ctx, front.ins, backInsights)
	if err != nil {
		e.logger.Warn("tie-break judge failed",
			logging.String(logging.FieldImageKey, front.ins.Key),
			logging.Error(err))
		return nil, &Singleton{
			Key:         front.ins.Key,
			Reason:      fmt.Sprintf("tiebreak failed: %v", err),
			NeedsReview: true,
		}
	}
	if selected < 0 || selected >= len(candidates) {
		return nil, &Singleton{
			Key:         front.ins.Key,
			Reason:      "tiebreak: no match",
			NeedsReview: true,
		}
	}

	chosen := candidates[selected]
	pair := e.makePair(front, chosen)
	pair.Evidence = append(pair.Evidence, "tiebreak selected")
	return &pair, nil
}

func (e *Engine) makePair(front scoredImage, chosen candidate) Pair {
	brand := front.features.BrandNorm
	display := ""
	if brand != "" {
		display = normalize.DisplayBrand(brand)
	}
	return Pair{
		FrontKey:   front.ins.Key,
		BackKey:    chosen.back.Key,
		Confidence: chosen.score,
		Brand:      display,
		Product:    front.ins.Product,
		Evidence:   chosen.evidence,
	}
}

// attachExtras distributes side/other images across accepted pairs. Each
// extra attaches to its best-scoring product when it clears the minimum;
// overflow past the per-pair cap becomes singletons rather than being
// dropped silently. A cap of zero disables extras entirely.
func (e *Engine) attachExtras(result *Result, fronts, others []scoredImage) {
	frontImages := make(map[string]scoredImage, len(fronts))
	for _, front := range fronts {
		frontImages[front.ins.Key] = front
	}
	sort.Slice(others, func(i, j int) bool { return others[i].ins.Key < others[j].ins.Key })

	for _, other := range others {
		bestPair := -1
		bestScore := 0.0
		for i := range result.Pairs {
			front, ok := frontImages[result.Pairs[i].FrontKey]
			if !ok {
				continue
			}
			score, _ := scoreCandidate(front, other)
			if score > bestScore {
				bestScore = score
				bestPair = i
			}
		}

		if bestPair < 0 || bestScore < e.policy.MinExtraScore {
			result.Singletons = append(result.Singletons, Singleton{
				Key:    other.ins.Key,
				Reason: "no matching product",
			})
			continue
		}
		if len(result.Pairs[bestPair].Extras) >= e.policy.MaxExtras {
			result.Singletons = append(result.Singletons, Singleton{
				Key:         other.ins.Key,
				Reason:      "extra capacity exceeded",
				NeedsReview: true,
			})
			continue
		}
		result.Pairs[bestPair].Extras = append(result.Pairs[bestPair].Extras, other.ins.Key)
	}
}
