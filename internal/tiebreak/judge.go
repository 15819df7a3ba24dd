package tiebreak

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shelfpair/internal/insight"
	"shelfpair/internal/logging"
	"shelfpair/internal/services/llm"
)

const judgeSystemPrompt = `You match retail product photos. Given one FRONT label image's attributes and a numbered list of BACK label candidates, pick the back that belongs to the same physical product as the front.

Respond with JSON only, no prose, in the form {"selectedIndex": N} where N is the zero-based index of the matching candidate, or {"selectedIndex": -1} if none of the candidates matches.`

// NoMatch is the index returned when the judge declares no candidate
// acceptable.
const NoMatch = -1

type completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Judge escalates ambiguous candidate sets to a chat model and parses its
// verdict. Retry and determinism policy live in the underlying llm client.
type Judge struct {
	completer         completer
	maxCandidateChars int
	logger            *slog.Logger
}

// Option adjusts judge construction.
type Option func(*Judge)

// WithCompleter substitutes the chat backend, for tests.
func WithCompleter(c completer) Option {
	return func(j *Judge) { j.completer = c }
}

func NewJudge(client *llm.Client, maxCandidateChars int, logger *slog.Logger, opts ...Option) *Judge {
	if logger == nil {
		logger = logging.NewNop()
	}
	judge := &Judge{
		completer:         client,
		maxCandidateChars: maxCandidateChars,
		logger:            logging.NewComponentLogger(logger, "tiebreak"),
	}
	for _, opt := range opts {
		opt(judge)
	}
	return judge
}

type verdict struct {
	SelectedIndex int `json:"selectedIndex"`
}

// Resolve asks the judge to pick one candidate for the front. It returns
// the selected candidate index, or NoMatch when the judge declines every
// candidate.
func (j *Judge) Resolve(ctx context.Context, front insight.ImageInsight, candidates []insight.ImageInsight) (int, error) {
	if len(candidates) == 0 {
		return NoMatch, nil
	}

	prompt := j.buildPrompt(front, candidates)
	content, err := j.completer.CompleteJSON(ctx, judgeSystemPrompt, prompt)
	if err != nil {
		return NoMatch, fmt.Errorf("tiebreak completion: %w", err)
	}

	var v verdict
	if err := llm.DecodeJSON(content, &v); err != nil {
		return NoMatch, fmt.Errorf("tiebreak verdict: %w", err)
	}
	if v.SelectedIndex < 0 || v.SelectedIndex >= len(candidates) {
		j.logger.Debug("judge declared no match",
			logging.String(logging.FieldImageKey, front.Key),
			logging.Int("selected_index", v.SelectedIndex))
		return NoMatch, nil
	}
	return v.SelectedIndex, nil
}

func (j *Judge) buildPrompt(front insight.ImageInsight, candidates []insight.ImageInsight) string {
	var b strings.Builder
	b.WriteString("FRONT:\n")
	j.writeImage(&b, front)
	b.WriteString("\nCANDIDATES:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d]\n", i)
		j.writeImage(&b, c)
	}
	return b.String()
}

func (j *Judge) writeImage(b *strings.Builder, ins insight.ImageInsight) {
	if ins.HasBrand() {
		fmt.Fprintf(b, "brand: %s\n", ins.Brand)
	}
	if ins.Product != "" {
		fmt.Fprintf(b, "product: %s\n", ins.Product)
	}
	if ins.Variant != "" {
		fmt.Fprintf(b, "variant: %s\n", ins.Variant)
	}
	if ins.Size != "" {
		fmt.Fprintf(b, "size: %s\n", ins.Size)
	}
	if ins.Category != "" {
		fmt.Fprintf(b, "category: %s\n", ins.Category)
	}
	if ins.Color != "" {
		fmt.Fprintf(b, "color: %s\n", ins.Color)
	}
	if text := j.truncate(ins.ExtractedText); text != "" {
		fmt.Fprintf(b, "text: %s\n", text)
	}
	if desc := j.truncate(ins.Description); desc != "" {
		fmt.Fprintf(b, "description: %s\n", desc)
	}
}

// truncate caps candidate text at maxCandidateChars runes, never splitting
// a multi-byte character.
func (j *Judge) truncate(text string) string {
	text = strings.TrimSpace(text)
	if j.maxCandidateChars <= 0 || len(text) <= j.maxCandidateChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= j.maxCandidateChars {
		return text
	}
	return string(runes[:j.maxCandidateChars])
}
