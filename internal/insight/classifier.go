package insight

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"shelfpair/internal/config"
	"shelfpair/internal/logging"
	"shelfpair/internal/services/llm"
)

// SourceImage is one image ready for classification: a stable key plus the
// encoded data URL the vision model will receive.
type SourceImage struct {
	Key     string
	DataURL string
}

// visionCompleter abstracts the vision chat call for testability.
type visionCompleter interface {
	CompleteVisionJSON(ctx context.Context, systemPrompt, userPrompt string, images []llm.ImagePart) (string, error)
}

// Classifier turns source images into ImageInsights via a vision model.
// A process-wide gate bounds in-flight classification calls independently of
// how many chunks run in parallel.
type Classifier struct {
	client visionCompleter
	logger *slog.Logger
	gate   chan struct{}
}

// Option customises the Classifier.
type Option func(*Classifier)

// WithCompleter overrides the vision client (primarily for tests).
func WithCompleter(client visionCompleter) Option {
	return func(c *Classifier) {
		if client != nil {
			c.client = client
		}
	}
}

// NewClassifier constructs a classifier bound to the supplied configuration.
func NewClassifier(cfg *config.Config, logger *slog.Logger, opts ...Option) *Classifier {
	maxConcurrent := 1
	if cfg != nil && cfg.Classifier.MaxConcurrent > 0 {
		maxConcurrent = cfg.Classifier.MaxConcurrent
	}
	c := &Classifier{
		logger: logging.NewComponentLogger(logger, "classifier"),
		gate:   make(chan struct{}, maxConcurrent),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil && cfg != nil {
		c.client = llm.NewClient(llm.Config{
			APIKey:         cfg.Classifier.APIKey,
			BaseURL:        cfg.Classifier.BaseURL,
			Model:          cfg.Classifier.Model,
			TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
		})
	}
	return c
}

// Classify produces one ImageInsight per source image. The same image always
// yields the same insight (temperature-zero completion), so chunk retries are
// safe. A single failed image fails the batch; the error names the image so
// the owning chunk can be retried as a unit.
func (c *Classifier) Classify(ctx context.Context, sources []SourceImage) ([]ImageInsight, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("classifier unavailable")
	}
	if len(sources) == 0 {
		return nil, nil
	}

	type outcome struct {
		index   int
		insight ImageInsight
		err     error
	}

	results := make([]outcome, len(sources))
	var wg sync.WaitGroup
	for idx, src := range sources {
		wg.Add(1)
		go func(idx int, src SourceImage) {
			defer wg.Done()
			select {
			case c.gate <- struct{}{}:
				defer func() { <-c.gate }()
			case <-ctx.Done():
				results[idx] = outcome{index: idx, err: ctx.Err()}
				return
			}
			ins, err := c.classifyOne(ctx, src)
			results[idx] = outcome{index: idx, insight: ins, err: err}
		}(idx, src)
	}
	wg.Wait()

	insights := make([]ImageInsight, 0, len(sources))
	for _, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("classify %s: %w", sources[res.index].Key, res.err)
		}
		insights = append(insights, res.insight)
	}
	sort.Slice(insights, func(i, j int) bool { return insights[i].Key < insights[j].Key })
	return insights, nil
}

func (c *Classifier) classifyOne(ctx context.Context, src SourceImage) (ImageInsight, error) {
	var empty ImageInsight
	if src.DataURL == "" {
		return empty, fmt.Errorf("image data unavailable")
	}
	raw, err := c.client.CompleteVisionJSON(ctx, classificationPrompt,
		"Analyze this product photograph.",
		[]llm.ImagePart{{URL: src.DataURL}})
	if err != nil {
		return empty, err
	}

	var parsed struct {
		Role          string  `json:"role"`
		Brand         string  `json:"brand"`
		Product       string  `json:"product"`
		Variant       string  `json:"variant"`
		Size          string  `json:"size"`
		Category      string  `json:"category"`
		ExtractedText string  `json:"extracted_text"`
		Description   string  `json:"description"`
		Color         string  `json:"color"`
		Confidence    float64 `json:"confidence"`
	}
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return empty, fmt.Errorf("parse classification: %w", err)
	}

	ins := ImageInsight{
		Key:           src.Key,
		Role:          ParseRole(parsed.Role),
		Brand:         parsed.Brand,
		Product:       parsed.Product,
		Variant:       parsed.Variant,
		Size:          parsed.Size,
		Category:      parsed.Category,
		ExtractedText: parsed.ExtractedText,
		Description:   parsed.Description,
		Color:         parsed.Color,
		Confidence:    clamp01(parsed.Confidence),
	}
	c.logger.Debug("image classified",
		logging.String(logging.FieldImageKey, ins.Key),
		logging.String("role", string(ins.Role)),
		logging.String("brand", ins.Brand),
		logging.Float64("confidence", ins.Confidence),
	)
	return ins, nil
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
