package pairing

import (
	"strings"

	"shelfpair/internal/insight"
	"shelfpair/internal/normalize"
)

// Component weights for the candidate pre-score. The general auto-pair
// thresholds assume a perfect match lands near the sum of these.
const (
	weightBrandExact   = 1.5
	weightBrandPartial = 0.75
	weightCategory     = 0.8
	weightSize         = 0.7
	weightPackaging    = 0.5
	weightColor        = 0.3
	weightDistributor  = 1.0
)

type candidate struct {
	back     insight.ImageInsight
	score    float64
	evidence []string
}

type scoredImage struct {
	ins      insight.ImageInsight
	features normalize.Features
}

// scoreCandidate computes the weighted pre-score for one (front, back)
// hypothesis along with the evidence strings naming which signals fired.
func scoreCandidate(front, back scoredImage) (float64, []string) {
	var score float64
	var evidence []string

	switch brandAgreement(front.features.BrandNorm, back.features.BrandNorm) {
	case brandExact:
		score += weightBrandExact
		evidence = append(evidence, "brand match")
	case brandPartial:
		score += weightBrandPartial
		evidence = append(evidence, "brand partial match")
	case brandMismatch:
		if productNamesAgree(front.ins.Product, back.ins.Product) {
			score += weightDistributor
			evidence = append(evidence, "distributor rescue")
		}
	}

	if front.features.CategoryTail != "" && front.features.CategoryTail == back.features.CategoryTail {
		score += weightCategory
		evidence = append(evidence, "category match")
	}
	if front.features.SizeCanonical != "" && front.features.SizeCanonical == back.features.SizeCanonical {
		score += weightSize
		evidence = append(evidence, "size match")
	}
	if front.features.PackagingHint != "" && front.features.PackagingHint == back.features.PackagingHint {
		score += weightPackaging
		evidence = append(evidence, "packaging match")
	}
	if front.ins.Color != "" && strings.EqualFold(front.ins.Color, back.ins.Color) {
		score += weightColor
		evidence = append(evidence, "color match")
	}

	return score, evidence
}

type brandVerdict int

const (
	brandUnknown brandVerdict = iota
	brandExact
	brandPartial
	brandMismatch
)

func brandAgreement(a, b string) brandVerdict {
	if a == "" || b == "" {
		return brandUnknown
	}
	if a == b {
		return brandExact
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return brandPartial
	}
	if sharedToken(a, b) {
		return brandPartial
	}
	return brandMismatch
}

func sharedToken(a, b string) bool {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		if len(t) >= 4 {
			tokens[t] = struct{}{}
		}
	}
	for _, t := range strings.Fields(b) {
		if _, ok := tokens[t]; ok {
			return true
		}
	}
	return false
}

// productNamesAgree detects the distributor-printed-back case: brand strings
// disagree but the product names share strong token evidence.
func productNamesAgree(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		if len(t) >= 4 {
			tokens[t] = struct{}{}
		}
	}
	shared := 0
	for _, t := range strings.Fields(b) {
		if _, ok := tokens[t]; ok {
			shared++
		}
	}
	return shared >= 2
}

// sameNeighborhood limits candidate generation to backs that plausibly
// belong near the front: agreeing or unknown brand, or a shared category
// tail.
func sameNeighborhood(front, back scoredImage) bool {
	switch brandAgreement(front.features.BrandNorm, back.features.BrandNorm) {
	case brandExact, brandPartial, brandUnknown:
		return true
	}
	if front.features.CategoryTail != "" && front.features.CategoryTail == back.features.CategoryTail {
		return true
	}
	return productNamesAgree(front.ins.Product, back.ins.Product)
}

var cosmeticCategoryWords = []string{
	"hair", "cosmetic", "beauty", "skincare", "skin care", "shampoo",
	"conditioner", "styling",
}

var inciTokens = []string{
	"aqua", "glycerin", "dimethicone", "parfum", "panthenol", "keratin",
	"sulfate", "paraben", "cetearyl", "behentrimonium",
}

// hairCosmeticContext reports whether the pair sits in a hair/cosmetic
// context with ingredient-list evidence, which justifies the relaxed
// auto-pair thresholds.
func hairCosmeticContext(front, back insight.ImageInsight) bool {
	category := strings.ToLower(front.Category + " " + back.Category)
	for _, w := range cosmeticCategoryWords {
		if strings.Contains(category, w) {
			return true
		}
	}
	text := strings.ToLower(front.ExtractedText + " " + back.ExtractedText)
	if !strings.Contains(text, "ingredients") {
		return false
	}
	for _, t := range inciTokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
