package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"shelfpair/internal/insight"
)

// Features holds the comparable fields derived from one ImageInsight.
// Missing inputs degrade to empty values that simply fail to contribute to
// later scoring.
type Features struct {
	BrandNorm     string
	SizeCanonical string
	PackagingHint string
	CategoryTail  string
}

// Derive computes all comparable features for one insight.
func Derive(ins insight.ImageInsight) Features {
	return Features{
		BrandNorm:     Brand(ins.Brand),
		SizeCanonical: Size(ins.Size, ins.Category),
		PackagingHint: Packaging(ins.Description),
		CategoryTail:  CategoryTail(ins.Category),
	}
}

var legalSuffixes = map[string]struct{}{
	"co":      {},
	"inc":     {},
	"llc":     {},
	"ltd":     {},
	"corp":    {},
	"company": {},
	"gmbh":    {},
}

// Brand lowercases, strips punctuation and legal suffixes, and collapses
// whitespace so brand strings from different label printings compare equal.
func Brand(brand string) string {
	brand = strings.ToLower(strings.TrimSpace(brand))
	if brand == "" || brand == "unknown" {
		return ""
	}

	var b strings.Builder
	for _, r := range brand {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	// Drop a trailing standalone legal suffix, keeping at least one token.
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		if _, ok := legalSuffixes[last]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	// A glued suffix ("mybrainco") is trimmed from the final token when the
	// remainder is still a plausible name.
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if trimmed := strings.TrimSuffix(last, "co"); trimmed != last && len(trimmed) >= 4 {
			tokens[len(tokens)-1] = trimmed
		}
	}
	return strings.Join(tokens, " ")
}

var brandCaser = cases.Title(language.English)

// DisplayBrand renders a normalized brand token for human-readable output.
func DisplayBrand(brandNorm string) string {
	brandNorm = strings.TrimSpace(brandNorm)
	if brandNorm == "" {
		return "Unknown"
	}
	return brandCaser.String(brandNorm)
}

var sizePattern = regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s*(fl\.?\s*oz|oz|ml|l|g|kg|lb|lbs)\b`)

var liquidContextKeywords = []string{
	"supplement", "vitamin", "beverage", "drink", "liquid",
	"oil", "serum", "syrup", "tincture", "lotion", "shampoo", "conditioner",
}

// Size parses a free-text size string. In supplement/liquid categories the
// value is converted to milliliters (volume) or grams (mass) and rounded to
// an integer with unit suffix; otherwise a normalized literal passes through.
func Size(size, category string) string {
	size = strings.ToLower(strings.TrimSpace(size))
	if size == "" {
		return ""
	}

	if !hasLiquidContext(category) {
		return strings.Join(strings.Fields(size), " ")
	}

	match := sizePattern.FindStringSubmatch(size)
	if match == nil {
		return strings.Join(strings.Fields(size), " ")
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", "."), 64)
	if err != nil {
		return strings.Join(strings.Fields(size), " ")
	}

	unit := strings.Join(strings.Fields(strings.ReplaceAll(strings.ToLower(match[2]), ".", "")), " ")
	switch unit {
	case "fl oz", "floz":
		return fmt.Sprintf("%dml", int(math.Round(value*29.5735)))
	case "ml":
		return fmt.Sprintf("%dml", int(math.Round(value)))
	case "l":
		return fmt.Sprintf("%dml", int(math.Round(value*1000)))
	case "oz":
		return fmt.Sprintf("%dg", int(math.Round(value*28.3495)))
	case "g":
		return fmt.Sprintf("%dg", int(math.Round(value)))
	case "kg":
		return fmt.Sprintf("%dg", int(math.Round(value*1000)))
	case "lb", "lbs":
		return fmt.Sprintf("%dg", int(math.Round(value*453.592)))
	}
	return strings.Join(strings.Fields(size), " ")
}

func hasLiquidContext(category string) bool {
	category = strings.ToLower(category)
	for _, keyword := range liquidContextKeywords {
		if strings.Contains(category, keyword) {
			return true
		}
	}
	return false
}

// packagingRules are checked in order; the first rule whose keywords all
// appear in the description wins.
var packagingRules = []struct {
	keywords []string
	hint     string
}{
	{[]string{"dropper", "bottle"}, "dropper-bottle"},
	{[]string{"resealable", "pouch"}, "pouch"},
	{[]string{"pouch"}, "pouch"},
	{[]string{"pump", "bottle"}, "pump-bottle"},
	{[]string{"spray"}, "spray"},
	{[]string{"tube"}, "tube"},
	{[]string{"jar"}, "jar"},
	{[]string{"tin"}, "tin"},
	{[]string{"sachet"}, "sachet"},
	{[]string{"stick"}, "stick"},
	{[]string{"box"}, "box"},
	{[]string{"bottle"}, "bottle"},
}

// Packaging keyword-matches the visual description into a packaging hint.
// Unmatched descriptions yield an empty hint.
func Packaging(description string) string {
	description = strings.ToLower(description)
	if description == "" {
		return ""
	}
	for _, rule := range packagingRules {
		matched := true
		for _, keyword := range rule.keywords {
			if !strings.Contains(description, keyword) {
				matched = false
				break
			}
		}
		if matched {
			return rule.hint
		}
	}
	return ""
}

// CategoryTail keeps the last one or two path segments of a category
// taxonomy, joined with the same delimiter as the input.
func CategoryTail(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return ""
	}

	delimiter := " > "
	separator := ">"
	if !strings.Contains(category, ">") && strings.Contains(category, "/") {
		delimiter = "/"
		separator = "/"
	}

	parts := strings.Split(category, separator)
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	switch len(segments) {
	case 0:
		return ""
	case 1:
		return segments[0]
	default:
		return strings.Join(segments[len(segments)-2:], delimiter)
	}
}
