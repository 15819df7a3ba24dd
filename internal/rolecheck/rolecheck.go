package rolecheck

import (
	"strings"

	"shelfpair/internal/insight"
)

// Contradiction and bookkeeping flags raised while re-scoring a role.
const (
	FlagLowConfidence       = "low_confidence"
	FlagBackSignalsOnFront  = "back_keywords_on_front"
	FlagFrontSignalsOnBack  = "front_keywords_on_back"
	FlagRoleCorrectedToBack = "role_corrected_to_back"
	FlagRoleCorrectedFront  = "role_corrected_to_front"
	FlagGroupDemotedToSide  = "group_demoted_to_side"
	FlagGroupPromotedFront  = "group_promoted_to_front"
)

const (
	confidenceFloor    = 0.35
	flipMidpoint       = 0.5
	contradictionCost  = 0.25
	supportBonus       = 0.10
	compositionBonus   = 0.05
	backgroundBonus    = 0.05
	angledPenalty      = 0.10
	frontLongTextCost  = 0.15
	backShortTextCost  = 0.15
	backLongTextBonus  = 0.15
	frontModerateBonus = 0.10
)

// Correction is the corrector's adjusted view of one image's role.
type Correction struct {
	Key        string
	Role       insight.Role
	Confidence float64
	Flags      []string
}

var backTriggers = []string{
	"supplement facts",
	"nutrition facts",
	"barcode",
	"directions",
	"ingredients",
	"warnings",
	"distributed by",
	"best before",
}

var frontTriggers = []string{
	"brand logo",
	"logo",
	"hero text",
	"product name",
	"prominent brand",
}

// Score re-scores one image's role using text-density and keyword
// heuristics, starting from the classifier's raw confidence. When a
// contradiction fired and the adjusted confidence sits below the midpoint,
// the role flips (front to back or back to front).
func Score(ins insight.ImageInsight) Correction {
	correction := Correction{
		Key:        ins.Key,
		Role:       ins.Role,
		Confidence: ins.Confidence,
	}

	text := strings.ToLower(ins.ExtractedText)
	description := strings.ToLower(ins.Description)
	haystack := text + " " + description
	textLen := len(strings.TrimSpace(ins.ExtractedText))

	contradiction := false

	switch ins.Role {
	case insight.RoleFront:
		if textLen >= 20 && textLen <= 300 {
			correction.Confidence += frontModerateBonus
		}
		if textLen > 600 {
			correction.Confidence -= frontLongTextCost
		}
		if containsAny(haystack, backTriggers) {
			correction.Confidence -= contradictionCost
			correction.Flags = append(correction.Flags, FlagBackSignalsOnFront)
			contradiction = true
		} else if containsAny(haystack, frontTriggers) {
			correction.Confidence += supportBonus
		}
		if containsAny(description, []string{"plain background", "white background", "uniform background"}) {
			correction.Confidence += backgroundBonus
		}
		if containsAny(description, []string{"centered", "symmetric", "straight-on"}) {
			correction.Confidence += compositionBonus
		}
		if containsAny(description, []string{"rotated", "angled", "tilted"}) {
			correction.Confidence -= angledPenalty
		}
	case insight.RoleBack:
		if textLen > 400 {
			correction.Confidence += backLongTextBonus
		}
		if textLen < 80 {
			correction.Confidence -= backShortTextCost
		}
		if containsAny(haystack, frontTriggers) && !containsAny(haystack, backTriggers) {
			correction.Confidence -= contradictionCost
			correction.Flags = append(correction.Flags, FlagFrontSignalsOnBack)
			contradiction = true
		} else if containsAny(haystack, backTriggers) {
			correction.Confidence += supportBonus
		}
	}

	correction.Confidence = clamp01(correction.Confidence)

	if correction.Confidence < confidenceFloor {
		correction.Flags = append(correction.Flags, FlagLowConfidence)
	}

	if contradiction && correction.Confidence < flipMidpoint {
		switch correction.Role {
		case insight.RoleFront:
			correction.Role = insight.RoleBack
			correction.Flags = append(correction.Flags, FlagRoleCorrectedToBack)
		case insight.RoleBack:
			correction.Role = insight.RoleFront
			correction.Flags = append(correction.Flags, FlagRoleCorrectedFront)
		}
	}

	return correction
}

// CrossCheckGroup adjusts roles across all images sharing one provisional
// product identity. At most one correction is applied per image: surplus
// fronts are demoted to side (the highest-confidence front survives) and a
// frontless group promotes its best side/other image. A back is never
// promoted to front; a back-only group is returned untouched so the scorer
// can handle it as unresolved.
func CrossCheckGroup(corrections []Correction) []Correction {
	adjusted := make([]Correction, len(corrections))
	copy(adjusted, corrections)

	bestFront := -1
	for i, c := range adjusted {
		if c.Role != insight.RoleFront {
			continue
		}
		if bestFront < 0 || c.Confidence > adjusted[bestFront].Confidence {
			bestFront = i
		}
	}

	if bestFront >= 0 {
		for i := range adjusted {
			if i == bestFront || adjusted[i].Role != insight.RoleFront {
				continue
			}
			adjusted[i].Role = insight.RoleSide
			adjusted[i].Flags = append(adjusted[i].Flags, FlagGroupDemotedToSide)
		}
		return adjusted
	}

	// No front in the group: promote the most confident side/other image.
	promote := -1
	for i, c := range adjusted {
		if c.Role != insight.RoleSide && c.Role != insight.RoleOther {
			continue
		}
		if promote < 0 || c.Confidence > adjusted[promote].Confidence {
			promote = i
		}
	}
	if promote >= 0 {
		adjusted[promote].Role = insight.RoleFront
		adjusted[promote].Flags = append(adjusted[promote].Flags, FlagGroupPromotedFront)
	}
	return adjusted
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
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
