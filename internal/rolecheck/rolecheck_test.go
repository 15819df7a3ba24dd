package rolecheck

import (
	"strings"
	"testing"

	"shelfpair/internal/insight"
)

func TestScoreFlipsMislabeledFront(t *testing.T) {
	ins := insight.ImageInsight{
		Key:           "img-1",
		Role:          insight.RoleFront,
		Confidence:    0.55,
		ExtractedText: strings.Repeat("ingredient line ", 50) + "Supplement Facts Serving Size 2 Capsules Directions: take daily",
		Description:   "dense label panel with a barcode",
	}

	corr := Score(ins)
	if corr.Role != insight.RoleBack {
		t.Fatalf("expected role flip to back, got %s", corr.Role)
	}
	if !hasFlag(corr, FlagBackSignalsOnFront) {
		t.Fatalf("expected %s flag, got %v", FlagBackSignalsOnFront, corr.Flags)
	}
	if !hasFlag(corr, FlagRoleCorrectedToBack) {
		t.Fatalf("expected %s flag, got %v", FlagRoleCorrectedToBack, corr.Flags)
	}
}

func TestScoreKeepsConfidentFrontDespiteContradiction(t *testing.T) {
	ins := insight.ImageInsight{
		Key:           "img-2",
		Role:          insight.RoleFront,
		Confidence:    0.92,
		ExtractedText: "Brand Name Collagen Peptides ingredients inside",
		Description:   "centered product shot on a white background",
	}

	corr := Score(ins)
	if corr.Role != insight.RoleFront {
		t.Fatalf("expected front to survive, got %s", corr.Role)
	}
	if corr.Confidence >= 0.92 {
		t.Fatalf("expected contradiction penalty, confidence %.2f", corr.Confidence)
	}
}

func TestScoreFlagsLowConfidence(t *testing.T) {
	ins := insight.ImageInsight{
		Key:        "img-3",
		Role:       insight.RoleOther,
		Confidence: 0.2,
	}

	corr := Score(ins)
	if !hasFlag(corr, FlagLowConfidence) {
		t.Fatalf("expected %s flag, got %v", FlagLowConfidence, corr.Flags)
	}
}

func TestScoreClampsConfidence(t *testing.T) {
	ins := insight.ImageInsight{
		Key:           "img-4",
		Role:          insight.RoleFront,
		Confidence:    0.95,
		ExtractedText: "Brand logo with hero text across the panel",
		Description:   "centered shot, plain background, prominent brand",
	}

	corr := Score(ins)
	if corr.Confidence > 1 {
		t.Fatalf("confidence escaped clamp: %.2f", corr.Confidence)
	}
}

func TestCrossCheckGroupDemotesSurplusFronts(t *testing.T) {
	group := []Correction{
		{Key: "a", Role: insight.RoleFront, Confidence: 0.8},
		{Key: "b", Role: insight.RoleFront, Confidence: 0.5},
	}

	adjusted := CrossCheckGroup(group)

	if adjusted[0].Role != insight.RoleFront {
		t.Fatalf("expected highest-confidence front to survive, got %s", adjusted[0].Role)
	}
	if adjusted[1].Role != insight.RoleSide {
		t.Fatalf("expected surplus front demoted to side, got %s", adjusted[1].Role)
	}
	if !hasFlag(adjusted[1], FlagGroupDemotedToSide) {
		t.Fatalf("expected %s flag on demoted image, got %v", FlagGroupDemotedToSide, adjusted[1].Flags)
	}
}

func TestCrossCheckGroupPromotesBestNonBack(t *testing.T) {
	group := []Correction{
		{Key: "a", Role: insight.RoleSide, Confidence: 0.6},
		{Key: "b", Role: insight.RoleOther, Confidence: 0.9},
		{Key: "c", Role: insight.RoleBack, Confidence: 0.95},
	}

	adjusted := CrossCheckGroup(group)

	if adjusted[1].Role != insight.RoleFront {
		t.Fatalf("expected best side/other promoted, got %s for %s", adjusted[1].Role, adjusted[1].Key)
	}
	if adjusted[2].Role != insight.RoleBack {
		t.Fatalf("back must never be promoted, got %s", adjusted[2].Role)
	}
}

func TestCrossCheckGroupLeavesBackOnlyGroupAlone(t *testing.T) {
	group := []Correction{
		{Key: "a", Role: insight.RoleBack, Confidence: 0.9},
		{Key: "b", Role: insight.RoleBack, Confidence: 0.7},
	}

	adjusted := CrossCheckGroup(group)
	for i, c := range adjusted {
		if c.Role != insight.RoleBack {
			t.Fatalf("expected back-only group untouched, index %d became %s", i, c.Role)
		}
		if len(c.Flags) != 0 {
			t.Fatalf("expected no flags, got %v", c.Flags)
		}
	}
}

func hasFlag(c Correction, flag string) bool {
	for _, f := range c.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
