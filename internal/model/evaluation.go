package model

import "fmt"

// Tier is the confidence bucket the scoring engine assigns a pair.
type Tier string

// Tier constants. TierNone marks pairs below the medium band (or hard
// failed); downstream surfaces omit them but every candidate still gets a
// record.
const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierNone   Tier = "NONE"
)

// CapReason names a detected tension that caps a pair's tier.
type CapReason string

// Cap reasons, applied in this order so output stays deterministic.
const (
	CapFormalityGap  CapReason = "formality-gap"
	CapStyleClash    CapReason = "style-clash"
	CapSeasonClash   CapReason = "season-clash"
	CapStatementPile CapReason = "statement-pile"
)

// HardFailReason names a condition that short-circuits scoring entirely.
type HardFailReason string

// Hard-fail reasons.
const (
	HardFailIncompatibleCategory HardFailReason = "incompatible-category"
	HardFailSameItem             HardFailReason = "same-item"
)

// FacetName identifies one weighted scoring facet.
type FacetName string

// Scoring facets in their fixed evaluation order.
const (
	FacetColor     FacetName = "color"
	FacetStyle     FacetName = "style"
	FacetFormality FacetName = "formality"
	FacetTypeComp  FacetName = "type-compatibility"
	FacetOccasion  FacetName = "occasion"
	FacetVibe      FacetName = "vibe"
)

// FacetOrder is the canonical facet ordering used for breakdowns and
// weight vectors. Identical inputs must yield identical orderings.
func FacetOrder() []FacetName {
	return []FacetName{FacetColor, FacetStyle, FacetFormality, FacetTypeComp, FacetOccasion, FacetVibe}
}

// FeatureScore is one facet's contribution to a pair evaluation.
type FeatureScore struct {
	Facet FacetName
	Value float64
	Known bool
}

// WeightVector holds the per-facet weights actually used for a pair, after
// renormalization over known facets.
type WeightVector struct {
	Color     float64
	Style     float64
	Formality float64
	TypeComp  float64
	Occasion  float64
	Vibe      float64
}

// Sum returns the total weight, which is 1.0 after renormalization unless
// every facet was unknown.
func (w WeightVector) Sum() float64 {
	return w.Color + w.Style + w.Formality + w.TypeComp + w.Occasion + w.Vibe
}

// PairEvaluation is the atomic scoring result for (target, candidate).
// Created fresh per evaluation call and never mutated after construction.
type PairEvaluation struct {
	ItemID         string
	PairType       PairType
	RawScore       float64
	Tier           Tier
	ForcedTier     Tier
	HardFailReason HardFailReason
	CapReasons     []CapReason
	Features       []FeatureScore
	Weights        WeightVector
	Explainable    bool
}

// HardFailed reports whether scoring short-circuited for this pair.
func (e *PairEvaluation) HardFailed() bool {
	return e.HardFailReason != ""
}

// Validate enforces the structural invariants of an evaluation record.
func (e *PairEvaluation) Validate() error {
	if e.ItemID == "" {
		return fmt.Errorf("evaluation missing item id")
	}
	switch e.Tier {
	case TierHigh, TierMedium, TierNone:
	default:
		return fmt.Errorf("invalid tier %q for item %s", e.Tier, e.ItemID)
	}
	if e.HardFailed() {
		if e.Tier != TierNone {
			return fmt.Errorf("hard-failed pair %s must carry the lowest tier, got %q", e.ItemID, e.Tier)
		}
		if len(e.CapReasons) != 0 {
			return fmt.Errorf("hard-failed pair %s must not carry cap reasons", e.ItemID)
		}
	}
	if e.RawScore < 0 || e.RawScore > 1 {
		return fmt.Errorf("raw score %.3f out of range for item %s", e.RawScore, e.ItemID)
	}
	return nil
}
