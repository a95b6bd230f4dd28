// Package engine implements the weighted scoring engine that assigns each
// (target, candidate) pair a raw score and confidence tier.
package engine

import "github.com/outfitlab/matchflow/internal/model"

// Band is the score band for one pair type: at or above High the pair is
// HIGH; at or above MediumFloor it is MEDIUM; below that it is omitted.
type Band struct {
	High        float64
	MediumFloor float64
}

// Config holds the tuning parameters of the scoring engine. The numeric
// values are configuration, not contract: only the ordering and
// monotonicity of the rules is load-bearing.
type Config struct {
	// Weights is the base weight vector before renormalization over known
	// facets.
	Weights model.WeightVector
	// DefaultBand applies to any pair type without an override.
	DefaultBand Band
	// BandOverrides tunes tier cutoffs per pair type.
	BandOverrides map[model.PairType]Band
	// ForcedTiers pins specific pair types to a tier regardless of score.
	ForcedTiers map[model.PairType]model.Tier
	// FormalityCapGap is the band gap at which the formality cap fires.
	FormalityCapGap int
	// SeasonCapGap is the season gap at which the season cap fires.
	SeasonCapGap int
	// MinKnownForExplanation is how many facets must be known before a
	// textual explanation may be shown for the pair.
	MinKnownForExplanation int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Weights: model.WeightVector{
			Color:     0.20,
			Style:     0.25,
			Formality: 0.20,
			TypeComp:  0.15,
			Occasion:  0.10,
			Vibe:      0.10,
		},
		DefaultBand: Band{
			High:        0.78,
			MediumFloor: 0.60,
		},
		FormalityCapGap:        2,
		SeasonCapGap:           2,
		MinKnownForExplanation: 3,
	}
}

// band resolves the score band for a pair type.
func (c Config) band(pt model.PairType) Band {
	if b, ok := c.BandOverrides[pt]; ok {
		return b
	}
	return c.DefaultBand
}
