package model

import (
	"sort"
	"time"
)

// Archetype is the dominant aesthetic family of an item.
type Archetype string

// Archetype constants.
const (
	ArchetypeClassic  Archetype = "classic"
	ArchetypeMinimal  Archetype = "minimal"
	ArchetypePreppy   Archetype = "preppy"
	ArchetypeRomantic Archetype = "romantic"
	ArchetypeBohemian Archetype = "bohemian"
	ArchetypeStreet   Archetype = "street"
	ArchetypeSporty   Archetype = "sporty"
	ArchetypeEdgy     Archetype = "edgy"
	ArchetypeGlam     Archetype = "glam"
	ArchetypeWorkwear Archetype = "workwear"
	ArchetypeUnknown  Archetype = ""
)

// FormalityBand is an ordinal dress-code band, lounge through formal.
type FormalityBand string

// Formality bands from least to most formal.
const (
	FormalityLounge      FormalityBand = "lounge"
	FormalityCasual      FormalityBand = "casual"
	FormalitySmartCasual FormalityBand = "smart-casual"
	FormalityDressy      FormalityBand = "dressy"
	FormalityFormal      FormalityBand = "formal"
	FormalityUnknown     FormalityBand = ""
)

// Rank returns the band's ordinal position, or -1 when unknown.
func (f FormalityBand) Rank() int {
	switch f {
	case FormalityLounge:
		return 0
	case FormalityCasual:
		return 1
	case FormalitySmartCasual:
		return 2
	case FormalityDressy:
		return 3
	case FormalityFormal:
		return 4
	default:
		return -1
	}
}

// StatementLevel describes how loud a piece is.
type StatementLevel string

// Statement levels from quiet to loud.
const (
	StatementMuted    StatementLevel = "muted"
	StatementBalanced StatementLevel = "balanced"
	StatementBold     StatementLevel = "bold"
	StatementUnknown  StatementLevel = ""
)

// Rank returns the level's ordinal position, or -1 when unknown.
func (s StatementLevel) Rank() int {
	switch s {
	case StatementMuted:
		return 0
	case StatementBalanced:
		return 1
	case StatementBold:
		return 2
	default:
		return -1
	}
}

// SeasonWeight is how heavy an item wears across seasons.
type SeasonWeight string

// Season weights from lightest to heaviest.
const (
	SeasonLight   SeasonWeight = "light"
	SeasonMid     SeasonWeight = "mid"
	SeasonHeavy   SeasonWeight = "heavy"
	SeasonUnknown SeasonWeight = ""
)

// Rank returns the weight's ordinal position, or -1 when unknown.
func (s SeasonWeight) Rank() int {
	switch s {
	case SeasonLight:
		return 0
	case SeasonMid:
		return 1
	case SeasonHeavy:
		return 2
	default:
		return -1
	}
}

// PatternLevel describes surface pattern intensity.
type PatternLevel string

// Pattern levels.
const (
	PatternSolid   PatternLevel = "solid"
	PatternSubtle  PatternLevel = "subtle"
	PatternBold    PatternLevel = "bold"
	PatternUnknown PatternLevel = ""
)

// MaterialFamily groups fabrics with similar hand and formality feel.
type MaterialFamily string

// Material families.
const (
	MaterialKnit      MaterialFamily = "knit"
	MaterialWoven     MaterialFamily = "woven"
	MaterialDenim     MaterialFamily = "denim"
	MaterialLeather   MaterialFamily = "leather"
	MaterialSilky     MaterialFamily = "silky"
	MaterialTechnical MaterialFamily = "technical"
	MaterialUnknown   MaterialFamily = ""
)

// ArchetypeSignal carries the archetype facet with its confidence.
type ArchetypeSignal struct {
	Primary    Archetype
	Secondary  Archetype
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (a ArchetypeSignal) Known() bool { return a.Primary != ArchetypeUnknown }

// FormalitySignal carries the formality facet with its confidence.
type FormalitySignal struct {
	Band       FormalityBand
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (f FormalitySignal) Known() bool { return f.Band != FormalityUnknown }

// StatementSignal carries the statement facet with its confidence.
type StatementSignal struct {
	Level      StatementLevel
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (s StatementSignal) Known() bool { return s.Level != StatementUnknown }

// SeasonSignal carries the season-weight facet with its confidence.
type SeasonSignal struct {
	Weight     SeasonWeight
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (s SeasonSignal) Known() bool { return s.Weight != SeasonUnknown }

// PaletteSignal carries the unordered color set with its confidence.
type PaletteSignal struct {
	Colors     []string
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (p PaletteSignal) Known() bool { return len(p.Colors) > 0 }

// Normalized returns the colors lowercase-stable sorted. Callers must not
// rely on the stored order; hashing and comparison go through this.
func (p PaletteSignal) Normalized() []string {
	out := make([]string, len(p.Colors))
	copy(out, p.Colors)
	sort.Strings(out)
	return out
}

// PatternSignal carries the pattern facet with its confidence.
type PatternSignal struct {
	Level      PatternLevel
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (p PatternSignal) Known() bool { return p.Level != PatternUnknown }

// MaterialSignal carries the material facet with its confidence.
type MaterialSignal struct {
	Family     MaterialFamily
	Confidence float64
}

// Known reports whether the facet resolved to a usable value.
func (m MaterialSignal) Known() bool { return m.Family != MaterialUnknown }

// StyleSignals is an item's categorical style fingerprint: seven independent
// facets, each a primary value plus a confidence in [0,1]. Produced once per
// item and never mutated in place; a re-fetch replaces it wholesale.
type StyleSignals struct {
	GeneratedAt time.Time
	Archetype   ArchetypeSignal
	Formality   FormalitySignal
	Statement   StatementSignal
	Season      SeasonSignal
	Palette     PaletteSignal
	Pattern     PatternSignal
	Material    MaterialSignal
}

// LowConfidence reports whether either of the facets the trust filter leans
// on (archetype, formality) resolved below the given floor.
func (s *StyleSignals) LowConfidence(floor float64) bool {
	if s == nil {
		return true
	}
	return s.Archetype.Confidence < floor || s.Formality.Confidence < floor
}
