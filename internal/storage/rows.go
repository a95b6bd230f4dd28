package storage

import (
	"time"

	"github.com/outfitlab/matchflow/internal/model"
)

// signalRow is the JSON shape persisted for a style fingerprint. Keeping
// an explicit row type means the domain model can evolve without silently
// breaking stored payloads.
type signalRow struct {
	GeneratedAt time.Time `json:"generated_at"`
	Archetype   string    `json:"archetype"`
	Secondary   string    `json:"secondary,omitempty"`
	ArchConf    float64   `json:"archetype_confidence"`
	Formality   string    `json:"formality"`
	FormConf    float64   `json:"formality_confidence"`
	Statement   string    `json:"statement"`
	StmtConf    float64   `json:"statement_confidence"`
	Season      string    `json:"season"`
	SeasonConf  float64   `json:"season_confidence"`
	Palette     []string  `json:"palette"`
	PaletteConf float64   `json:"palette_confidence"`
	Pattern     string    `json:"pattern"`
	PatternConf float64   `json:"pattern_confidence"`
	Material    string    `json:"material"`
	MatConf     float64   `json:"material_confidence"`
}

func newSignalRow(s *model.StyleSignals) signalRow {
	return signalRow{
		GeneratedAt: s.GeneratedAt,
		Archetype:   string(s.Archetype.Primary),
		Secondary:   string(s.Archetype.Secondary),
		ArchConf:    s.Archetype.Confidence,
		Formality:   string(s.Formality.Band),
		FormConf:    s.Formality.Confidence,
		Statement:   string(s.Statement.Level),
		StmtConf:    s.Statement.Confidence,
		Season:      string(s.Season.Weight),
		SeasonConf:  s.Season.Confidence,
		Palette:     s.Palette.Normalized(),
		PaletteConf: s.Palette.Confidence,
		Pattern:     string(s.Pattern.Level),
		PatternConf: s.Pattern.Confidence,
		Material:    string(s.Material.Family),
		MatConf:     s.Material.Confidence,
	}
}

func (r signalRow) toModel() *model.StyleSignals {
	return &model.StyleSignals{
		GeneratedAt: r.GeneratedAt,
		Archetype: model.ArchetypeSignal{
			Primary:    model.Archetype(r.Archetype),
			Secondary:  model.Archetype(r.Secondary),
			Confidence: r.ArchConf,
		},
		Formality: model.FormalitySignal{
			Band:       model.FormalityBand(r.Formality),
			Confidence: r.FormConf,
		},
		Statement: model.StatementSignal{
			Level:      model.StatementLevel(r.Statement),
			Confidence: r.StmtConf,
		},
		Season: model.SeasonSignal{
			Weight:     model.SeasonWeight(r.Season),
			Confidence: r.SeasonConf,
		},
		Palette: model.PaletteSignal{
			Colors:     r.Palette,
			Confidence: r.PaletteConf,
		},
		Pattern: model.PatternSignal{
			Level:      model.PatternLevel(r.Pattern),
			Confidence: r.PatternConf,
		},
		Material: model.MaterialSignal{
			Family:     model.MaterialFamily(r.Material),
			Confidence: r.MatConf,
		},
	}
}

// verdictRow is the JSON shape persisted for a safety verdict.
type verdictRow struct {
	ItemID     string   `json:"item_id"`
	Action     string   `json:"action"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence,omitempty"`
	LatencyMS  int64    `json:"latency_ms"`
}

func newVerdictRow(v model.SafetyVerdict) verdictRow {
	return verdictRow{
		ItemID:     v.ItemID,
		Action:     string(v.Action),
		Reason:     string(v.Reason),
		Confidence: v.Confidence,
		LatencyMS:  v.Latency.Milliseconds(),
	}
}

func (r verdictRow) toModel() model.SafetyVerdict {
	return model.SafetyVerdict{
		ItemID:     r.ItemID,
		Action:     model.Action(r.Action),
		Reason:     model.VerdictReason(r.Reason),
		Confidence: r.Confidence,
		Provenance: model.ProvenanceCache,
		Latency:    time.Duration(r.LatencyMS) * time.Millisecond,
	}
}
