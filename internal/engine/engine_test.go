package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitlab/matchflow/internal/model"
)

func signalsWith(arch model.Archetype, band model.FormalityBand, colors ...string) *model.StyleSignals {
	if len(colors) == 0 {
		colors = []string{"black", "white"}
	}
	return &model.StyleSignals{
		Archetype: model.ArchetypeSignal{Primary: arch, Confidence: 0.9},
		Formality: model.FormalitySignal{Band: band, Confidence: 0.9},
		Statement: model.StatementSignal{Level: model.StatementBalanced, Confidence: 0.8},
		Season:    model.SeasonSignal{Weight: model.SeasonMid, Confidence: 0.8},
		Palette:   model.PaletteSignal{Colors: colors, Confidence: 0.85},
		Pattern:   model.PatternSignal{Level: model.PatternSolid, Confidence: 0.8},
		Material:  model.MaterialSignal{Family: model.MaterialKnit, Confidence: 0.7},
	}
}

func item(id string, cat model.Category, signals *model.StyleSignals) model.Item {
	return model.Item{ID: id, Category: cat, Signals: signals}
}

func TestEvaluateEveryCandidateGetsARecord(t *testing.T) {
	s := New()
	target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual))
	candidates := []model.Item{
		item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual)),
		item("c2", model.CategoryBottoms, nil),
		item("c3", model.CategoryDresses, signalsWith(model.ArchetypeStreet, model.FormalityCasual)),
	}

	res := s.Evaluate(target, candidates)
	require.Len(t, res.Evaluations, 3)
	for i, e := range res.Evaluations {
		assert.Equal(t, candidates[i].ID, e.ItemID)
		assert.NoError(t, e.Validate())
	}
}

func TestEvaluateDeterminism(t *testing.T) {
	s := New()
	target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalityDressy))
	candidates := []model.Item{
		item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeGlam, model.FormalitySmartCasual, "red", "black")),
		item("c2", model.CategoryShoes, signalsWith(model.ArchetypeStreet, model.FormalityCasual, "green")),
		item("c3", model.CategoryBags, nil),
	}

	first := s.Evaluate(target, candidates)
	second := s.Evaluate(target, candidates)
	require.Equal(t, first, second, "identical inputs must yield identical evaluations")
}

func TestEvaluateHighTier(t *testing.T) {
	s := New()
	target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual))
	cand := item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual))

	res := s.Evaluate(target, []model.Item{cand})
	e := res.Evaluations[0]
	assert.Equal(t, model.TierHigh, e.Tier)
	assert.Empty(t, e.CapReasons)
	assert.Greater(t, e.RawScore, 0.78)
	assert.Equal(t, []string{"c1"}, res.HighIDs())
}

func TestEvaluateHardFail(t *testing.T) {
	s := New()

	t.Run("incompatible categories", func(t *testing.T) {
		target := item("t1", model.CategoryDresses, signalsWith(model.ArchetypeClassic, model.FormalityDressy))
		cand := item("c1", model.CategorySkirts, signalsWith(model.ArchetypeClassic, model.FormalityDressy))

		res := s.Evaluate(target, []model.Item{cand})
		e := res.Evaluations[0]
		assert.Equal(t, model.TierNone, e.Tier)
		assert.Equal(t, model.HardFailIncompatibleCategory, e.HardFailReason)
		assert.Empty(t, e.CapReasons)
		assert.Zero(t, e.RawScore)
	})

	t.Run("same item", func(t *testing.T) {
		target := item("t1", model.CategoryTops, nil)
		res := s.Evaluate(target, []model.Item{item("t1", model.CategoryTops, nil)})
		assert.Equal(t, model.HardFailSameItem, res.Evaluations[0].HardFailReason)
	})

	t.Run("two lower-body pieces", func(t *testing.T) {
		target := item("t1", model.CategoryBottoms, nil)
		res := s.Evaluate(target, []model.Item{item("c1", model.CategorySkirts, nil)})
		assert.Equal(t, model.HardFailIncompatibleCategory, res.Evaluations[0].HardFailReason)
	})
}

func TestWeightRenormalization(t *testing.T) {
	s := New()

	t.Run("missing signals leave only type compatibility", func(t *testing.T) {
		target := item("t1", model.CategoryTops, nil)
		cand := item("c1", model.CategoryBottoms, nil)

		res := s.Evaluate(target, []model.Item{cand})
		e := res.Evaluations[0]

		assert.InDelta(t, 1.0, e.Weights.Sum(), 1e-9)
		assert.InDelta(t, 1.0, e.Weights.TypeComp, 1e-9)
		assert.Zero(t, e.Weights.Color)
		assert.Zero(t, e.Weights.Style)

		for _, f := range e.Features {
			if f.Facet == model.FacetTypeComp {
				assert.True(t, f.Known)
			} else {
				assert.False(t, f.Known, "facet %s should be unknown", f.Facet)
			}
		}
	})

	t.Run("full signals weights sum to one", func(t *testing.T) {
		target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalityCasual))
		cand := item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeMinimal, model.FormalityCasual))

		res := s.Evaluate(target, []model.Item{cand})
		assert.InDelta(t, 1.0, res.Evaluations[0].Weights.Sum(), 1e-9)
	})
}

func TestCapReasonsLowerTier(t *testing.T) {
	s := New()

	t.Run("formality gap caps high to medium", func(t *testing.T) {
		target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalityLounge))
		cand := item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual))

		res := s.Evaluate(target, []model.Item{cand})
		e := res.Evaluations[0]
		assert.Equal(t, model.TierMedium, e.Tier)
		assert.Equal(t, []model.CapReason{model.CapFormalityGap}, e.CapReasons)
	})

	t.Run("caps never raise a tier", func(t *testing.T) {
		target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalityFormal))
		cand := item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeStreet, model.FormalityLounge))

		res := s.Evaluate(target, []model.Item{cand})
		e := res.Evaluations[0]
		assert.Equal(t, model.TierNone, e.Tier)
	})
}

func TestForcedTierOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForcedTiers = map[model.PairType]model.Tier{
		model.NewPairType(model.CategoryTops, model.CategoryBags): model.TierMedium,
	}
	s := NewWithConfig(cfg)

	target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalityCasual))
	cand := item("c1", model.CategoryBags, signalsWith(model.ArchetypeClassic, model.FormalityCasual))

	res := s.Evaluate(target, []model.Item{cand})
	e := res.Evaluations[0]
	assert.Equal(t, model.TierMedium, e.Tier)
	assert.Equal(t, model.TierMedium, e.ForcedTier)
}

func TestBandOverridePerPairType(t *testing.T) {
	cfg := DefaultConfig()
	pt := model.NewPairType(model.CategoryTops, model.CategoryBottoms)
	cfg.BandOverrides = map[model.PairType]Band{
		pt: {High: 0.99, MediumFloor: 0.95},
	}
	s := NewWithConfig(cfg)

	target := item("t1", model.CategoryTops, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual))
	cand := item("c1", model.CategoryBottoms, signalsWith(model.ArchetypeClassic, model.FormalitySmartCasual))

	res := s.Evaluate(target, []model.Item{cand})
	assert.Equal(t, model.TierMedium, res.Evaluations[0].Tier,
		"the stricter override band drops this pair out of HIGH")
}
