package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitlab/matchflow/internal/model"
)

func keptWith(id string, dist model.DistanceBucket, score float64) KeptCandidate {
	return KeptCandidate{
		ItemID:   id,
		PairType: model.NewPairType(model.CategoryTops, model.CategoryBottoms),
		Signals:  fullSignals(0.9, "black"),
		Decision: model.TrustDecision{
			ItemID:            id,
			Action:            model.ActionKeep,
			ArchetypeDistance: dist,
		},
		CEScore: score,
	}
}

func TestSelectCandidatesTriggers(t *testing.T) {
	cfg := DefaultSelectionConfig()
	target := fullSignals(0.9, "black")

	t.Run("clean keeps are never escalated", func(t *testing.T) {
		out := SelectCandidates(target, []KeptCandidate{keptWith("a", model.DistanceLow, 0.9)}, cfg)
		assert.Empty(t, out)
	})

	t.Run("medium distance triggers", func(t *testing.T) {
		out := SelectCandidates(target, []KeptCandidate{keptWith("a", model.DistanceMedium, 0.9)}, cfg)
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].ItemID)
		assert.Equal(t, model.DistanceMedium, out[0].ArchetypeDistance)
	})

	t.Run("low candidate confidence triggers", func(t *testing.T) {
		k := keptWith("a", model.DistanceLow, 0.9)
		k.Signals = fullSignals(0.3, "black")
		out := SelectCandidates(target, []KeptCandidate{k}, cfg)
		assert.Len(t, out, 1)
	})

	t.Run("low target confidence triggers", func(t *testing.T) {
		out := SelectCandidates(fullSignals(0.3, "black"), []KeptCandidate{keptWith("a", model.DistanceLow, 0.9)}, cfg)
		assert.Len(t, out, 1)
	})

	t.Run("non-keep decisions are skipped", func(t *testing.T) {
		k := keptWith("a", model.DistanceMedium, 0.9)
		k.Decision.Action = model.ActionDemote
		out := SelectCandidates(target, []KeptCandidate{k}, cfg)
		assert.Empty(t, out)
	})

	t.Run("missing signals are skipped", func(t *testing.T) {
		k := keptWith("a", model.DistanceMedium, 0.9)
		k.Signals = nil
		out := SelectCandidates(target, []KeptCandidate{k}, cfg)
		assert.Empty(t, out)
	})
}

func TestSelectCandidatesOrderAndCap(t *testing.T) {
	target := fullSignals(0.9, "black")
	kept := []KeptCandidate{
		keptWith("f", model.DistanceMedium, 0.90),
		keptWith("a", model.DistanceMedium, 0.70),
		keptWith("b", model.DistanceMedium, 0.85),
		keptWith("c", model.DistanceMedium, 0.70),
		keptWith("d", model.DistanceMedium, 0.80),
		keptWith("e", model.DistanceMedium, 0.75),
		keptWith("g", model.DistanceMedium, 0.95),
	}

	out := SelectCandidates(target, kept, DefaultSelectionConfig())
	require.Len(t, out, MaxBatchSize)

	ids := make([]string, len(out))
	for i, p := range out {
		ids[i] = p.ItemID
	}
	// Ascending score, id as tiebreak; the two highest scores fall off.
	assert.Equal(t, []string{"a", "c", "e", "d", "b"}, ids)
}
