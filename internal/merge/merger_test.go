package merge

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outfitlab/matchflow/internal/engine"
	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/safety"
	"github.com/outfitlab/matchflow/internal/trust"
)

func testMerger() *Merger {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func eval(id string, tier model.Tier, score float64) model.PairEvaluation {
	return model.PairEvaluation{
		ItemID:   id,
		PairType: model.NewPairType(model.CategoryTops, model.CategoryBottoms),
		RawScore: score,
		Tier:     tier,
	}
}

func fixture() (engine.Result, []model.Item) {
	ce := engine.Result{
		TargetID: "t1",
		Evaluations: []model.PairEvaluation{
			eval("a", model.TierHigh, 0.95),
			eval("b", model.TierHigh, 0.85),
			eval("c", model.TierHigh, 0.80),
			eval("m1", model.TierMedium, 0.70),
			eval("m2", model.TierMedium, 0.65),
			eval("n1", model.TierNone, 0.30),
		},
	}
	items := []model.Item{
		{ID: "a", Category: model.CategoryBottoms},
		{ID: "b", Category: model.CategoryBottoms},
		{ID: "c", Category: model.CategoryShoes},
		{ID: "m1", Category: model.CategoryBags},
		{ID: "m2", Category: model.CategoryShoes},
		{ID: "n1", Category: model.CategoryBottoms},
	}
	return ce, items
}

func trustResult(kept, demoted, hidden []string) trust.Result {
	res := trust.Result{
		HighFinal: kept,
		Demoted:   demoted,
		Hidden:    hidden,
		Decisions: map[string]model.TrustDecision{},
	}
	res.Stats.Demoted = len(demoted)
	res.Stats.Hidden = len(hidden)
	return res
}

func ids(pairs []model.MatchPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Evaluation.ItemID
	}
	return out
}

func TestFinalizeTrustPartition(t *testing.T) {
	ce, items := fixture()
	tf := trustResult([]string{"a"}, []string{"b"}, []string{"c"})

	out := testMerger().Finalize(ce, items, tf, nil)

	require.NoError(t, out.Validate())
	assert.Equal(t, []string{"a"}, ids(out.HighFinal))
	assert.Equal(t, []string{"b", "m1", "m2"}, ids(out.NearFinal))
	assert.Equal(t, []string{"c"}, ids(out.Hidden))

	assert.Equal(t, model.ActionKeep, out.ActionByID["a"])
	assert.Equal(t, model.ActionDemote, out.ActionByID["b"])
	assert.Equal(t, model.ActionHide, out.ActionByID["c"])
	assert.Equal(t, model.ActionKeep, out.ActionByID["m1"], "native MEDIUM was never reviewed")
	assert.Equal(t, model.FinalTierNear, out.TierByID["m1"])
	assert.NotContains(t, out.ActionByID, "n1", "NONE-tier pairs never surface")

	assert.Equal(t, 1, out.Stats.TrustDemoted)
	assert.Equal(t, 1, out.Stats.TrustHidden)
}

func TestFinalizeNearFinalOrdering(t *testing.T) {
	// Demotions land ahead of native MEDIUM, highest raw score first.
	ce, items := fixture()
	tf := trustResult(nil, []string{"c", "a", "b"}, nil)

	out := testMerger().Finalize(ce, items, tf, nil)

	require.NoError(t, out.Validate())
	assert.Equal(t, []string{"a", "b", "c", "m1", "m2"}, ids(out.NearFinal))
}

func TestFinalizeSafetyVerdictsApply(t *testing.T) {
	ce, items := fixture()
	tf := trustResult([]string{"a", "b", "c"}, nil, nil)

	sr := &safety.BatchResult{
		Verdicts: []model.SafetyVerdict{
			{ItemID: "a", Action: model.ActionDemote, Reason: model.ReasonAIDemoted},
			{ItemID: "b", Action: model.ActionHide, Reason: model.ReasonAIVetoed},
		},
	}
	out := testMerger().Finalize(ce, items, tf, sr)

	require.NoError(t, out.Validate())
	assert.Equal(t, []string{"c"}, ids(out.HighFinal))
	assert.Equal(t, []string{"a", "m1", "m2"}, ids(out.NearFinal))
	assert.Equal(t, []string{"b"}, ids(out.Hidden))
	assert.Equal(t, model.ActionDemote, out.ActionByID["a"])
	assert.Equal(t, 1, out.Stats.SafetyDemoted)
	assert.Equal(t, 1, out.Stats.SafetyHidden)
}

func TestFinalizeMergeIsMonotonic(t *testing.T) {
	ce, items := fixture()
	tf := trustResult([]string{"a"}, []string{"b"}, []string{"c"})

	// The safety check tries to soften trust outcomes; none of it may land.
	sr := &safety.BatchResult{
		Verdicts: []model.SafetyVerdict{
			{ItemID: "b", Action: model.ActionKeep, Reason: model.ReasonAIApproved},
			{ItemID: "c", Action: model.ActionDemote, Reason: model.ReasonAIDemoted},
		},
	}
	out := testMerger().Finalize(ce, items, tf, sr)

	require.NoError(t, out.Validate())
	assert.Equal(t, model.ActionDemote, out.ActionByID["b"], "keep cannot undo a demote")
	assert.Equal(t, model.ActionHide, out.ActionByID["c"], "demote cannot undo a hide")
	assert.Zero(t, out.Stats.SafetyDemoted)
	assert.Zero(t, out.Stats.SafetyHidden)
}

func TestFinalizeObserveOnlyIsANoOp(t *testing.T) {
	ce, items := fixture()
	tf := trustResult([]string{"a", "b", "c"}, nil, nil)

	sr := &safety.BatchResult{
		Verdicts: []model.SafetyVerdict{
			{ItemID: "a", Action: model.ActionHide, Reason: model.ReasonAIVetoed},
		},
		EffectiveDryRun: true,
	}
	out := testMerger().Finalize(ce, items, tf, sr)

	require.NoError(t, out.Validate())
	assert.Equal(t, []string{"a", "b", "c"}, ids(out.HighFinal))
	assert.True(t, out.Stats.SafetyObserveOnly)
	assert.Zero(t, out.Stats.SafetyHidden)
}

func TestFinalizeFailedCheckMatchesNoCheck(t *testing.T) {
	ce, items := fixture()
	tf := trustResult([]string{"a", "b"}, []string{"c"}, nil)

	withoutSafety := testMerger().Finalize(ce, items, tf, nil)

	fallback := &safety.BatchResult{
		Verdicts: []model.SafetyVerdict{
			{ItemID: "a", Action: model.ActionKeep, Reason: model.ReasonErrorFallback},
			{ItemID: "b", Action: model.ActionKeep, Reason: model.ReasonErrorFallback},
		},
		EffectiveDryRun: true,
		Stats:           safety.CallStats{Failed: true},
	}
	withFallback := testMerger().Finalize(ce, items, tf, fallback)

	assert.Equal(t, withoutSafety.HighFinal, withFallback.HighFinal)
	assert.Equal(t, withoutSafety.NearFinal, withFallback.NearFinal)
	assert.Equal(t, withoutSafety.Hidden, withFallback.Hidden)
	assert.Equal(t, withoutSafety.ActionByID, withFallback.ActionByID)
}

func TestFinalizeRejectsGhostReferences(t *testing.T) {
	ce, items := fixture()

	t.Run("ghost trust decision", func(t *testing.T) {
		tf := trustResult([]string{"a", "b", "c"}, nil, []string{"phantom"})
		tf.Stats.Hidden = 0

		out := testMerger().Finalize(ce, items, tf, nil)
		require.NoError(t, out.Validate())
		assert.NotContains(t, out.ActionByID, "phantom")
		assert.Empty(t, out.Hidden)
	})

	t.Run("ghost safety verdict", func(t *testing.T) {
		tf := trustResult([]string{"a", "b", "c"}, nil, nil)
		sr := &safety.BatchResult{
			Verdicts: []model.SafetyVerdict{
				{ItemID: "phantom", Action: model.ActionHide, Reason: model.ReasonAIVetoed},
			},
		}
		out := testMerger().Finalize(ce, items, tf, sr)
		require.NoError(t, out.Validate())
		assert.NotContains(t, out.ActionByID, "phantom")
	})
}
