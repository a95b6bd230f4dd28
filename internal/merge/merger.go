// Package merge combines the scoring engine, trust filter, and safety
// check outputs into the FinalizedMatches structure downstream outfit
// assembly consumes.
package merge

import (
	"log/slog"
	"sort"

	"github.com/outfitlab/matchflow/internal/engine"
	"github.com/outfitlab/matchflow/internal/model"
	"github.com/outfitlab/matchflow/internal/safety"
	"github.com/outfitlab/matchflow/internal/trust"
)

// Merger finalizes one pipeline pass. It holds no state beyond a logger
// and is safe for concurrent use.
type Merger struct {
	logger *slog.Logger
}

// New creates a merger.
func New(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Finalize merges the three stages. safetyResult may be nil (not run, not
// eligible, or failed); verdicts are applied only when the server's
// effective mode is apply. The merge is monotonic: a safety verdict can
// only move an item toward less confidence relative to the trust-filter
// outcome, never the reverse.
func (m *Merger) Finalize(ce engine.Result, items []model.Item, tf trust.Result, safetyResult *safety.BatchResult) model.FinalizedMatches {
	itemByID := make(map[string]model.Item, len(items))
	for _, it := range items {
		itemByID[it.ID] = it
	}
	evalByID := make(map[string]model.PairEvaluation, len(ce.Evaluations))
	for _, e := range ce.Evaluations {
		evalByID[e.ItemID] = e
	}
	highOrder := ce.HighIDs()
	inHigh := make(map[string]bool, len(highOrder))
	for _, id := range highOrder {
		inHigh[id] = true
	}

	// Start from the trust filter's partition of the HIGH set, dropping
	// anything that references an id outside it. A ghost here is a defect
	// between stages: logged loudly, excluded, never papered over.
	action := make(map[string]model.Action, len(highOrder))
	fromTrust := func(ids []string, a model.Action) {
		for _, id := range ids {
			if !inHigh[id] {
				m.logger.Error("trust decision references an item outside the HIGH set",
					"item_id", id,
					"action", a)
				continue
			}
			action[id] = a
		}
	}
	fromTrust(tf.HighFinal, model.ActionKeep)
	fromTrust(tf.Demoted, model.ActionDemote)
	fromTrust(tf.Hidden, model.ActionHide)

	// HIGH-tier ids the trust filter never saw (it only reviews what it
	// was handed) stay kept.
	for _, id := range highOrder {
		if _, ok := action[id]; !ok {
			action[id] = model.ActionKeep
		}
	}

	stats := model.MergeStats{
		TrustDemoted: tf.Stats.Demoted,
		TrustHidden:  tf.Stats.Hidden,
	}

	safetyMoved := make(map[string]bool)
	if safetyResult != nil {
		stats.SafetyObserveOnly = safetyResult.EffectiveDryRun
		if !safetyResult.EffectiveDryRun {
			for _, v := range safetyResult.Verdicts {
				current, ok := action[v.ItemID]
				if !ok {
					m.logger.Error("safety verdict references an item outside the HIGH set",
						"item_id", v.ItemID,
						"action", v.Action)
					continue
				}
				// Monotonic: only ever increase severity.
				if v.Action.Severity() <= current.Severity() {
					continue
				}
				action[v.ItemID] = v.Action
				safetyMoved[v.ItemID] = true
				switch v.Action {
				case model.ActionDemote:
					stats.SafetyDemoted++
				case model.ActionHide:
					stats.SafetyHidden++
				}
			}
		}
	}

	placed := make(map[string]bool, len(highOrder))
	out := model.FinalizedMatches{
		ActionByID: make(map[string]model.Action),
		TierByID:   make(map[string]model.FinalTier),
		Stats:      stats,
	}

	place := func(id string, tier model.FinalTier, act model.Action) {
		if placed[id] {
			return
		}
		it, ok := itemByID[id]
		if !ok {
			m.logger.Error("finalize has no item record for id", "item_id", id)
			return
		}
		pair := model.MatchPair{Evaluation: evalByID[id], Item: it}
		switch tier {
		case model.FinalTierHigh:
			out.HighFinal = append(out.HighFinal, pair)
		case model.FinalTierNear:
			out.NearFinal = append(out.NearFinal, pair)
		case model.FinalTierHidden:
			out.Hidden = append(out.Hidden, pair)
		}
		out.ActionByID[id] = act
		out.TierByID[id] = tier
		placed[id] = true
	}

	// Hidden first: hide wins over everything, so these ids must be
	// claimed before nearFinal dedup runs.
	for _, id := range highOrder {
		if action[id] == model.ActionHide {
			place(id, model.FinalTierHidden, model.ActionHide)
		}
	}
	for _, id := range highOrder {
		if action[id] == model.ActionKeep {
			place(id, model.FinalTierHigh, model.ActionKeep)
		}
	}

	// nearFinal: demoted items by descending raw score first, then the
	// engine's native MEDIUM set in input order.
	var demoted []string
	for _, id := range highOrder {
		if action[id] == model.ActionDemote {
			demoted = append(demoted, id)
		}
	}
	sort.SliceStable(demoted, func(i, j int) bool {
		return evalByID[demoted[i]].RawScore > evalByID[demoted[j]].RawScore
	})
	for _, id := range demoted {
		place(id, model.FinalTierNear, model.ActionDemote)
	}
	for _, e := range ce.Medium() {
		place(e.ItemID, model.FinalTierNear, model.ActionKeep)
	}

	if err := out.Validate(); err != nil {
		// Construction guards should make this unreachable; a failure
		// here means a stale or orphaned reference between stages.
		m.logger.Error("finalized matches failed invariant check",
			"target_id", ce.TargetID,
			"error", err)
	}

	m.logger.Debug("finalize complete",
		"target_id", ce.TargetID,
		"high", len(out.HighFinal),
		"near", len(out.NearFinal),
		"hidden", len(out.Hidden),
		"trust_demoted", stats.TrustDemoted,
		"trust_hidden", stats.TrustHidden,
		"safety_demoted", stats.SafetyDemoted,
		"safety_hidden", stats.SafetyHidden,
		"observe_only", stats.SafetyObserveOnly,
		"safety_moved", len(safetyMoved))

	return out
}
