package safety

import (
	"sort"

	"github.com/outfitlab/matchflow/internal/model"
)

// MaxBatchSize bounds how many pairs a single safety check may carry.
const MaxBatchSize = 5

// SelectionConfig tunes the risk-trigger predicate.
type SelectionConfig struct {
	// ConfidenceFloor marks a fingerprint as ambiguous when either of its
	// load-bearing facets resolved below it.
	ConfidenceFloor float64
	// MaxPairs caps the batch.
	MaxPairs int
}

// DefaultSelectionConfig returns the default selection configuration.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		ConfidenceFloor: 0.65,
		MaxPairs:        MaxBatchSize,
	}
}

// KeptCandidate is a trust-filter "keep" considered for escalation.
type KeptCandidate struct {
	ItemID   string
	PairType model.PairType
	Signals  *model.StyleSignals
	Decision model.TrustDecision
	CEScore  float64
}

// SelectCandidates picks at most MaxPairs trust-kept items that meet the
// risk trigger: a non-trivial archetype distance or low signal confidence
// on either side. Only genuinely ambiguous cases are escalated; clean keeps
// never cost a remote call. The most ambiguous pairs (lowest raw score) go
// first, ties broken by id for determinism.
func SelectCandidates(targetSignals *model.StyleSignals, kept []KeptCandidate, cfg SelectionConfig) []PairDescriptor {
	if cfg.MaxPairs <= 0 {
		cfg.MaxPairs = MaxBatchSize
	}
	if cfg.ConfidenceFloor <= 0 {
		cfg.ConfidenceFloor = DefaultSelectionConfig().ConfidenceFloor
	}

	var risky []KeptCandidate
	for _, k := range kept {
		if k.Decision.Action != model.ActionKeep {
			continue
		}
		if k.Signals == nil {
			// Nothing for the model to look at.
			continue
		}
		if triggered(targetSignals, k, cfg.ConfidenceFloor) {
			risky = append(risky, k)
		}
	}

	sort.Slice(risky, func(i, j int) bool {
		if risky[i].CEScore != risky[j].CEScore {
			return risky[i].CEScore < risky[j].CEScore
		}
		return risky[i].ItemID < risky[j].ItemID
	})

	if len(risky) > cfg.MaxPairs {
		risky = risky[:cfg.MaxPairs]
	}

	out := make([]PairDescriptor, len(risky))
	for i, k := range risky {
		out[i] = PairDescriptor{
			ItemID:            k.ItemID,
			PairType:          k.PairType,
			ArchetypeDistance: k.Decision.ArchetypeDistance,
			CandidateSignals:  k.Signals,
		}
	}
	return out
}

func triggered(targetSignals *model.StyleSignals, k KeptCandidate, floor float64) bool {
	if k.Decision.ArchetypeDistance == model.DistanceMedium ||
		k.Decision.ArchetypeDistance == model.DistanceHigh {
		return true
	}
	if k.Signals.LowConfidence(floor) {
		return true
	}
	if targetSignals != nil && targetSignals.LowConfidence(floor) {
		return true
	}
	return false
}
