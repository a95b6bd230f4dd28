package model

import "fmt"

// FinalTier is the tier downstream outfit assembly reads per item.
type FinalTier string

// Final tiers.
const (
	FinalTierHigh   FinalTier = "HIGH"
	FinalTierNear   FinalTier = "NEAR"
	FinalTierHidden FinalTier = "HIDDEN"
)

// MatchPair couples an evaluation with the item it scored. Downstream
// consumers treat it as opaque.
type MatchPair struct {
	Evaluation PairEvaluation
	Item       Item
}

// MergeStats counts what the refinement stages did during one finalize
// pass.
type MergeStats struct {
	TrustDemoted      int
	TrustHidden       int
	SafetyDemoted     int
	SafetyHidden      int
	SafetyObserveOnly bool
}

// FinalizedMatches is the terminal structure of the pipeline: three
// disjoint buckets plus per-item lookup maps. Downstream must use the maps
// rather than re-deriving tiers.
type FinalizedMatches struct {
	HighFinal  []MatchPair
	NearFinal  []MatchPair
	Hidden     []MatchPair
	ActionByID map[string]Action
	TierByID   map[string]FinalTier
	Stats      MergeStats
}

// Validate checks the structural invariants: pairwise-disjoint buckets and
// consistent lookup maps. Violations indicate a stale or orphaned reference
// between stages and are reported, never silently repaired.
func (f *FinalizedMatches) Validate() error {
	seen := make(map[string]FinalTier, len(f.HighFinal)+len(f.NearFinal)+len(f.Hidden))

	check := func(pairs []MatchPair, tier FinalTier) error {
		for _, p := range pairs {
			id := p.Item.ID
			if id == "" {
				return fmt.Errorf("bucket %s contains an item without an id", tier)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("item %s appears in both %s and %s", id, prev, tier)
			}
			seen[id] = tier
		}
		return nil
	}

	if err := check(f.HighFinal, FinalTierHigh); err != nil {
		return err
	}
	if err := check(f.NearFinal, FinalTierNear); err != nil {
		return err
	}
	if err := check(f.Hidden, FinalTierHidden); err != nil {
		return err
	}

	for id, tier := range f.TierByID {
		got, ok := seen[id]
		if !ok {
			return fmt.Errorf("tier map references item %s absent from every bucket", id)
		}
		if got != tier {
			return fmt.Errorf("tier map says %s for item %s but it sits in %s", tier, id, got)
		}
	}
	for id := range f.ActionByID {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("action map references item %s absent from every bucket", id)
		}
	}
	return nil
}

// IDs returns the item ids in the given bucket, in bucket order.
func IDs(pairs []MatchPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.Item.ID
	}
	return out
}
