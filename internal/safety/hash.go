// Package safety implements the remote verdict client that re-evaluates a
// bounded, risk-triggered subset of trust-kept matches, with caching,
// in-flight request deduplication, and rollout gating.
package safety

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/outfitlab/matchflow/internal/model"
)

// PolicyVersion is baked into every request hash so a policy bump
// invalidates previously cached verdicts.
const PolicyVersion = "safety-v3"

// SignalKey hashes the categorical content of a fingerprint. Confidence
// values are deliberately excluded: re-runs with identical visual signals
// but different confidence numbers must still hit cache. The palette is
// sorted before hashing so set order cannot destabilize the key.
func SignalKey(s *model.StyleSignals) string {
	h := fnv.New64a()
	if s == nil {
		_, _ = h.Write([]byte("absent"))
		return fmt.Sprintf("%016x", h.Sum64())
	}

	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.Write([]byte(p))
			_, _ = h.Write([]byte{0})
		}
	}

	write(
		string(s.Archetype.Primary),
		string(s.Archetype.Secondary),
		string(s.Formality.Band),
		string(s.Statement.Level),
		string(s.Season.Weight),
		string(s.Pattern.Level),
		string(s.Material.Family),
	)
	for _, c := range s.Palette.Normalized() {
		write(c)
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// PairDescriptor is one candidate pair in a safety-check request.
type PairDescriptor struct {
	ItemID            string
	PairType          model.PairType
	ArchetypeDistance model.DistanceBucket
	CandidateSignals  *model.StyleSignals
}

// RequestKey derives the deduplication and cache key for a batch: target
// signal content, every pair's id/type/distance/signal content, and the
// policy version. Pairs are keyed in sorted-id order so caller ordering
// cannot produce distinct keys for the same request.
func RequestKey(targetSignals *model.StyleSignals, pairs []PairDescriptor) string {
	sorted := make([]PairDescriptor, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })

	h := fnv.New64a()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.Write([]byte(p))
			_, _ = h.Write([]byte{0})
		}
	}

	write(PolicyVersion, SignalKey(targetSignals))
	for _, p := range sorted {
		write(p.ItemID, string(p.PairType), string(p.ArchetypeDistance), SignalKey(p.CandidateSignals))
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
