// Package trust implements the heuristic filter that re-examines the
// scoring engine's HIGH-tier matches using categorical style-signal
// distances, demoting or hiding pairs the weighted score was too generous
// with.
package trust

import (
	"log/slog"

	"github.com/outfitlab/matchflow/internal/model"
)

// Config holds the filter's threshold parameters. Only the ordering of the
// rules (hide before demote) is contractual; the numbers are tuning.
type Config struct {
	// HideFormalityGap is the band gap that, combined with a high
	// archetype distance, hides a pair outright.
	HideFormalityGap int
	// DemoteFormalityGap alone demotes a pair to near.
	DemoteFormalityGap int
	// DemoteSeasonGap alone demotes a pair to near.
	DemoteSeasonGap int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HideFormalityGap:   2,
		DemoteFormalityGap: 2,
		DemoteSeasonGap:    2,
	}
}

// Candidate is one HIGH-tier pair under review.
type Candidate struct {
	ID       string
	Category model.Category
	Signals  *model.StyleSignals
	CEScore  float64
}

// Stats summarizes one filter pass.
type Stats struct {
	Considered     int
	Kept           int
	Demoted        int
	Hidden         int
	MissingSignals int
	GhostsRejected int
}

// Result is the filter's partition of the HIGH set plus per-item decisions.
type Result struct {
	HighFinal []string
	Demoted   []string
	Hidden    []string
	Decisions map[string]model.TrustDecision
	Stats     Stats
}

// Filter applies the categorical distance rules. Pure and goroutine-safe.
type Filter struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a filter with the default configuration.
func New(logger *slog.Logger) *Filter {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig creates a filter with custom configuration.
func NewWithConfig(cfg Config, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{cfg: cfg, logger: logger}
}

// Evaluate reviews the HIGH-tier candidates against the target's signals.
// highIDs is the scoring engine's HIGH output; any candidate outside it is
// a ghost decision, which gets rejected and logged rather than emitted.
// Candidates with missing signals on either side are kept: insufficient
// information must not penalize.
func (f *Filter) Evaluate(targetSignals *model.StyleSignals, candidates []Candidate, highIDs []string) Result {
	high := make(map[string]bool, len(highIDs))
	for _, id := range highIDs {
		high[id] = true
	}

	res := Result{
		Decisions: make(map[string]model.TrustDecision, len(candidates)),
	}

	for _, c := range candidates {
		if !high[c.ID] {
			f.logger.Error("trust filter received a candidate outside the HIGH set",
				"item_id", c.ID,
				"category", c.Category)
			res.Stats.GhostsRejected++
			continue
		}
		res.Stats.Considered++

		d := f.decide(targetSignals, c)
		res.Decisions[c.ID] = d

		switch d.Action {
		case model.ActionKeep:
			res.HighFinal = append(res.HighFinal, c.ID)
			res.Stats.Kept++
		case model.ActionDemote:
			res.Demoted = append(res.Demoted, c.ID)
			res.Stats.Demoted++
		case model.ActionHide:
			res.Hidden = append(res.Hidden, c.ID)
			res.Stats.Hidden++
		}
		if d.Reason == model.TrustReasonMissingSignals {
			res.Stats.MissingSignals++
		}
	}

	return res
}

// decide runs the ordered threshold rules for one candidate. Hide
// conditions are checked before demote conditions so a severe mismatch is
// never merely demoted.
func (f *Filter) decide(target *model.StyleSignals, c Candidate) model.TrustDecision {
	if target == nil || c.Signals == nil {
		return model.TrustDecision{
			ItemID:       c.ID,
			Action:       model.ActionKeep,
			Reason:       model.TrustReasonMissingSignals,
			FormalityGap: -1,
			SeasonGap:    -1,
		}
	}

	dist := model.ArchetypeDistance(target.Archetype, c.Signals.Archetype)
	fGap := model.FormalityGap(target.Formality.Band, c.Signals.Formality.Band)
	sGap := model.SeasonGap(target.Season.Weight, c.Signals.Season.Weight)

	d := model.TrustDecision{
		ItemID:            c.ID,
		ArchetypeDistance: dist,
		FormalityGap:      fGap,
		SeasonGap:         sGap,
	}

	// Hide: the pair is wrong on both axes at once.
	if dist == model.DistanceHigh && fGap >= f.cfg.HideFormalityGap {
		d.Action = model.ActionHide
		d.Reason = model.TrustReasonSevereClash
		return d
	}

	// Demote: wrong enough on any single axis.
	if dist == model.DistanceMedium || dist == model.DistanceHigh {
		d.Action = model.ActionDemote
		d.Reason = model.TrustReasonArchetypeDrift
		return d
	}
	if fGap >= f.cfg.DemoteFormalityGap {
		d.Action = model.ActionDemote
		d.Reason = model.TrustReasonFormalityGap
		return d
	}
	if sGap >= f.cfg.DemoteSeasonGap {
		d.Action = model.ActionDemote
		d.Reason = model.TrustReasonSeasonGap
		return d
	}

	d.Action = model.ActionKeep
	d.Reason = model.TrustReasonNone
	return d
}
