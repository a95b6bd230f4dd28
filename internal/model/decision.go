package model

// Action is the filtering outcome for a single candidate, shared by the
// trust filter and the safety check. Merging switches over it exhaustively;
// never compare raw strings.
type Action string

// Actions ordered from most to least confidence.
const (
	ActionKeep   Action = "keep"
	ActionDemote Action = "demote"
	ActionHide   Action = "hide"
)

// Severity ranks actions for monotonic merging: higher never yields to
// lower.
func (a Action) Severity() int {
	switch a {
	case ActionKeep:
		return 0
	case ActionDemote:
		return 1
	case ActionHide:
		return 2
	default:
		return -1
	}
}

// DistanceBucket is the categorical archetype distance between two signal
// fingerprints.
type DistanceBucket string

// Distance buckets.
const (
	DistanceLow    DistanceBucket = "low"
	DistanceMedium DistanceBucket = "medium"
	DistanceHigh   DistanceBucket = "high"
)

// TrustReason is the primary reason code for a trust-filter decision.
type TrustReason string

// Trust-filter reason codes.
const (
	TrustReasonNone           TrustReason = ""
	TrustReasonSevereClash    TrustReason = "archetype-formality-clash"
	TrustReasonArchetypeDrift TrustReason = "archetype-drift"
	TrustReasonFormalityGap   TrustReason = "formality-gap"
	TrustReasonSeasonGap      TrustReason = "season-gap"
	TrustReasonMissingSignals TrustReason = "missing-signals"
)

// TrustDecision is the per-candidate outcome of the trust filter. Decisions
// may only be emitted for candidates present in the scoring engine's HIGH
// output; anything else is a ghost decision and gets rejected upstream.
type TrustDecision struct {
	ItemID            string
	Action            Action
	Reason            TrustReason
	ArchetypeDistance DistanceBucket
	FormalityGap      int
	SeasonGap         int
}
