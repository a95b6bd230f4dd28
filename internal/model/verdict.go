package model

import "time"

// VerdictReason is the closed set of reason codes a safety verdict carries.
type VerdictReason string

// Verdict reason codes.
const (
	ReasonAIApproved      VerdictReason = "ai-approved"
	ReasonAIVetoed        VerdictReason = "ai-vetoed"
	ReasonAIDemoted       VerdictReason = "ai-demoted"
	ReasonTimeoutFallback VerdictReason = "timeout-fallback"
	ReasonErrorFallback   VerdictReason = "error-fallback"
)

// Provenance records where a verdict came from.
type Provenance string

// Provenance values.
const (
	ProvenanceLive  Provenance = "live"
	ProvenanceCache Provenance = "cache"
)

// SafetyVerdict is one item's outcome from the remote safety check.
// Confidence is nil when the model did not report one.
type SafetyVerdict struct {
	ItemID     string
	Action     Action
	Reason     VerdictReason
	Confidence *float64
	Provenance Provenance
	Latency    time.Duration
}
