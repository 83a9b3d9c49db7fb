package models

import "fmt"

// Existence is the tri-state outcome of a check
type Existence string

const (
	ExistenceTrue    Existence = "true"
	ExistenceFalse   Existence = "false"
	ExistenceUnknown Existence = "unknown"
)

// Reason codes attached to check results. All of them are soft: every
// backend failure is recovered into a CheckResult, nothing propagates
// into the scheduler as an error.
const (
	ReasonNoEligibleKey       = "no_eligible_key"
	ReasonLookupFailed        = "lookup_failed"
	ReasonSessionInvalid      = "session_invalid"
	ReasonNoUsableProxy       = "no_usable_proxy"
	ReasonRenderFailed        = "render_failed"
	ReasonBlocked             = "blocked"
	ReasonHeuristicsExhausted = "all_heuristics_exhausted"
	// ReasonLookupContradicted tags a deliberate override: the lookup API
	// said true but the deep check said false. Not a failure condition.
	ReasonLookupContradicted = "lookup_true_but_verify_false"
)

// ReasonBackendException tags an unexpected backend failure of the given kind
func ReasonBackendException(kind string) string {
	return fmt.Sprintf("backend_exception:%s", kind)
}

// Backend identifiers reported in CheckResult.CheckedVia
const (
	ViaLookup    = "lookup"
	ViaSession   = "session"
	ViaProxy     = "proxy"
	ViaAltLookup = "alt-lookup"
	ViaFallback  = "fallback-chain"
)

// CheckResult is the outcome of one verification pass for one target.
// Ephemeral: it is used to derive the target's status and, when evidence is
// present, forwarded once to the owner before the evidence is discarded.
type CheckResult struct {
	Exists       Existence `json:"exists"`
	CheckedVia   string    `json:"checked_via"`
	EvidencePath string    `json:"evidence_path,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// Unknown builds an inconclusive result with a reason code
func Unknown(via, reason string) *CheckResult {
	return &CheckResult{Exists: ExistenceUnknown, CheckedVia: via, Reason: reason}
}

// Blocked reports whether the result signals an anti-bot block that the
// orchestrator should escalate to the fallback chain.
func (r *CheckResult) Blocked() bool {
	return r.Reason == ReasonBlocked
}
