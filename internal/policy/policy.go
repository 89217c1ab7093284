// Package policy implements the policy decision point: a pure function
// (policy, payload) → (decision, reasons, rule_trace). Mirrors
// Mindburn-Labs/helm's pkg/pdp package — a stable PolicyDecisionPoint
// interface, fail-closed by construction, dispatched through a small
// enumerated registry keyed by policy id so that "future policies are
// added, never mutated" (spec §9 design note).
package policy

import (
	"fmt"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

// RuleResult is one rule's outcome, the unit that becomes one trace step.
type RuleResult struct {
	RuleID   string
	RuleName string
	Status   string // seal.StatusPass | seal.StatusFail
	Detail   string
}

// Verdict is the full output of a policy evaluation.
type Verdict struct {
	Decision seal.Decision
	Reasons  []string
	Rules    []RuleResult
}

// Policy is the stable interface every registered policy implementation
// satisfies. Evaluate MUST be fail-closed: any internal error is reported
// as a REJECT verdict with a reason, never a panic or a default ACCEPT.
type Policy interface {
	ID() string
	Evaluate(payload map[string]interface{}) Verdict
}

// registry is the enumerated policy_id → implementation map, populated at
// package init time. Policies are added here, never mutated in place.
var registry = map[string]Policy{}

func register(p Policy) {
	registry[p.ID()] = p
}

func init() {
	register(legacyPolicy{})
	register(defaultPolicy{})
}

// ErrUnknownPolicy is returned by Lookup when policy_id is not registered.
type ErrUnknownPolicy struct{ PolicyID string }

func (e *ErrUnknownPolicy) Error() string {
	return fmt.Sprintf("policy: unknown policy id %q", e.PolicyID)
}

// DefaultPolicyID is used by the Engine when no policy_id is supplied.
const DefaultPolicyID = "evaluation-policy-v1"

// LegacyPolicyID is used by Replay when a stored output.json predates the
// policy_id field.
const LegacyPolicyID = "mvp-placeholder-v0"

// Lookup resolves a policy id to its implementation, consulting the CEL
// bundle registry (see cel.go) for ids with the "cel:" prefix before
// falling back to the built-in enumerated registry.
func Lookup(policyID string) (Policy, error) {
	if p, ok := celLookup(policyID); ok {
		return p, nil
	}
	p, ok := registry[policyID]
	if !ok {
		return nil, &ErrUnknownPolicy{PolicyID: policyID}
	}
	return p, nil
}
