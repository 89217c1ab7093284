package policy

import (
	"strings"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

// defaultPolicy is "evaluation-policy-v1": five sequential rules, fail-closed
// at the first failure (spec §4.3).
type defaultPolicy struct{}

func (defaultPolicy) ID() string { return DefaultPolicyID }

func (defaultPolicy) Evaluate(payload map[string]interface{}) Verdict {
	var rules []RuleResult

	raw, present := payload["decision_requested"]
	if !present {
		rules = append(rules, RuleResult{
			RuleID: "R001", RuleName: "decision_requested_present",
			Status: seal.StatusFail, Detail: "decision_requested is missing",
		})
		return Verdict{Decision: seal.Reject, Reasons: []string{"decision_requested is missing"}, Rules: rules}
	}
	rules = append(rules, RuleResult{
		RuleID: "R001", RuleName: "decision_requested_present",
		Status: seal.StatusPass, Detail: "decision_requested is present",
	})

	requested, ok := raw.(string)
	if !ok || (requested != string(seal.Accept) && requested != string(seal.Reject)) {
		rules = append(rules, RuleResult{
			RuleID: "R002", RuleName: "decision_requested_valid",
			Status: seal.StatusFail, Detail: "decision_requested is not one of ACCEPT, REJECT",
		})
		return Verdict{Decision: seal.Reject, Reasons: []string{"decision_requested is not one of ACCEPT, REJECT"}, Rules: rules}
	}
	rules = append(rules, RuleResult{
		RuleID: "R002", RuleName: "decision_requested_valid",
		Status: seal.StatusPass, Detail: "decision_requested is " + requested,
	})

	justRaw, present := payload["justification"]
	if !present {
		rules = append(rules, RuleResult{
			RuleID: "R003", RuleName: "justification_present",
			Status: seal.StatusFail, Detail: "justification is missing",
		})
		return Verdict{Decision: seal.Reject, Reasons: []string{"justification is missing"}, Rules: rules}
	}
	rules = append(rules, RuleResult{
		RuleID: "R003", RuleName: "justification_present",
		Status: seal.StatusPass, Detail: "justification is present",
	})

	justification, ok := justRaw.(string)
	if !ok || strings.TrimSpace(justification) == "" {
		rules = append(rules, RuleResult{
			RuleID: "R004", RuleName: "justification_non_blank",
			Status: seal.StatusFail, Detail: "justification has no non-whitespace character",
		})
		return Verdict{Decision: seal.Reject, Reasons: []string{"justification has no non-whitespace character"}, Rules: rules}
	}
	rules = append(rules, RuleResult{
		RuleID: "R004", RuleName: "justification_non_blank",
		Status: seal.StatusPass, Detail: "justification is non-blank",
	})

	decision := seal.Accept
	if requested == string(seal.Reject) {
		decision = seal.Reject
	}
	rules = append(rules, RuleResult{
		RuleID: "R005", RuleName: "record_decision",
		Status: seal.StatusPass, Detail: "verdict recorded as " + requested,
	})

	return Verdict{
		Decision: decision,
		Reasons:  []string{"decision_requested honored: " + requested},
		Rules:    rules,
	}
}
