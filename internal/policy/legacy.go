package policy

import "github.com/Lamont-Labs/VeraSeal/internal/seal"

// legacyPolicy is the "mvp-placeholder-v0" variant of spec §4.3:
// assert==true ⇒ ACCEPT, else REJECT with a reason naming the cause.
type legacyPolicy struct{}

func (legacyPolicy) ID() string { return LegacyPolicyID }

func (legacyPolicy) Evaluate(payload map[string]interface{}) Verdict {
	raw, present := payload["assert"]
	if !present {
		return Verdict{
			Decision: seal.Reject,
			Reasons:  []string{"assert key missing"},
			Rules: []RuleResult{{
				RuleID: "L001", RuleName: "assert_present",
				Status: seal.StatusFail, Detail: "assert key missing from payload",
			}},
		}
	}

	assertVal, ok := raw.(bool)
	if !ok {
		return Verdict{
			Decision: seal.Reject,
			Reasons:  []string{"assert is not a boolean"},
			Rules: []RuleResult{{
				RuleID: "L001", RuleName: "assert_present",
				Status: seal.StatusPass, Detail: "assert key present",
			}, {
				RuleID: "L002", RuleName: "assert_is_true",
				Status: seal.StatusFail, Detail: "assert value is not a boolean",
			}},
		}
	}

	if !assertVal {
		return Verdict{
			Decision: seal.Reject,
			Reasons:  []string{"assert value is not true"},
			Rules: []RuleResult{{
				RuleID: "L001", RuleName: "assert_present",
				Status: seal.StatusPass, Detail: "assert key present",
			}, {
				RuleID: "L002", RuleName: "assert_is_true",
				Status: seal.StatusFail, Detail: "assert value is false",
			}},
		}
	}

	return Verdict{
		Decision: seal.Accept,
		Reasons:  []string{"assert is true"},
		Rules: []RuleResult{{
			RuleID: "L001", RuleName: "assert_present",
			Status: seal.StatusPass, Detail: "assert key present",
		}, {
			RuleID: "L002", RuleName: "assert_is_true",
			Status: seal.StatusPass, Detail: "assert value is true",
		}},
	}
}
