// Package replay re-runs a stored evaluation through the same Engine code
// path used for fresh evaluation and reports whether the recomputed values
// match the stored ones (spec §4.7). Grounded on Mindburn-Labs/helm's
// pkg/verifier package — a dependency-light "compare checks, collect a
// report" shape — but, per spec §9's explicit decoupling rule, it never
// forks Engine's logic: Replay calls engine.Evaluate directly.
package replay

import (
	"encoding/json"
	"fmt"

	"github.com/Lamont-Labs/VeraSeal/internal/engine"
	"github.com/Lamont-Labs/VeraSeal/internal/policy"
	"github.com/Lamont-Labs/VeraSeal/internal/schema"
	"github.com/Lamont-Labs/VeraSeal/internal/seal"
	"github.com/Lamont-Labs/VeraSeal/internal/store"
)

// Loader is the subset of *store.Store Replay needs, so it can be tested
// against a fake without a real filesystem.
type Loader interface {
	Load(id string) (*store.Loaded, error)
}

// Run performs the seven steps of spec §4.7 against evaluation id, using s
// to load the previously committed triple.
func Run(s Loader, id string) (*seal.ReplayVerdict, error) {
	loaded, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if loaded.Input == nil || loaded.Output == nil || loaded.Manifest == nil {
		return &seal.ReplayVerdict{ReplayOK: false, Mismatches: []string{"stored evaluation is missing one or more required files"}}, nil
	}

	savedReq, err := schema.Validate(loaded.Input)
	if err != nil {
		return &seal.ReplayVerdict{
			ReplayOK:   false,
			Mismatches: []string{"failed to parse saved input: " + err.Error()},
		}, nil
	}

	savedOutput, policyID, mismatchesSoFar := parseSavedOutput(loaded.Output)
	if policyID == "" {
		policyID = policy.LegacyPolicyID
	}

	recomputed, recomputedInputSHA256, err := engine.Evaluate(savedReq, policyID)
	if err != nil {
		return &seal.ReplayVerdict{
			ReplayOK:   false,
			Mismatches: append(mismatchesSoFar, "failed to re-evaluate: "+err.Error()),
		}, nil
	}

	var mismatches []string
	mismatches = append(mismatches, mismatchesSoFar...)

	if recomputed.EvaluationID != id {
		mismatches = append(mismatches, fmt.Sprintf("evaluation_id: folder=%s recomputed=%s", id, recomputed.EvaluationID))
	}
	if savedOutput.InputSHA256 != recomputedInputSHA256 {
		mismatches = append(mismatches, fmt.Sprintf("input_sha256: saved=%s recomputed=%s", savedOutput.InputSHA256, recomputedInputSHA256))
	}
	if savedOutput.OutputSHA256 != recomputed.OutputSHA256 {
		mismatches = append(mismatches, fmt.Sprintf("output_sha256: saved=%s recomputed=%s", savedOutput.OutputSHA256, recomputed.OutputSHA256))
	}
	if savedOutput.Decision != recomputed.Decision {
		mismatches = append(mismatches, fmt.Sprintf("decision: saved=%s recomputed=%s", savedOutput.Decision, recomputed.Decision))
	}
	if savedOutput.PolicyID != recomputed.PolicyID {
		mismatches = append(mismatches, fmt.Sprintf("policy_id: saved=%s recomputed=%s", savedOutput.PolicyID, recomputed.PolicyID))
	}

	return &seal.ReplayVerdict{ReplayOK: len(mismatches) == 0, Mismatches: mismatches}, nil
}

// parseSavedOutput decodes the stored output.json into a comparable shape.
// A malformed output.json is itself reported as a mismatch rather than an
// error, since tamper of output.json is an expected adversarial input this
// function exists to detect (spec §4.7 tamper semantics).
func parseSavedOutput(raw []byte) (seal.OutputProjection, string, []string) {
	var out seal.OutputProjection
	if err := json.Unmarshal(raw, &out); err != nil {
		return seal.OutputProjection{}, "", []string{"failed to parse saved output: " + err.Error()}
	}
	return out, out.PolicyID, nil
}
