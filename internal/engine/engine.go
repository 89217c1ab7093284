// Package engine orchestrates the seal pipeline's pure core: invariants,
// canonicalization, policy evaluation, and output-hash derivation (spec
// §4.5). It is the generalized descendant of Mindburn-Labs/helm's
// pkg/guardian.Guardian.EvaluateDecision orchestration — stripped of PRG
// graph traversal, signing, and budget tracking, and rebuilt around the
// fixed ten-step contract spec §4.5 mandates. The engine performs no I/O and
// reads no clock: every timestamp it emits is the caller-supplied
// injected_time_utc, never time.Now().
package engine

import (
	"fmt"

	"github.com/Lamont-Labs/VeraSeal/internal/codec"
	"github.com/Lamont-Labs/VeraSeal/internal/invariant"
	"github.com/Lamont-Labs/VeraSeal/internal/policy"
	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

// outputForHash is the object whose canonical bytes are hashed to produce
// output_sha256 — spec §4.5 step 8. It mirrors Result's JSON shape minus
// manifest_sha256 (always empty pre-store) and the compute_output_hash trace
// step itself, which is appended only after this hash is computed.
type outputForHash struct {
	EvaluationID   string           `json:"evaluation_id"`
	InputSHA256    string           `json:"input_sha256"`
	PolicyID       string           `json:"policy_id"`
	Decision       seal.Decision    `json:"decision"`
	Reasons        []string         `json:"reasons"`
	Trace          []seal.TraceStep `json:"trace"`
	CreatedTimeUTC string           `json:"created_time_utc"`
}

// Evaluate runs the full ten-step algorithm of spec §4.5 against an
// already schema-validated request. policyID may be empty, in which case
// policy.DefaultPolicyID is used (step 1). Returns the assembled Result and
// the input digest (the two values spec §4.5 step 10 returns), or an error:
// a *policy.ErrUnknownPolicy, an *invariant.Violation, or a wrapped error
// from canonicalizing the request or output or decoding the payload.
func Evaluate(req *seal.Request, policyID string) (*seal.Result, string, error) {
	// Step 1: resolve policy_id.
	if policyID == "" {
		policyID = policy.DefaultPolicyID
	}

	// Step 2: load policy.
	pol, err := policy.Lookup(policyID)
	if err != nil {
		return nil, "", err
	}

	var trace []seal.TraceStep

	// Step 3: pre-invariants.
	preSteps, err := invariant.CheckPre(req)
	trace = append(trace, preSteps...)
	if err != nil {
		return nil, "", err
	}

	// Step 4: canonicalize the request, compute input_sha256.
	inputBytes, err := codec.CanonicalBytes(requestForHash(req))
	if err != nil {
		return nil, "", fmt.Errorf("engine: canonicalize request: %w", err)
	}
	inputSHA256 := codec.HashBytes(inputBytes)

	// Step 5: derive evaluation_id.
	evaluationID := inputSHA256[:16]

	// Step 6: during-invariants.
	trace = append(trace, invariant.CheckDuring()...)

	// Step 7: evaluate policy.
	var payload map[string]interface{}
	if err := decodePayload(req.Payload, &payload); err != nil {
		return nil, "", fmt.Errorf("engine: decode payload: %w", err)
	}
	verdict := pol.Evaluate(payload)
	for _, r := range verdict.Rules {
		trace = append(trace, seal.TraceStep{
			StepName: fmt.Sprintf("rule_%s_%s", r.RuleID, r.RuleName),
			Status:   r.Status,
			Details:  r.Detail,
		})
	}

	// Step 8: build the output-for-hash object over the trace snapshot as
	// it stands before compute_output_hash is appended, then hash it.
	preHashTrace := append([]seal.TraceStep(nil), trace...)
	outObj := outputForHash{
		EvaluationID:   evaluationID,
		InputSHA256:    inputSHA256,
		PolicyID:       pol.ID(),
		Decision:       verdict.Decision,
		Reasons:        verdict.Reasons,
		Trace:          preHashTrace,
		CreatedTimeUTC: req.InjectedTimeUTC,
	}
	outputBytes, err := codec.CanonicalBytes(outObj)
	if err != nil {
		return nil, "", fmt.Errorf("engine: canonicalize output: %w", err)
	}
	outputSHA256 := codec.HashBytes(outputBytes)
	trace = append(trace, seal.TraceStep{
		StepName: "compute_output_hash",
		Status:   seal.StatusPass,
		Details:  "output_sha256=" + outputSHA256,
	})

	// Step 9: assemble the Result; manifest_sha256 is filled by Store.
	result := &seal.Result{
		EvaluationID:   evaluationID,
		InputSHA256:    inputSHA256,
		OutputSHA256:   outputSHA256,
		ManifestSHA256: "",
		PolicyID:       pol.ID(),
		Decision:       verdict.Decision,
		Reasons:        verdict.Reasons,
		Trace:          trace,
		CreatedTimeUTC: req.InjectedTimeUTC,
	}

	// Step 10: post-invariants.
	postSteps, err := invariant.CheckPost(result)
	result.Trace = append(result.Trace, postSteps...)
	if err != nil {
		return nil, "", err
	}

	return result, inputSHA256, nil
}

// requestForHash is the canonical-hash projection of a Request: the exact
// five wire fields of spec §3, in struct-tag order (struct field order does
// not matter to CanonicalBytes — key sorting does — but keeping it aligned
// with the wire shape keeps input.json's on-disk bytes identical to this
// hash input, per Store's "write input.json (canonical bytes of the
// request)" contract in spec §4.6).
func requestForHash(req *seal.Request) map[string]interface{} {
	var payload interface{}
	_ = decodePayload(req.Payload, &payload)
	return map[string]interface{}{
		"version":           req.Version,
		"subject":           req.Subject,
		"ruleset":           req.Ruleset,
		"payload":           payload,
		"injected_time_utc": req.InjectedTimeUTC,
	}
}

func decodePayload(raw []byte, out interface{}) error {
	return codec.DecodeJSONNumber(raw, out)
}
