package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lamont-Labs/VeraSeal/internal/codec"
	"github.com/Lamont-Labs/VeraSeal/internal/invariant"
	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

func acceptRequest() *seal.Request {
	return &seal.Request{
		Version:         "v1",
		Subject:         "s",
		Ruleset:         "r",
		Payload:         []byte(`{"decision_requested":"ACCEPT","justification":"ok"}`),
		InjectedTimeUTC: "2024-01-01T00:00:00Z",
	}
}

// Concrete scenario #1 from spec §8.
func TestEvaluate_AcceptDefaultPolicy(t *testing.T) {
	res, inputSHA, err := Evaluate(acceptRequest(), "")
	require.NoError(t, err)

	assert.Equal(t, seal.Accept, res.Decision)
	assert.Equal(t, inputSHA[:16], res.EvaluationID)
	assert.Len(t, res.InputSHA256, 64)
	assert.Len(t, res.OutputSHA256, 64)
	assert.Empty(t, res.ManifestSHA256)
	assert.Equal(t, "2024-01-01T00:00:00Z", res.CreatedTimeUTC)

	var sawR005 bool
	for _, step := range res.Trace {
		if step.StepName == "rule_R005_record_decision" {
			sawR005 = true
		}
	}
	assert.True(t, sawR005)
}

// Concrete scenario #2 from spec §8.
func TestEvaluate_RejectLegacyPolicy(t *testing.T) {
	req := &seal.Request{
		Version:         "v1",
		Subject:         "s",
		Ruleset:         "r",
		Payload:         []byte(`{"assert":false}`),
		InjectedTimeUTC: "2024-01-01T00:00:00Z",
	}

	res, _, err := Evaluate(req, "mvp-placeholder-v0")
	require.NoError(t, err)
	assert.Equal(t, seal.Reject, res.Decision)
	require.NotEmpty(t, res.Reasons)
	assert.Contains(t, res.Reasons[0], "not true")
}

// Concrete scenario #3 from spec §8: key-order invariance.
func TestEvaluate_KeyOrderInvariance(t *testing.T) {
	req1 := &seal.Request{
		Version: "v1", Subject: "s", Ruleset: "r",
		Payload:         []byte(`{"decision_requested":"ACCEPT","justification":"ok"}`),
		InjectedTimeUTC: "2024-01-01T00:00:00Z",
	}
	req2 := &seal.Request{
		Version: "v1", Subject: "s", Ruleset: "r",
		Payload:         []byte(`{"justification":"ok","decision_requested":"ACCEPT"}`),
		InjectedTimeUTC: "2024-01-01T00:00:00Z",
	}

	res1, _, err := Evaluate(req1, "")
	require.NoError(t, err)
	res2, _, err := Evaluate(req2, "")
	require.NoError(t, err)

	assert.Equal(t, res1.EvaluationID, res2.EvaluationID)
	assert.Equal(t, res1.InputSHA256, res2.InputSHA256)
}

func TestEvaluate_Deterministic(t *testing.T) {
	req := acceptRequest()
	res1, _, err := Evaluate(req, "")
	require.NoError(t, err)
	res2, _, err := Evaluate(req, "")
	require.NoError(t, err)

	assert.Equal(t, res1.EvaluationID, res2.EvaluationID)
	assert.Equal(t, res1.InputSHA256, res2.InputSHA256)
	assert.Equal(t, res1.OutputSHA256, res2.OutputSHA256)
}

func TestEvaluate_RejectsUnknownPolicy(t *testing.T) {
	_, _, err := Evaluate(acceptRequest(), "no-such-policy")
	require.Error(t, err)
}

func TestEvaluate_PreInvariantFailureAbortsBeforePolicy(t *testing.T) {
	req := acceptRequest()
	req.Version = "v2"

	_, _, err := Evaluate(req, "")
	require.Error(t, err)
	var v *invariant.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, invariant.Pre, v.Kind)
}

func TestEvaluate_OutputHashExcludesItsOwnTraceStep(t *testing.T) {
	res, _, err := Evaluate(acceptRequest(), "")
	require.NoError(t, err)

	last := res.Trace[len(res.Trace)-1]
	assert.NotEqual(t, "compute_output_hash", last.StepName, "post-invariant steps must be appended after compute_output_hash")

	var sawComputeHash bool
	hashIdx := -1
	for i, s := range res.Trace {
		if s.StepName == "compute_output_hash" {
			sawComputeHash = true
			hashIdx = i
		}
	}
	assert.True(t, sawComputeHash)
	require.GreaterOrEqual(t, hashIdx, 0)

	outputBytes, err := codec.CanonicalBytes(outputForHash{
		EvaluationID:   res.EvaluationID,
		InputSHA256:    res.InputSHA256,
		PolicyID:       res.PolicyID,
		Decision:       res.Decision,
		Reasons:        res.Reasons,
		Trace:          res.Trace[:hashIdx],
		CreatedTimeUTC: res.CreatedTimeUTC,
	})
	require.NoError(t, err)
	assert.Equal(t, res.OutputSHA256, codec.HashBytes(outputBytes))
}

func TestEvaluate_DifferentRequestsDifferentIDs(t *testing.T) {
	req1 := acceptRequest()
	req2 := acceptRequest()
	req2.Subject = "different-subject"

	res1, _, err := Evaluate(req1, "")
	require.NoError(t, err)
	res2, _, err := Evaluate(req2, "")
	require.NoError(t, err)

	assert.NotEqual(t, res1.EvaluationID, res2.EvaluationID)
}
