package invariant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

func validRequest() *seal.Request {
	return &seal.Request{
		Version:         "v1",
		Subject:         "s",
		Ruleset:         "r",
		Payload:         []byte(`{"a":1}`),
		InjectedTimeUTC: "2024-01-01T00:00:00Z",
	}
}

func TestCheckPre_AcceptsValidRequest(t *testing.T) {
	steps, err := CheckPre(validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, steps)
	for _, s := range steps {
		assert.Equal(t, seal.StatusPass, s.Status)
	}
}

func TestCheckPre_RejectsWrongVersion(t *testing.T) {
	req := validRequest()
	req.Version = "v2"
	_, err := CheckPre(req)
	require.Error(t, err)
	var v *Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, Pre, v.Kind)
}

func TestCheckPre_RejectsEmptySubject(t *testing.T) {
	req := validRequest()
	req.Subject = ""
	_, err := CheckPre(req)
	require.Error(t, err)
}

func TestCheckPre_RejectsMalformedTimestamp(t *testing.T) {
	req := validRequest()
	req.InjectedTimeUTC = "not-a-time"
	_, err := CheckPre(req)
	require.Error(t, err)
}

func TestCheckDuring_ReturnsAdvisoryStep(t *testing.T) {
	steps := CheckDuring()
	require.Len(t, steps, 1)
	assert.Equal(t, seal.StatusPass, steps[0].Status)
}

func validResult() *seal.Result {
	return &seal.Result{
		EvaluationID: "abcdef0123456789",
		InputSHA256:  "abcdef0123456789" + "000000000000000000000000000000000000000000000000",
		OutputSHA256: "0123456789abcdef" + "000000000000000000000000000000000000000000000000",
		PolicyID:     "evaluation-policy-v1",
		Decision:     seal.Accept,
		Reasons:      []string{"ok"},
	}
}

func TestCheckPost_AcceptsValidResult(t *testing.T) {
	res := validResult()
	steps, err := CheckPost(res)
	require.NoError(t, err)
	assert.NotEmpty(t, steps)
}

func TestCheckPost_RejectsBadDigestLength(t *testing.T) {
	res := validResult()
	res.InputSHA256 = "short"
	_, err := CheckPost(res)
	require.Error(t, err)
	var v *Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, Post, v.Kind)
}

func TestCheckPost_RejectsMismatchedEvaluationID(t *testing.T) {
	res := validResult()
	res.EvaluationID = "0000000000000000"
	_, err := CheckPost(res)
	require.Error(t, err)
}

func TestCheckPost_RejectsEmptyReasons(t *testing.T) {
	res := validResult()
	res.Reasons = nil
	_, err := CheckPost(res)
	require.Error(t, err)
}

func TestCheckPost_RejectsInvalidDecision(t *testing.T) {
	res := validResult()
	res.Decision = "MAYBE"
	_, err := CheckPost(res)
	require.Error(t, err)
}
