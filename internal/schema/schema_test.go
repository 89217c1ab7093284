package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsWellFormedRequest(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {"decision_requested": "ACCEPT", "justification": "ok"},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	req, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "v1", req.Version)
	assert.Equal(t, "s", req.Subject)
	assert.Equal(t, "r", req.Ruleset)
}

func TestValidate_RejectsExtraTopLevelField(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {},
		"injected_time_utc": "2024-01-01T00:00:00Z",
		"extra": "nope"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.NotEmpty(t, ve.Errors)
}

func TestValidate_RejectsWrongVersion(t *testing.T) {
	raw := []byte(`{
		"version": "v2",
		"subject": "s",
		"ruleset": "r",
		"payload": {},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidate_RejectsEmptySubject(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "",
		"ruleset": "r",
		"payload": {},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidate_RejectsMalformedTimestamp(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {},
		"injected_time_utc": "not-a-time"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidate_RejectsNaNInPayload(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {"v": NaN},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "payload.v", ve.Errors[0].Field)
	assert.Equal(t, KindInvalidValue, ve.Errors[0].Kind)
}

func TestValidate_RejectsInfinityInPayload(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {"v": Infinity},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "payload.v", ve.Errors[0].Field)
	assert.Equal(t, KindInvalidValue, ve.Errors[0].Kind)
}

func TestValidate_RejectsNegativeInfinityInPayload(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {"v": -Infinity},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
	ve, ok := err.(*ValidationError)
	require.True(t, ok)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "payload.v", ve.Errors[0].Field)
	assert.Equal(t, KindInvalidValue, ve.Errors[0].Kind)
}

func TestValidate_AcceptsLiteralStringNaN(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {"v": "NaN"},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.NoError(t, err)
}

func TestValidate_RejectsNonObjectPayload(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": "not-an-object",
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.Error(t, err)
}

func TestValidate_AcceptsNestedPayload(t *testing.T) {
	raw := []byte(`{
		"version": "v1",
		"subject": "s",
		"ruleset": "r",
		"payload": {"a": {"b": [1, 2.5, "x", null, true]}},
		"injected_time_utc": "2024-01-01T00:00:00Z"
	}`)

	_, err := Validate(raw)
	require.NoError(t, err)
}
