package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalBytes_KeyOrdering(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1}
	b := map[string]interface{}{"a": 1, "b": 2}

	ab, err := CanonicalBytes(a)
	require.NoError(t, err)
	bb, err := CanonicalBytes(b)
	require.NoError(t, err)

	assert.Equal(t, string(ab), string(bb))
	assert.Equal(t, `{"a":1,"b":2}`, string(ab))
}

func TestCanonicalBytes_NestedKeyOrdering(t *testing.T) {
	v := map[string]interface{}{
		"x": map[string]interface{}{"z": 10, "y": 5},
	}
	b, err := CanonicalBytes(v)
	require.NoError(t, err)
	assert.Equal(t, `{"x":{"y":5,"z":10}}`, string(b))
}

func TestCanonicalBytes_Idempotent(t *testing.T) {
	v := map[string]interface{}{"k": []interface{}{1, "two", true, nil}}
	b1, err := CanonicalBytes(v)
	require.NoError(t, err)
	b2, err := CanonicalBytes(v)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestCanonicalBytes_IntegerVsFloat(t *testing.T) {
	intVal, err := CanonicalBytes(map[string]interface{}{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(intVal))

	floatVal, err := CanonicalBytes(map[string]interface{}{"n": 1.5})
	require.NoError(t, err)
	assert.Equal(t, `{"n":1.5}`, string(floatVal))
}

func TestCanonicalBytes_InfinityRejected(t *testing.T) {
	type holder struct {
		V float64 `json:"v"`
	}
	_, err := CanonicalBytes(holder{V: func() float64 { var z float64; return 1 / z }()})
	// 1/z with a zero float64 variable yields +Inf at run time in Go,
	// which json.Marshal already rejects before we ever see it.
	require.Error(t, err)
}

func TestCanonicalBytes_NonASCIIPreserved(t *testing.T) {
	b, err := CanonicalBytes(map[string]interface{}{"name": "héllo"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"héllo"}`, string(b))
}

func TestDigest_Deterministic(t *testing.T) {
	v := map[string]interface{}{"a": 1, "b": []interface{}{"x", "y"}}
	d1, err := Digest(v)
	require.NoError(t, err)
	d2, err := Digest(v)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestHashBytes_KnownVector(t *testing.T) {
	// SHA-256("") — a stable cross-platform vector.
	got := HashBytes([]byte(""))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)
	assert.Len(t, got, 64)
}
