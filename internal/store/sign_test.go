package store

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lamont-Labs/VeraSeal/internal/engine"
)

func TestBundleWithSignature_NilSignerReturnsNilSignature(t *testing.T) {
	s := newTempStore(t)
	req := acceptRequest()
	res, _, err := engine.Evaluate(req, "")
	require.NoError(t, err)
	_, err = s.Persist(req, res)
	require.NoError(t, err)

	bundle, sig, err := s.BundleWithSignature(res.EvaluationID)
	require.NoError(t, err)
	assert.NotEmpty(t, bundle)
	assert.Nil(t, sig)
}

func TestBundleWithSignature_ValidSignatureWhenSignerConfigured(t *testing.T) {
	s := newTempStore(t)
	req := acceptRequest()
	res, _, err := engine.Evaluate(req, "")
	require.NoError(t, err)
	_, err = s.Persist(req, res)
	require.NoError(t, err)

	signer, err := NewEd25519Signer()
	require.NoError(t, err)
	s.SetSigner(signer)

	bundle, sig, err := s.BundleWithSignature(res.EvaluationID)
	require.NoError(t, err)
	require.NotEmpty(t, sig)
	assert.True(t, ed25519.Verify(signer.PublicKey(), bundle, sig))
}

func TestNewEd25519SignerFromSeed_RejectsWrongLength(t *testing.T) {
	_, err := NewEd25519SignerFromSeed([]byte("too-short"))
	require.Error(t, err)
}

func TestNewEd25519SignerFromSeed_IsDeterministic(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	s1, err := NewEd25519SignerFromSeed(seed)
	require.NoError(t, err)
	s2, err := NewEd25519SignerFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, s1.PublicKey(), s2.PublicKey())
}
