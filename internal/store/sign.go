package store

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// Signer produces a detached signature over a bundle's bytes, for the
// optional bundle-signing feature the boundary layer's bundle endpoint may
// expose (spec's dependency-wiring table: "internal/store optional bundle
// signing (Sign(bundle) -> sig) for the bundle endpoint"). Signing is
// strictly additive: a Store with no Signer configured behaves exactly as
// before, and BundleWithSignature without a Signer simply returns a nil
// signature rather than erroring.
type Signer interface {
	Sign(data []byte) []byte
	PublicKey() ed25519.PublicKey
}

// Ed25519Signer is an in-memory ed25519 Signer, grounded on
// pkg/governance/keyring.go's MemoryKeyProvider — narrowed to the single
// sign/verify operation the bundle endpoint needs, with the HKDF
// tenant-derivation machinery dropped (this system has no tenant concept).
type Ed25519Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewEd25519Signer generates a fresh keypair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("store: generate ed25519 key: %w", err)
	}
	return &Ed25519Signer{pub: pub, priv: priv}, nil
}

// NewEd25519SignerFromSeed reconstructs a signer from a 32-byte seed, so a
// deployment can pin a stable signing identity across restarts.
func NewEd25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("store: ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Signer{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

func (s *Ed25519Signer) Sign(data []byte) []byte     { return ed25519.Sign(s.priv, data) }
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey { return s.pub }

// SetSigner configures s to sign bundles produced by BundleWithSignature.
// A nil signer (the zero value) disables signing.
func (s *Store) SetSigner(signer Signer) {
	s.signer = signer
}

// BundleWithSignature produces the same deterministic ZIP Bundle does, plus
// a detached ed25519 signature over it when a Signer is configured. The
// signature is nil, not an error, when no Signer is set.
func (s *Store) BundleWithSignature(id string) (bundle []byte, signature []byte, err error) {
	bundle, err = s.Bundle(id)
	if err != nil {
		return nil, nil, err
	}
	if s.signer == nil {
		return bundle, nil, nil
	}
	return bundle, s.signer.Sign(bundle), nil
}
