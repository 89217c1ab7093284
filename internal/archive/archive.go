// Package archive replicates a finalized evaluation bundle (see
// internal/store.Bundle) to an off-site object store after it is produced.
// Replication is a pure fire-and-forget side channel: a failure is logged,
// never raised to the caller, and never blocks bundle generation — the
// object store is a durability nice-to-have, not a requirement of the
// filesystem store.
//
// Grounded on Mindburn-Labs/helm's pkg/artifacts/s3_store.go and
// pkg/artifacts/gcs_store.go, generalized from arbitrary blob storage to
// whole-bundle replication: objects are keyed by evaluation id
// ("<prefix><evaluation_id>.zip"), not by content digest, with one
// Replicator interface shared by both backends and selected by URL scheme
// instead of being wired up by the caller directly.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Replicator uploads a finalized bundle's bytes under a key derived from
// the evaluation id and returns any upload error.
type Replicator interface {
	Replicate(ctx context.Context, evaluationID string, data []byte) error
}

// Archiver wraps a Replicator with the fire-and-forget discipline: callers
// use ReplicateBestEffort, never Replicator.Replicate, directly.
type Archiver struct {
	backend Replicator
	logger  *slog.Logger
}

// New selects a backend by URL scheme ("s3://bucket/prefix" or
// "gs://bucket/prefix"). An empty url disables archiving: the returned
// Archiver's ReplicateBestEffort becomes a no-op.
func New(url string, logger *slog.Logger) (*Archiver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "archive")

	if url == "" {
		return &Archiver{backend: nil, logger: logger}, nil
	}

	switch {
	case strings.HasPrefix(url, "s3://"):
		bucket, prefix := parseBucketURL(url, "s3://")
		backend, err := NewS3Backend(bucket, prefix)
		if err != nil {
			return nil, fmt.Errorf("archive: new s3 backend: %w", err)
		}
		return &Archiver{backend: backend, logger: logger}, nil
	case strings.HasPrefix(url, "gs://"):
		bucket, prefix := parseBucketURL(url, "gs://")
		backend, err := newGCSBackend(bucket, prefix)
		if err != nil {
			return nil, fmt.Errorf("archive: new gcs backend: %w", err)
		}
		return &Archiver{backend: backend, logger: logger}, nil
	default:
		return nil, fmt.Errorf("archive: unsupported archive url scheme: %q", url)
	}
}

func parseBucketURL(url, scheme string) (bucket, prefix string) {
	rest := strings.TrimPrefix(url, scheme)
	parts := strings.SplitN(rest, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// ReplicateBestEffort replicates data for evaluationID, logging and
// discarding any error. Safe to call even when archiving is disabled.
func (a *Archiver) ReplicateBestEffort(ctx context.Context, evaluationID string, data []byte) {
	if a.backend == nil {
		return
	}
	if err := a.backend.Replicate(ctx, evaluationID, data); err != nil {
		a.logger.WarnContext(ctx, "bundle replication failed", "evaluation_id", evaluationID, "error", err)
	}
}
