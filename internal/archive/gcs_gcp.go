//go:build gcp

package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSBackend replicates bundles to a GCS bucket, one object per evaluation
// id under an optional key prefix. Built only with the "gcp" build tag, the
// way pkg/artifacts/gcs_store.go gates its GCS client behind the same tag so
// non-GCP deployments don't pull in the dependency.
type GCSBackend struct {
	client *storage.Client
	bucket string
	prefix string
}

func newGCSBackend(bucket, prefix string) (*GCSBackend, error) {
	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("archive: new gcs client: %w", err)
	}
	return &GCSBackend{client: client, bucket: bucket, prefix: prefix}, nil
}

// Replicate uploads data under key <prefix><evaluationID>.zip.
func (b *GCSBackend) Replicate(ctx context.Context, evaluationID string, data []byte) error {
	key := b.prefix + evaluationID + ".zip"
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/zip"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive: gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive: gcs close %s: %w", key, err)
	}
	return nil
}
