package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend replicates bundles to an S3 bucket, one object per evaluation
// id under an optional key prefix.
type S3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Backend loads the default AWS config (region, credentials) from the
// environment and constructs a client for bucket, matching
// pkg/artifacts/s3_store.go's NewS3Store.
func NewS3Backend(bucket, prefix string) (*S3Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}
	return &S3Backend{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Replicate uploads data under key <prefix><evaluationID>.zip, overwriting
// any existing object (bundles for a given id are always byte-identical,
// per spec §4.6, so overwrite is harmless).
func (b *S3Backend) Replicate(ctx context.Context, evaluationID string, data []byte) error {
	key := b.prefix + evaluationID + ".zip"
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}
	return nil
}
