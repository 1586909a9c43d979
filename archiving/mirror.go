package archiving

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Mirror optionally uploads a local archive file to S3, a supplement
// over the distilled spec offering off-site redundancy for local
// snapshots. Grounded on storage/s3aws.go's upload pattern
// (config.LoadDefaultConfig → s3.NewFromConfig → manager.NewUploader →
// PutObject), scoped down from that file's multi-cloud/MD5/bulk-sync
// surface to the one operation this daemon needs.
type Mirror struct {
	uploader *manager.Uploader
	bucket   string
}

// NewMirror builds a Mirror for bucket in region. Returns nil, nil if
// bucket is empty — callers treat a nil Mirror as "mirroring disabled".
func NewMirror(ctx context.Context, bucket, region string) (*Mirror, error) {
	if bucket == "" {
		return nil, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Mirror{uploader: manager.NewUploader(client), bucket: bucket}, nil
}

// Upload copies the file at localPath to objectKey in the mirror
// bucket.
func (m *Mirror) Upload(ctx context.Context, localPath, objectKey string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s for mirroring: %w", localPath, err)
	}
	defer file.Close()

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(objectKey),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("upload %s to s3://%s/%s: %w", localPath, m.bucket, objectKey, err)
	}
	return nil
}
