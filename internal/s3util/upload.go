package s3util

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectPutter is the subset of *s3.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadReport writes an exported report to bucket/key with the project tag.
func UploadReport(ctx context.Context, client ObjectPutter, bucket, key, contentType string, body []byte) error {
	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Str("content_type", contentType).
		Int("bytes", len(body)).
		Msg("Uploading report to S3")

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report to S3: %w", err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Msg("Report uploaded to S3")
	return nil
}

// ReportKey builds the object key for a report exported at t.
func ReportKey(prefix, name string, t time.Time) string {
	return fmt.Sprintf("%s/%s/%s", prefix, t.UTC().Format("2006-01-02"), name)
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient *s3.PresignClient, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
