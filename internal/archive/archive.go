// internal/archive/archive.go
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/javajoker/commission-backend/internal/config"
)

// Archiver stores raw webhook bodies for audit.
type Archiver interface {
	Archive(ctx context.Context, provider, eventID string, body []byte) (string, error)
}

type S3Archiver struct {
	client s3iface.S3API
	bucket string
	now    func() time.Time
}

// New returns a no-op archiver when no bucket is configured.
func New(cfg config.AWSConfig) (Archiver, error) {
	if cfg.ArchiveBucket == "" {
		return Noop{}, nil
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3Archiver(s3.New(sess), cfg.ArchiveBucket), nil
}

func NewS3Archiver(client s3iface.S3API, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, now: time.Now}
}

// Key layout: webhooks/<provider>/<yyyy>/<mm>/<dd>/<event id>.json
func (a *S3Archiver) Key(provider, eventID string) string {
	day := a.now().UTC().Format("2006/01/02")
	safe := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(eventID)
	return fmt.Sprintf("webhooks/%s/%s/%s.json", provider, day, safe)
}

func (a *S3Archiver) Archive(ctx context.Context, provider, eventID string, body []byte) (string, error) {
	key := a.Key(provider, eventID)
	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive webhook: %w", err)
	}
	return key, nil
}

type Noop struct{}

func (Noop) Archive(context.Context, string, string, []byte) (string, error) { return "", nil }
