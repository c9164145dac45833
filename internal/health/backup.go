package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bbab/servicecenter/internal/models"
)

const defaultBackupTimeout = 30 * time.Second

// ErrBackupNotConfigured marks an organization without a backup bucket.
var ErrBackupNotConfigured = errors.New("backup: not configured")

// ObjectLister is the subset of the S3 API the backup fetcher needs.
type ObjectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// BackupStorageConfig describes the object storage endpoint holding backups.
type BackupStorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// BackupLister inspects an organization's backup bucket and reports the
// newest object, from which backup freshness is derived.
type BackupLister struct {
	client  ObjectLister
	timeout time.Duration
	now     func() time.Time
}

// NewBackupLister builds a fetcher backed by an S3-compatible endpoint.
func NewBackupLister(ctx context.Context, cfg BackupStorageConfig) (*BackupLister, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("backup: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewBackupListerWithClient(client, cfg.Timeout), nil
}

// NewBackupListerWithClient wires an existing client, primarily for tests.
func NewBackupListerWithClient(client ObjectLister, timeout time.Duration) *BackupLister {
	if timeout <= 0 {
		timeout = defaultBackupTimeout
	}
	return &BackupLister{client: client, timeout: timeout, now: time.Now}
}

// WithClock overrides the clock, primarily for tests.
func (l *BackupLister) WithClock(now func() time.Time) *BackupLister {
	if now != nil {
		l.now = now
	}
	return l
}

// Fetch lists the organization's backup prefix and returns the newest object.
func (l *BackupLister) Fetch(ctx context.Context, org models.Organization) (*BackupResult, error) {
	bucket := strings.TrimSpace(org.BackupBucket)
	if bucket == "" {
		return nil, ErrBackupNotConfigured
	}
	if l.client == nil {
		return nil, errors.New("backup: storage client not initialised")
	}

	listCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix := strings.TrimSpace(org.BackupPrefix); prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var newest *BackupResult
	paginator := s3.NewListObjectsV2Paginator(l.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(listCtx)
		if err != nil {
			return nil, fmt.Errorf("backup: list bucket %s: %w", bucket, err)
		}

		for _, object := range page.Contents {
			if object.Key == nil || object.LastModified == nil {
				continue
			}
			if newest == nil || object.LastModified.After(newest.ModifiedAt) {
				newest = &BackupResult{
					Bucket:     bucket,
					NewestKey:  aws.ToString(object.Key),
					SizeBytes:  aws.ToInt64(object.Size),
					ModifiedAt: *object.LastModified,
				}
			}
		}
	}

	if newest == nil {
		return nil, fmt.Errorf("backup: no objects found in bucket %s", bucket)
	}

	newest.AgeHours = l.now().Sub(newest.ModifiedAt).Hours()
	return newest, nil
}
