// Package s3 stores raw breakdown payloads in an S3 bucket, one object
// per ingested event.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	breakdown "fleetops-cloud/internal/breakdown/domain"
)

const defaultTimeout = 10 * time.Second

// Config configures the raw archive bucket.
type Config struct {
	// Bucket receives the raw payload objects.
	Bucket string

	// Prefix is prepended to all object keys (e.g. "raw/").
	Prefix string

	// Region is the AWS region.
	Region string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services).
	Endpoint string

	// Credentials (optional, default chain applies when empty).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack).
	UsePathStyle bool

	// Timeout bounds a single archive write.
	Timeout time.Duration
}

// Archiver writes raw payloads as immutable JSON objects keyed by
// event identifier.
type Archiver struct {
	client  *awss3.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewArchiver builds the S3-backed raw archiver.
func NewArchiver(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 archiver: empty bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 archiver: load aws config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Archiver{
		client:  awss3.NewFromConfig(awsCfg, s3Opts...),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		timeout: timeout,
	}, nil
}

func (a *Archiver) key(eventID string) string {
	return a.prefix + eventID + ".json"
}

// Archive writes the raw payload under the event's key. The payload is
// stored as received; failures surface as storage unavailability.
func (a *Archiver) Archive(ctx context.Context, eventID string, raw []byte) error {
	if eventID == "" {
		return errors.New("s3 archiver: empty event id")
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	_, err := a.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(eventID)),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("%w: archive %s: %v", breakdown.ErrStorageUnavailable, eventID, err)
	}
	return nil
}
