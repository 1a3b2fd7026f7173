package backup

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the subset of *s3.Client the sink uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads snapshots to an S3 bucket (or a MinIO endpoint).
type S3Sink struct {
	client putObjectAPI
	bucket string
	prefix string
}

// S3Opts holds parameters for creating an S3Sink.
type S3Opts struct {
	Bucket    string
	Region    string // defaults to us-east-1
	Endpoint  string // optional custom endpoint
	Prefix    string
	PathStyle bool
	// For testing: inject a client instead of loading AWS config.
	Client putObjectAPI
}

// NewS3Sink creates an S3Sink. Credentials come from the default AWS chain.
func NewS3Sink(ctx context.Context, opts S3Opts) (*S3Sink, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("backup: s3 bucket is required")
	}
	client := opts.Client
	if client == nil {
		region := opts.Region
		if region == "" {
			region = "us-east-1"
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("backup: load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.UsePathStyle = opts.PathStyle
			if opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.Endpoint)
			}
		})
	}
	return &S3Sink{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3" }

// Key returns the object key for a snapshot name.
func (s *S3Sink) Key(name string) string { return s.prefix + name }

// Put implements Sink.
func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.Key(name), err)
	}
	return nil
}
