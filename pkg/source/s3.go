package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mlcomp/mlboard/pkg/config"
)

// Compile-time interface check.
var _ Source = (*s3Source)(nil)

// objectGetter is the part of the S3 client used by s3Source.
type objectGetter interface {
	GetObject(
		ctx context.Context,
		params *s3.GetObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.GetObjectOutput, error)
}

type s3Source struct {
	name   string
	client objectGetter
	bucket string
	key    string
}

// NewS3Source creates a Source reading a tree snapshot object from
// S3-compatible storage.
func NewS3Source(name string, cfg *config.S3SourceConfig) Source {
	return &s3Source{
		name:   name,
		client: NewS3Client(cfg),
		bucket: cfg.Bucket,
		key:    strings.TrimLeft(cfg.Key, "/"),
	}
}

// Name returns the mount prefix.
func (s *s3Source) Name() string {
	return s.name
}

// Fetch downloads the snapshot object.
func (s *s3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, s.key)
		}

		return nil, fmt.Errorf("getting object %q: %w", s.key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", s.key, err)
	}

	return data, nil
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

// NewS3Client builds an S3 client for cfg, falling back to the default
// region and the ambient credential chain.
func NewS3Client(cfg *config.S3SourceConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		if o.Region == "" {
			o.Region = config.DefaultS3Region
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		o.UsePathStyle = cfg.ForcePathStyle

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}
