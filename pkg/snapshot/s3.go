package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/config"
	"github.com/mlcomp/mlboard/pkg/source"
)

// writeTestKey is the object written by Preflight.
const writeTestKey = ".mlboard-write-test"

// Compile-time interface check.
var _ Writer = (*s3Writer)(nil)

// objectPutter is the part of the S3 client used by s3Writer.
type objectPutter interface {
	PutObject(
		ctx context.Context,
		params *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

type s3Writer struct {
	log    logrus.FieldLogger
	client objectPutter
	bucket string
	key    string
}

// NewS3Writer creates a Writer that uploads the snapshot as one object.
func NewS3Writer(log logrus.FieldLogger, cfg *config.S3SourceConfig) Writer {
	return &s3Writer{
		log:    log.WithField("component", "snapshot-s3"),
		client: source.NewS3Client(cfg),
		bucket: cfg.Bucket,
		key:    strings.TrimLeft(cfg.Key, "/"),
	}
}

// Preflight verifies S3 connectivity by writing a small test object next
// to the snapshot key.
func (w *s3Writer) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("mlboard write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.testKey()),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", w.bucket, err)
	}

	return nil
}

func (w *s3Writer) Write(ctx context.Context, data []byte) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(w.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"bucket": w.bucket,
		"key":    w.key,
		"bytes":  len(data),
	}).Debug("Snapshot uploaded")

	return nil
}

func (w *s3Writer) Location() string {
	return "s3://" + w.bucket + "/" + w.key
}

// testKey places the write test object in the snapshot's "directory".
func (w *s3Writer) testKey() string {
	if i := strings.LastIndex(w.key, "/"); i >= 0 {
		return w.key[:i+1] + writeTestKey
	}

	return writeTestKey
}
