package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/checksum"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

// Destination stores finished archives somewhere off the machine.
type Destination interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, fingerprint string) error
}

// S3Destination writes archives to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, region, endpoint string) (*S3Destination, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{client: s3.NewFromConfig(cfg, s3opts...), bucket: bucket}, nil
}

// Put uploads one archive under key.
func (d *S3Destination) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, fingerprint string) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/zip"),
		Metadata:      map[string]string{"fingerprint": fingerprint},
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// Upload verifies the archive at archivePath and sends it to dest under
// prefix. A container that fails verification is never uploaded. It returns
// the object key.
func Upload(ctx context.Context, dest Destination, archivePath, prefix string) (string, error) {
	rep, err := Verify(archivePath)
	if err != nil {
		return "", err
	}
	if !rep.OK() {
		return "", models.Errorf(models.KindIntegrity, filepath.Base(archivePath), rep.Errors[0].Check, nil, "archive failed verification: %s", rep.Errors[0])
	}

	fp, size, err := checksum.File(archivePath, checksum.Default)
	if err != nil {
		return "", err
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := path.Join(prefix, filepath.Base(archivePath))
	if err := dest.Put(ctx, key, f, size, fp); err != nil {
		return "", err
	}
	logging.Log.Infof("Archive: uploaded %s (%d bytes) as %s", filepath.Base(archivePath), size, key)
	return key, nil
}
