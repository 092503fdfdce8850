package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	s3PartSize    = 16 * 1024 * 1024
	s3Concurrency = 4
)

// uploader is the part of manager.Uploader the store uses.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads objects to a bucket with the multipart upload manager.
type S3 struct {
	bucket   string
	prefix   string
	uploader uploader
	logger   *zap.Logger
}

// NewS3 creates an S3 store using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string, opts Options) (*S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = s3PartSize
		u.Concurrency = s3Concurrency
	})

	return newS3WithUploader(bucket, prefix, up, opts.Logger), nil
}

func newS3WithUploader(bucket, prefix string, up uploader, logger *zap.Logger) *S3 {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{
		bucket:   bucket,
		prefix:   prefix,
		uploader: up,
		logger:   logger.With(zap.String("component", "s3_store"), zap.String("bucket", bucket)),
	}
}

// Put implements Store.
func (s *S3) Put(ctx context.Context, key string, body []byte) error {
	objKey := objectKey(s.prefix, key)
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(ContentType),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("key", objKey)
	}

	s.logger.Debug("object uploaded",
		zap.String("location", result.Location),
		zap.Int("bytes", len(body)))
	return nil
}

// URI implements Store.
func (s *S3) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey(s.prefix, key))
}

// Close implements Store.
func (s *S3) Close() error { return nil }
