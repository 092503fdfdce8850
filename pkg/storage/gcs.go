package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ContentType is set on uploaded objects.
const ContentType = "application/vnd.apache.parquet"

// objectWriterFunc opens a writer for an object name.
type objectWriterFunc func(ctx context.Context, name string) io.WriteCloser

// GCS writes objects to a Cloud Storage bucket.
type GCS struct {
	bucket    string
	prefix    string
	client    *storage.Client
	newWriter objectWriterFunc
	logger    *zap.Logger
}

// NewGCS creates a GCS store. Credentials come from the configured file or
// the application default credentials.
func NewGCS(ctx context.Context, bucket, prefix string, opts Options) (*GCS, error) {
	var clientOpts []option.ClientOption
	if opts.GCSCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCSCredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	handle := client.Bucket(bucket)
	g := newGCSWithWriter(bucket, prefix, func(ctx context.Context, name string) io.WriteCloser {
		w := handle.Object(name).NewWriter(ctx)
		w.ContentType = ContentType
		return w
	}, opts.Logger)
	g.client = client
	return g, nil
}

func newGCSWithWriter(bucket, prefix string, fn objectWriterFunc, logger *zap.Logger) *GCS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCS{
		bucket:    bucket,
		prefix:    prefix,
		newWriter: fn,
		logger:    logger.With(zap.String("component", "gcs_store"), zap.String("bucket", bucket)),
	}
}

// Put implements Store. The object only becomes visible once the writer is
// closed successfully.
func (g *GCS) Put(ctx context.Context, key string, body []byte) error {
	name := objectKey(g.prefix, key)

	w := g.newWriter(ctx, name)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to write GCS object").
			WithDetail("object", name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to finalize GCS object").
			WithDetail("object", name)
	}

	g.logger.Debug("object uploaded", zap.String("object", name), zap.Int("bytes", len(body)))
	return nil
}

// URI implements Store.
func (g *GCS) URI(key string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, objectKey(g.prefix, key))
}

// Close implements Store.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
