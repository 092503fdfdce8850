// Package storage persists finished Parquet files. Keys are slash separated
// paths relative to the configured destination, which may be a local
// directory, an s3://bucket/prefix URI or a gs://bucket/prefix URI.
package storage

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"go.uber.org/zap"
)

// Store writes whole objects.
type Store interface {
	// Put stores body under key, replacing any existing object.
	Put(ctx context.Context, key string, body []byte) error
	// URI returns the fully qualified location of key.
	URI(key string) string
	// Close releases clients held by the store.
	Close() error
}

// Options configures the remote backends.
type Options struct {
	S3Region           string
	S3Endpoint         string
	GCSCredentialsFile string
	Logger             *zap.Logger
}

// Scheme identifies a backend.
type Scheme string

const (
	SchemeLocal Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeGCS   Scheme = "gs"
)

// Location is a parsed destination.
type Location struct {
	Scheme Scheme
	// Bucket is empty for local destinations
	Bucket string
	// Path is the local root directory or the object key prefix
	Path string
}

// ParseDestination splits a destination into scheme, bucket and path.
func ParseDestination(destination string) (Location, error) {
	if destination == "" {
		return Location{}, errors.New(errors.ErrorTypeConfig, "destination is empty")
	}
	if !strings.Contains(destination, "://") {
		return Location{Scheme: SchemeLocal, Path: destination}, nil
	}

	u, err := url.Parse(destination)
	if err != nil {
		return Location{}, errors.Wrap(err, errors.ErrorTypeConfig, "invalid destination").
			WithDetail("destination", destination)
	}

	switch Scheme(strings.ToLower(u.Scheme)) {
	case SchemeLocal:
		return Location{Scheme: SchemeLocal, Path: u.Path}, nil
	case SchemeS3, SchemeGCS:
		if u.Host == "" {
			return Location{}, errors.New(errors.ErrorTypeConfig, "destination has no bucket").
				WithDetail("destination", destination)
		}
		return Location{
			Scheme: Scheme(strings.ToLower(u.Scheme)),
			Bucket: u.Host,
			Path:   strings.Trim(u.Path, "/"),
		}, nil
	default:
		return Location{}, errors.Newf(errors.ErrorTypeConfig, "unsupported destination scheme %q", u.Scheme)
	}
}

// New opens the store for destination.
func New(ctx context.Context, destination string, opts Options) (Store, error) {
	loc, err := ParseDestination(destination)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch loc.Scheme {
	case SchemeS3:
		return NewS3(ctx, loc.Bucket, loc.Path, opts)
	case SchemeGCS:
		return NewGCS(ctx, loc.Bucket, loc.Path, opts)
	default:
		return NewLocal(loc.Path, opts.Logger), nil
	}
}

func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
