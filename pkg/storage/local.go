package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"go.uber.org/zap"
)

// Local writes files under a root directory. Each file is written to a
// temporary name and renamed into place, so readers never see a partial
// file.
type Local struct {
	root   string
	logger *zap.Logger
}

// NewLocal creates a store rooted at root.
func NewLocal(root string, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{root: root, logger: logger.With(zap.String("component", "local_store"))}
}

// Put implements Store.
func (l *Local) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "write cancelled").
			WithDetail("key", key)
	}

	target := l.URI(key)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create directory").
			WithDetail("dir", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary file").
			WithDetail("dir", dir)
	}
	tmpName := tmp.Name()

	// CreateTemp opens with 0600.
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to set file mode").
			WithDetail("path", target)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write file").
			WithDetail("path", target)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close file").
			WithDetail("path", target)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move file into place").
			WithDetail("path", target)
	}

	l.logger.Debug("file written", zap.String("path", target), zap.Int("bytes", len(body)))
	return nil
}

// URI implements Store.
func (l *Local) URI(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Close implements Store.
func (l *Local) Close() error { return nil }
