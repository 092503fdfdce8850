package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajitpratap0/target-parquet/pkg/compression"
	"github.com/ajitpratap0/target-parquet/pkg/formats/columnar"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TargetSuite is the base for tests that run whole syncs into a scratch
// destination directory.
type TargetSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupTest gives every test its own context and destination.
func (s *TargetSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	s.startTime = time.Now()

	dir, err := os.MkdirTemp("", "target-parquet-test-*")
	require.NoError(s.T(), err)
	s.tempDir = dir
}

// TearDownTest removes the destination.
func (s *TargetSuite) TearDownTest() {
	s.cancel()
	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}
	s.T().Logf("test completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *TargetSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the destination directory.
func (s *TargetSuite) TempDir() string {
	return s.tempDir
}

// WriteInput writes lines to name below the temp dir, compressed according
// to the file extension, and returns the path.
func (s *TargetSuite) WriteInput(name string, lines ...string) string {
	p := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(p), 0o755))

	f, err := os.Create(p)
	require.NoError(s.T(), err)
	defer f.Close()

	w, err := compression.NewWriter(f, compression.Detect(name))
	require.NoError(s.T(), err)
	_, err = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(s.T(), err)
	require.NoError(s.T(), w.Close())
	return p
}

// StreamRows reads back every row written for stream, partition values
// included.
func (s *TargetSuite) StreamRows(dest, stream string) []map[string]interface{} {
	rows, err := columnar.ReadDatasetRows(s.ctx, filepath.Join(dest, stream))
	require.NoError(s.T(), err)
	return rows
}

// StreamFiles lists the parquet files written for stream, relative to the
// stream directory.
func (s *TargetSuite) StreamFiles(dest, stream string) []string {
	root := filepath.Join(dest, stream)
	var files []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(p, columnar.FileExtension) {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(s.T(), err)
	return files
}
