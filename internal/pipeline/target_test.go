package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/ajitpratap0/target-parquet/pkg/compression"
	"github.com/ajitpratap0/target-parquet/pkg/config"
	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/ajitpratap0/target-parquet/pkg/json"
	"github.com/ajitpratap0/target-parquet/pkg/message"
	"github.com/ajitpratap0/target-parquet/pkg/storage"
	"github.com/ajitpratap0/target-parquet/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const usersSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {"type": "integer"},
		"name": {"type": ["null", "string"]},
		"country": {"type": ["null", "string"]}
	}
}`

var syncStart = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func fixedClock() time.Time { return syncStart }

type TargetTestSuite struct {
	testutil.TargetSuite
	state bytes.Buffer
}

func TestTargetSuite(t *testing.T) {
	suite.Run(t, new(TargetTestSuite))
}

func (s *TargetTestSuite) SetupTest() {
	s.TargetSuite.SetupTest()
	s.state.Reset()
}

func (s *TargetTestSuite) config(mutate func(*config.Config)) *config.Config {
	cfg := config.Default()
	cfg.DestinationPath = s.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func (s *TargetTestSuite) newTarget(cfg *config.Config) *Target {
	log := testutil.TestLogger(s.T())
	target, err := NewTarget(cfg, storage.NewLocal(cfg.DestinationPath, log), &s.state, log,
		WithClock(fixedClock), WithSyncID("test-sync"))
	s.Require().NoError(err)
	return target
}

func (s *TargetTestSuite) run(cfg *config.Config, lines ...string) (*Target, error) {
	target := s.newTarget(cfg)
	return target, target.Run(s.Context(), testutil.Input(lines...))
}

func sortByID(rows []map[string]interface{}) {
	sort.Slice(rows, func(i, j int) bool { return rows[i]["id"].(int64) < rows[j]["id"].(int64) })
}

func (s *TargetTestSuite) TestEndToEnd() {
	t := s.T()
	cfg := s.config(nil)

	target, err := s.run(cfg,
		testutil.SchemaLine(t, "users", usersSchema, "id"),
		testutil.RecordLine(t, "users", `{"id":1,"name":"alice","country":"NO"}`),
		testutil.RecordLine(t, "users", `{"id":2,"name":null}`),
		testutil.StateLine(t, `{"bookmarks":{"users":2}}`),
		testutil.RecordLine(t, "users", `{"id":3,"name":"carol","nickname":"dropped"}`),
	)
	s.Require().NoError(err)

	s.Equal([]string{"users-20240305_140709-0-0.gz.parquet"}, s.StreamFiles(cfg.DestinationPath, "users"))

	rows := s.StreamRows(cfg.DestinationPath, "users")
	sortByID(rows)
	s.Equal([]map[string]interface{}{
		{"id": int64(1), "name": "alice", "country": "NO"},
		{"id": int64(2), "name": nil, "country": nil},
		{"id": int64(3), "name": "carol", "country": nil},
	}, rows)

	s.Equal("{\"bookmarks\":{\"users\":2}}\n", s.state.String())

	stats := target.Stats()
	s.Equal(int64(5), stats.Messages)
	s.Equal(int64(3), stats.Records)
	s.Equal(int64(1), stats.States)
	s.Equal(int64(1), stats.Flushes)
	s.Equal(int64(1), stats.Files)
	s.Equal(int64(3), stats.Rows)
}

func (s *TargetTestSuite) TestNestedRecordsAreFlattened() {
	t := s.T()
	cfg := s.config(func(c *config.Config) { c.Compression = "snappy" })

	_, err := s.run(cfg,
		testutil.SchemaLine(t, "nested", `{
			"properties": {
				"key_1": {"type": ["null", "integer"]},
				"key_2": {"type": ["null", "object"], "properties": {
					"key_3": {"type": ["null", "integer"]},
					"key_4": {"type": ["null", "object"], "properties": {
						"key_5": {"type": ["null", "integer"]},
						"key_6": {"type": ["null", "array"], "items": {"type": "string"}}
					}}
				}}
			}
		}`),
		testutil.RecordLine(t, "nested", `{"key_1":1,"key_2":{"key_3":2,"key_4":{"key_5":3,"key_6":["10","11"]}}}`),
		testutil.RecordLine(t, "nested", `{"key_1":4,"key_2":null}`),
	)
	s.Require().NoError(err)

	s.Equal([]string{"nested-20240305_140709-0-0.snappy.parquet"}, s.StreamFiles(cfg.DestinationPath, "nested"))

	rows := s.StreamRows(cfg.DestinationPath, "nested")
	sort.Slice(rows, func(i, j int) bool { return rows[i]["key_1"].(int64) < rows[j]["key_1"].(int64) })
	s.Equal([]map[string]interface{}{
		{"key_1": int64(1), "key_2__key_3": int64(2), "key_2__key_4__key_5": int64(3), "key_2__key_4__key_6": "['10','11']"},
		{"key_1": int64(4), "key_2__key_3": nil, "key_2__key_4__key_5": nil, "key_2__key_4__key_6": nil},
	}, rows)
}

func (s *TargetTestSuite) TestRotationByRowCount() {
	t := s.T()
	cfg := s.config(func(c *config.Config) { c.MaxBatchSize = 3 })

	lines := []string{testutil.SchemaLine(t, "users", usersSchema, "id")}
	for i := 0; i < 10; i++ {
		lines = append(lines, testutil.RecordLine(t, "users", fmt.Sprintf(`{"id":%d,"name":"u%d"}`, i, i)))
	}

	target, err := s.run(cfg, lines...)
	s.Require().NoError(err)

	s.Equal([]string{
		"users-20240305_140709-0-0.gz.parquet",
		"users-20240305_140709-1-0.gz.parquet",
		"users-20240305_140709-2-0.gz.parquet",
		"users-20240305_140709-3-0.gz.parquet",
	}, s.StreamFiles(cfg.DestinationPath, "users"))

	rows := s.StreamRows(cfg.DestinationPath, "users")
	s.Require().Len(rows, 10)
	sortByID(rows)
	for i, row := range rows {
		s.Equal(int64(i), row["id"])
	}

	s.Equal(int64(4), target.Stats().Flushes)
	s.Equal(0, target.Registry().Len(), "streams are released after the final flush")
}

func (s *TargetTestSuite) TestRotationBySize() {
	t := s.T()
	// roughly 100 bytes
	cfg := s.config(func(c *config.Config) { c.MaxTableSizeMB = 0.0001 })

	lines := []string{testutil.SchemaLine(t, "users", usersSchema, "id")}
	name := string(bytes.Repeat([]byte("x"), 200))
	for i := 0; i < 5; i++ {
		lines = append(lines, testutil.RecordLine(t, "users", fmt.Sprintf(`{"id":%d,"name":%q}`, i, name)))
	}

	_, err := s.run(cfg, lines...)
	s.Require().NoError(err)

	s.Len(s.StreamFiles(cfg.DestinationPath, "users"), 5)
	rows := s.StreamRows(cfg.DestinationPath, "users")
	s.Len(rows, 5)
}

func (s *TargetTestSuite) TestExtraFields() {
	t := s.T()
	cfg := s.config(func(c *config.Config) {
		c.ExtraFields = "field1=value1"
		c.ExtraFieldsTypes = "field1=string"
	})

	_, err := s.run(cfg,
		testutil.SchemaLine(t, "users", usersSchema, "id"),
		testutil.SchemaLine(t, "events", `{"properties":{"id":{"type":"integer"},"kind":{"type":"string"}}}`),
		testutil.RecordLine(t, "users", `{"id":1}`),
		testutil.RecordLine(t, "events", `{"id":7,"kind":"click"}`),
		testutil.RecordLine(t, "users", `{"id":2,"field1":"overridden"}`),
	)
	s.Require().NoError(err)

	for _, stream := range []string{"users", "events"} {
		rows := s.StreamRows(cfg.DestinationPath, stream)
		s.NotEmpty(rows)
		for _, row := range rows {
			s.Equal("value1", row["field1"], stream)
		}
	}
}

func (s *TargetTestSuite) TestPartitionRoundTrip() {
	t := s.T()
	cfg := s.config(func(c *config.Config) { c.PartitionCols = "country" })

	_, err := s.run(cfg,
		testutil.SchemaLine(t, "users", usersSchema, "id"),
		testutil.RecordLine(t, "users", `{"id":1,"name":"alice","country":"NO"}`),
		testutil.RecordLine(t, "users", `{"id":2,"name":"bob","country":"SE"}`),
		testutil.RecordLine(t, "users", `{"id":3,"name":"carol","country":"NO"}`),
		testutil.RecordLine(t, "users", `{"id":4,"name":"dave"}`),
	)
	s.Require().NoError(err)

	s.Equal([]string{
		"country=NO/users-20240305_140709-0-0.gz.parquet",
		"country=SE/users-20240305_140709-0-1.gz.parquet",
		"country=__HIVE_DEFAULT_PARTITION__/users-20240305_140709-0-2.gz.parquet",
	}, s.StreamFiles(cfg.DestinationPath, "users"))

	rows := s.StreamRows(cfg.DestinationPath, "users")
	sortByID(rows)
	s.Equal([]map[string]interface{}{
		{"id": int64(1), "name": "alice", "country": "NO"},
		{"id": int64(2), "name": "bob", "country": "SE"},
		{"id": int64(3), "name": "carol", "country": "NO"},
		{"id": int64(4), "name": "dave", "country": nil},
	}, rows)
}

func (s *TargetTestSuite) TestPartitionColumnMustBeInSchema() {
	t := s.T()
	cfg := s.config(func(c *config.Config) { c.PartitionCols = "region" })

	_, err := s.run(cfg, testutil.SchemaLine(t, "users", usersSchema, "id"))
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeConfig))
	s.Contains(err.Error(), "partition_cols must be in the schema")
}

func (s *TargetTestSuite) TestSchemaChangeFlushesBufferedRows() {
	t := s.T()
	cfg := s.config(nil)

	_, err := s.run(cfg,
		testutil.SchemaLine(t, "users", `{"properties":{"id":{"type":"integer"}}}`),
		testutil.RecordLine(t, "users", `{"id":1}`),
		testutil.RecordLine(t, "users", `{"id":2}`),
		testutil.SchemaLine(t, "users", `{"properties":{"id":{"type":"integer"},"email":{"type":"string"}}}`),
		testutil.RecordLine(t, "users", `{"id":3,"email":"c@example.com"}`),
	)
	s.Require().NoError(err)

	files, err := filepath.Glob(filepath.Join(cfg.DestinationPath, "users", "*.parquet"))
	s.Require().NoError(err)
	s.Require().Len(files, 2)
	s.Equal("users-20240305_140709-0-0.gz.parquet", filepath.Base(files[0]))
	s.Equal("users-20240305_140709-1-0.gz.parquet", filepath.Base(files[1]))

	rows := s.StreamRows(cfg.DestinationPath, "users")
	sortByID(rows)
	s.Equal([]map[string]interface{}{
		{"id": int64(1)},
		{"id": int64(2)},
		{"id": int64(3), "email": "c@example.com"},
	}, rows)
}

func (s *TargetTestSuite) TestRepeatedSchemaDoesNotFlush() {
	t := s.T()
	cfg := s.config(nil)

	_, err := s.run(cfg,
		testutil.SchemaLine(t, "users", usersSchema, "id"),
		testutil.RecordLine(t, "users", `{"id":1}`),
		testutil.SchemaLine(t, "users", usersSchema, "id"),
		testutil.RecordLine(t, "users", `{"id":2}`),
	)
	s.Require().NoError(err)
	s.Len(s.StreamFiles(cfg.DestinationPath, "users"), 1)
	s.Len(s.StreamRows(cfg.DestinationPath, "users"), 2)
}

func (s *TargetTestSuite) TestStreamWithoutRecordsWritesNothing() {
	t := s.T()
	cfg := s.config(nil)

	_, err := s.run(cfg,
		testutil.SchemaLine(t, "empty", usersSchema),
		testutil.StateLine(t, `{"done":true}`),
	)
	s.Require().NoError(err)
	s.Empty(s.StreamFiles(cfg.DestinationPath, "empty"))
	s.Equal("{\"done\":true}\n", s.state.String())
}

func (s *TargetTestSuite) TestCompressedInputFile() {
	t := s.T()
	cfg := s.config(func(c *config.Config) { c.DestinationPath = filepath.Join(s.TempDir(), "out") })

	path := s.WriteInput("input/tap.jsonl.gz",
		testutil.SchemaLine(t, "users", usersSchema, "id"),
		testutil.RecordLine(t, "users", `{"id":1}`),
	)

	target := s.newTarget(cfg)
	f, err := compression.Open(path)
	s.Require().NoError(err)
	defer f.Close()

	s.Require().NoError(target.Run(s.Context(), f))
	s.Len(s.StreamRows(cfg.DestinationPath, "users"), 1)
}

func newTarget(t *testing.T, store storage.Store, mutate func(*config.Config)) *Target {
	t.Helper()
	cfg := config.Default()
	cfg.DestinationPath = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	target, err := NewTarget(cfg, store, nil, testutil.TestLogger(t), WithClock(fixedClock))
	require.NoError(t, err)
	return target
}

func TestRecordBeforeSchema(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	target := newTarget(t, storage.NewLocal(t.TempDir(), nil), nil)
	err := target.Run(ctx, testutil.Input(
		testutil.SchemaLine(t, "other", usersSchema),
		testutil.RecordLine(t, "users", `{"id":1}`),
	))

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeOrdering))
	assert.Contains(t, err.Error(), "A record for stream users was encountered before a corresponding schema")

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 2, e.Details["line"])
}

func TestSchemaThenRecordNeverOrderingError(t *testing.T) {
	target := newTarget(t, storage.NewLocal(t.TempDir(), nil), nil)
	ctx := context.Background()

	require.NoError(t, target.Process(ctx, &message.Schema{Stream: "users", Schema: mustDecode(t, usersSchema)}))
	require.NoError(t, target.Process(ctx, &message.Record{Stream: "users", Record: mustDecode(t, `{"id":1}`)}))
	require.NoError(t, target.Process(ctx, &message.ActivateVersion{Stream: "users", Version: 3}))

	c, ok := target.Registry().Get("users")
	require.True(t, ok)
	assert.Equal(t, 1, c.Buffer.Len())
}

func TestExtraFieldsWithoutTypes(t *testing.T) {
	cfg := config.Default()
	cfg.DestinationPath = t.TempDir()
	cfg.ExtraFields = "field1=value1"

	_, err := NewTarget(cfg, storage.NewLocal(cfg.DestinationPath, nil), nil, testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

type flakyStore struct {
	failures int
	puts     map[string][]byte
}

func (f *flakyStore) Put(_ context.Context, key string, body []byte) error {
	if f.failures > 0 {
		f.failures--
		return errors.New(errors.ErrorTypeConnection, "upload failed")
	}
	if f.puts == nil {
		f.puts = make(map[string][]byte)
	}
	f.puts[key] = append([]byte(nil), body...)
	return nil
}

func (f *flakyStore) URI(key string) string { return "mem://" + key }

func (f *flakyStore) Close() error { return nil }

func TestFailedWriteKeepsBuffer(t *testing.T) {
	store := &flakyStore{failures: 1}
	target := newTarget(t, store, nil)
	ctx := context.Background()

	require.NoError(t, target.Process(ctx, &message.Schema{Stream: "users", Schema: mustDecode(t, usersSchema)}))
	require.NoError(t, target.Process(ctx, &message.Record{Stream: "users", Record: mustDecode(t, `{"id":1}`)}))
	require.NoError(t, target.Process(ctx, &message.Record{Stream: "users", Record: mustDecode(t, `{"id":2}`)}))

	err := target.Close(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	c, _ := target.Registry().Get("users")
	assert.Equal(t, 2, c.Buffer.Len())
	assert.Equal(t, 0, c.FilesSaved)
	assert.Empty(t, store.puts)

	require.NoError(t, target.Close(ctx))
	assert.True(t, c.Buffer.Empty())
	assert.Equal(t, 1, c.FilesSaved)
	assert.Contains(t, store.puts, "users/users-20240305_140709-0-0.gz.parquet")
	assert.Equal(t, int64(1), target.Stats().Files)

	_, ok := target.Registry().Get("users")
	assert.False(t, ok)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := newTarget(t, storage.NewLocal(t.TempDir(), nil), nil)
	err := target.Run(ctx, testutil.Input(testutil.SchemaLine(t, "users", usersSchema)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMalformedLine(t *testing.T) {
	target := newTarget(t, storage.NewLocal(t.TempDir(), nil), nil)
	err := target.Run(context.Background(), testutil.Input(`{"type":"RECORD"`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestSyncIDDefaultsToUUID(t *testing.T) {
	target := newTarget(t, storage.NewLocal(t.TempDir(), nil), nil)
	assert.Len(t, target.SyncID(), 36)
}

func mustDecode(t *testing.T, s string) json.Value {
	t.Helper()
	v, err := json.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestFlushLogsCarrySyncIDAndStream(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := config.Default()
	cfg.DestinationPath = t.TempDir()

	target, err := NewTarget(cfg, storage.NewLocal(cfg.DestinationPath, nil), nil, zap.New(core),
		WithClock(fixedClock), WithSyncID("sync-1"))
	require.NoError(t, err)

	input := testutil.Input(
		testutil.SchemaLine(t, "users", usersSchema),
		testutil.RecordLine(t, "users", `{"id":1}`),
	)
	require.NoError(t, target.Run(context.Background(), input))

	flushed := logs.FilterMessage("flushed stream").All()
	require.Len(t, flushed, 1)
	fields := flushed[0].ContextMap()
	assert.Equal(t, "sync-1", fields["sync_id"])
	assert.Equal(t, "users", fields["stream"])
	assert.Equal(t, "target", fields["component"])
	assert.Equal(t, "final", fields["reason"])

	completed := logs.FilterMessage("sync completed").All()
	require.Len(t, completed, 1)
	assert.Contains(t, completed[0].ContextMap(), "encode_buffer_hit_rate")
}
