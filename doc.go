// Package targetparquet is a data loader that reads a stream of SCHEMA,
// RECORD and STATE messages, one JSON document per line, and writes the
// records as Parquet files.
//
// Nested records are flattened into columns named after their path,
// schemas are mapped onto a small columnar type system, and each stream
// is buffered until a row or size threshold triggers a flush. Files are
// laid out per stream, optionally partitioned Hive style:
//
//	<destination>/<stream>/[<col>=<value>/...]<stream>-<sync start>-<flush>-<shard><codec>.parquet
//
// STATE messages are echoed to stdout as they arrive.
//
// # Usage
//
//	target-parquet --config config.yaml < messages.jsonl > state.jsonl
//	target-parquet inspect output/users --schema
//
// # Key Packages
//
//   - internal/pipeline: the message loop, flush policy and final flush
//   - pkg/message: line framing and message parsing
//   - pkg/flatten: record and schema flattening
//   - pkg/schema: columnar type mapping
//   - pkg/stream: the per-stream registry of schemas and buffers
//   - pkg/batch: row buffering with size estimation
//   - pkg/formats/columnar: Arrow records, Parquet encoding and partitioning
//   - pkg/storage: local, S3 and GCS destinations
//   - pkg/config: file, environment and default configuration
//
// # Configuration
//
// Settings come from a YAML or JSON file, then TARGET_PARQUET_* environment
// variables, then defaults:
//
//	destination_path: output
//	compression: gzip          # snappy, gzip, brotli, zstd or lz4
//	max_batch_size: 10000      # rows per flush
//	max_pyarrow_table_size: 800  # megabytes per flush
//	partition_cols: country,year
//	extra_fields: source,env
//	extra_fields_types: string,string
//
// A destination_path of s3://bucket/prefix or gs://bucket/prefix writes to
// object storage instead of the local filesystem.
package targetparquet
