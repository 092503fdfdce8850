package config

import (
	"sort"
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
)

// Config holds every option the target recognises. Zero values are filled
// from Default when loading through Load.
type Config struct {
	// DestinationPath is the root directory, or an s3:// or gs:// URI
	DestinationPath string `mapstructure:"destination_path" yaml:"destination_path" json:"destination_path"`
	// Compression is the parquet codec: snappy, gzip, brotli, zstd or lz4
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression"`
	// MaxBatchSize flushes a stream once this many rows are buffered
	MaxBatchSize int `mapstructure:"max_batch_size" yaml:"max_batch_size" json:"max_batch_size"`
	// MaxTableSizeMB flushes a stream once its estimated in-memory columnar
	// size exceeds this many megabytes
	MaxTableSizeMB float64 `mapstructure:"max_pyarrow_table_size" yaml:"max_pyarrow_table_size" json:"max_pyarrow_table_size"`

	ExtraFields      string `mapstructure:"extra_fields" yaml:"extra_fields" json:"extra_fields"`
	ExtraFieldsTypes string `mapstructure:"extra_fields_types" yaml:"extra_fields_types" json:"extra_fields_types"`
	PartitionCols    string `mapstructure:"partition_cols" yaml:"partition_cols" json:"partition_cols"`

	FlattenMaxLevel  int    `mapstructure:"flatten_max_level" yaml:"flatten_max_level" json:"flatten_max_level"`
	FlattenSeparator string `mapstructure:"flatten_separator" yaml:"flatten_separator" json:"flatten_separator"`

	S3Region           string `mapstructure:"s3_region" yaml:"s3_region,omitempty" json:"s3_region,omitempty"`
	S3Endpoint         string `mapstructure:"s3_endpoint" yaml:"s3_endpoint,omitempty" json:"s3_endpoint,omitempty"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file" yaml:"gcs_credentials_file,omitempty" json:"gcs_credentials_file,omitempty"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
}

// ExtraField is a static column added to every record.
type ExtraField struct {
	Name  string
	Value string
	Type  string
}

// SupportedCompressions lists the accepted codec names.
var SupportedCompressions = []string{"snappy", "gzip", "brotli", "zstd", "lz4"}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		DestinationPath:  "output",
		Compression:      "gzip",
		MaxBatchSize:     10000,
		MaxTableSizeMB:   800,
		FlattenMaxLevel:  20,
		FlattenSeparator: "__",
		LogLevel:         "info",
	}
}

// Validate checks the configuration eagerly so misconfiguration fails
// before any input is read.
func (c *Config) Validate() error {
	if c.DestinationPath == "" {
		return errors.New(errors.ErrorTypeConfig, "destination_path must be set")
	}
	if !isSupportedCompression(c.Compression) {
		return errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", c.Compression).
			WithDetail("supported", strings.Join(SupportedCompressions, ","))
	}
	if c.MaxBatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "max_batch_size must be positive").
			WithDetail("value", c.MaxBatchSize)
	}
	if c.MaxTableSizeMB <= 0 {
		return errors.New(errors.ErrorTypeConfig, "max_pyarrow_table_size must be positive").
			WithDetail("value", c.MaxTableSizeMB)
	}
	if c.FlattenMaxLevel < 0 {
		return errors.New(errors.ErrorTypeConfig, "flatten_max_level must not be negative")
	}
	if c.FlattenSeparator == "" {
		return errors.New(errors.ErrorTypeConfig, "flatten_separator must not be empty")
	}
	if _, err := c.Extras(); err != nil {
		return err
	}
	return nil
}

func isSupportedCompression(name string) bool {
	for _, s := range SupportedCompressions {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// CompressionCodec returns the lower-cased codec name.
func (c *Config) CompressionCodec() string {
	return strings.ToLower(c.Compression)
}

// Extras parses extra_fields and extra_fields_types. Both must be set or
// both unset, and they must name the same keys. Fields come back in the
// order extra_fields lists them.
func (c *Config) Extras() ([]ExtraField, error) {
	values, err := parsePairs(c.ExtraFields, "extra_fields")
	if err != nil {
		return nil, err
	}
	types, err := parsePairs(c.ExtraFieldsTypes, "extra_fields_types")
	if err != nil {
		return nil, err
	}

	if (len(values) == 0) != (len(types) == 0) {
		return nil, errors.New(errors.ErrorTypeConfig, "extra_fields and extra_fields_types must be both set or both unset")
	}

	typeOf := make(map[string]string, len(types))
	for _, p := range types {
		typeOf[p[0]] = p[1]
	}

	fields := make([]ExtraField, 0, len(values))
	index := make(map[string]int, len(values))
	for _, p := range values {
		if _, ok := typeOf[p[0]]; !ok {
			return nil, errors.New(errors.ErrorTypeConfig, "extra_fields and extra_fields_types must have the same keys").
				WithDetail("missing_type", p[0])
		}
		f := ExtraField{Name: p[0], Value: p[1], Type: typeOf[p[0]]}
		if i, ok := index[p[0]]; ok {
			fields[i] = f
			continue
		}
		index[p[0]] = len(fields)
		fields = append(fields, f)
	}
	if len(typeOf) != len(fields) {
		var extra []string
		for name := range typeOf {
			if _, ok := index[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		return nil, errors.New(errors.ErrorTypeConfig, "extra_fields and extra_fields_types must have the same keys").
			WithDetail("missing_value", strings.Join(extra, ","))
	}
	return fields, nil
}

// PartitionColumns returns the configured partition columns in order.
func (c *Config) PartitionColumns() []string {
	if strings.TrimSpace(c.PartitionCols) == "" {
		return nil
	}
	var cols []string
	for _, col := range strings.Split(c.PartitionCols, ",") {
		if col = strings.TrimSpace(col); col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// parsePairs splits "a=1,b=2" into ordered name/value pairs.
func parsePairs(s, option string) ([][2]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pairs [][2]string
	for _, item := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf(errors.ErrorTypeConfig, "%s entries must look like name=value", option).
				WithDetail("entry", item)
		}
		pairs = append(pairs, [2]string{name, value})
	}
	return pairs, nil
}
