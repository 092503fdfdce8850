package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. TARGET_PARQUET_COMPRESSION.
const EnvPrefix = "TARGET_PARQUET"

// Load reads the configuration file at path (JSON or YAML, chosen by
// extension) on top of the defaults, applies environment overrides and
// validates the result. An empty path loads defaults and environment only.
// ${VAR} references in the file are replaced with environment values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
		v.SetConfigType(configType(path))
		if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
				WithDetail("path", path)
		}
	}

	// compression_method is the older spelling of compression.
	if !v.InConfig("compression") && v.InConfig("compression_method") {
		v.Set("compression", v.Get("compression_method"))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("destination_path", d.DestinationPath)
	v.SetDefault("compression", d.Compression)
	v.SetDefault("max_batch_size", d.MaxBatchSize)
	v.SetDefault("max_pyarrow_table_size", d.MaxTableSizeMB)
	v.SetDefault("extra_fields", "")
	v.SetDefault("extra_fields_types", "")
	v.SetDefault("partition_cols", "")
	v.SetDefault("flatten_max_level", d.FlattenMaxLevel)
	v.SetDefault("flatten_separator", d.FlattenSeparator)
	v.SetDefault("s3_region", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("gcs_credentials_file", "")
	v.SetDefault("log_level", d.LogLevel)
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Dump renders the effective configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal config")
	}
	return data, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
