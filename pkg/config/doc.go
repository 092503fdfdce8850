// Package config defines the options recognised by target-parquet and loads
// them with viper.
//
// # Sources
//
// Options come from, in increasing precedence:
//
//   - built-in defaults (see Default)
//   - a JSON or YAML config file, with ${VAR} environment substitution
//   - TARGET_PARQUET_<OPTION> environment variables
//
// # Example
//
//	{
//	  "destination_path": "s3://lake/raw",
//	  "compression": "snappy",
//	  "max_batch_size": 50000,
//	  "extra_fields": "source=crm",
//	  "extra_fields_types": "source=string",
//	  "partition_cols": "source"
//	}
//
// Configuration is validated as soon as it is loaded: an unsupported codec,
// a non-positive threshold or mismatched extra fields fail the run before
// any input is consumed.
package config
