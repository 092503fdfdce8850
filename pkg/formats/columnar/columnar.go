// Package columnar turns buffered rows into Parquet files. Rows are cast to
// the stream's columnar schema, laid out as an Arrow record, encoded with
// pqarrow and handed to a storage.Store under a Hive style partition path:
//
//	<stream>/[<col>=<value>/...]<stream>-<sync start>-<flush>-<shard><codec ext>.parquet
package columnar

import (
	"strings"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/apache/arrow-go/v18/parquet/compress"
)

// FileExtension is appended to every file after the codec extension.
const FileExtension = ".parquet"

// Codec is a Parquet compression codec and the short extension used in
// file names.
type Codec struct {
	Name        string
	Extension   string
	Compression compress.Compression
}

var codecs = map[string]Codec{
	"snappy": {Name: "snappy", Extension: ".snappy", Compression: compress.Codecs.Snappy},
	"gzip":   {Name: "gzip", Extension: ".gz", Compression: compress.Codecs.Gzip},
	"brotli": {Name: "brotli", Extension: ".br", Compression: compress.Codecs.Brotli},
	"zstd":   {Name: "zstd", Extension: ".zstd", Compression: compress.Codecs.Zstd},
	"lz4":    {Name: "lz4", Extension: ".lz4", Compression: compress.Codecs.Lz4Raw},
}

// LookupCodec resolves a codec by name, case-insensitively.
func LookupCodec(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(name)]
	if !ok {
		return Codec{}, errors.Newf(errors.ErrorTypeConfig, "unsupported compression %q", name)
	}
	return c, nil
}

// FileName returns the file name for a basename.
func (c Codec) FileName(basename string) string {
	return basename + c.Extension + FileExtension
}
