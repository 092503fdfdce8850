// Package errors provides examples of structured error handling in target-parquet.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeOrdering, "record encountered before schema").
		WithDetail("stream", "users")

	fmt.Println(err.Error())

	// Output:
	// ordering: record encountered before schema (stream=users)
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeFile, "failed to persist parquet file")

	if errors.IsType(err, errors.ErrorTypeFile) {
		fmt.Println("This is a file error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause is preserved")
	}

	// Output:
	// This is a file error
	// Cause is preserved
}

// ExampleIsRetryable demonstrates retryability by error type.
func ExampleIsRetryable() {
	connErr := errors.New(errors.ErrorTypeConnection, "upload interrupted")
	cfgErr := errors.New(errors.ErrorTypeConfig, "unsupported compression")

	fmt.Println(errors.IsRetryable(connErr))
	fmt.Println(errors.IsRetryable(cfgErr))

	// Output:
	// true
	// false
}
