// Package errors provides the classified error primitives used across boqbuilder.
//
// A ClassifiedError carries a category (conversion, parse, catalog, ...), a severity
// and a retry strategy alongside the message, its cause and free-form context.
// Errors are built with the fluent ErrorBuilder:
//
//	err := errors.WrapError(cause, errors.CategoryConversion, "dwg2dxf failed").
//		Retryable().
//		WithContext("backend", "libredwg").
//		Build()
//
// The CLI and HTTP adapters translate classified errors into exit codes and
// JSON responses respectively.
package errors
