// Package errors provides the classified error primitives used across the live preview server.
//
// A ClassifiedError carries a category, a severity and a retry strategy so that the two
// boundaries of the process can present it consistently:
//   - HTTPErrorAdapter turns it into a status code and response body
//   - CLIErrorAdapter turns it into an exit code and a user-facing message
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryBind, "listen failed").
//		WithContext("host", host).
//		WithContext("port", port).
//		Build()
package errors
