package errors

// ErrorCategory says what kind of thing failed. Adapters map it to HTTP statuses and CLI
// exit codes.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryNetwork    ErrorCategory = "network"
	CategoryBind       ErrorCategory = "bind"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryRuntime    ErrorCategory = "runtime"
	CategoryInternal   ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy indicates whether and how a caller may try again.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"
	RetryImmediate  RetryStrategy = "immediate" // next port, fallback host
	RetryBackoff    RetryStrategy = "backoff"
	RetryUserAction RetryStrategy = "user"
)

type classDefaults struct {
	severity ErrorSeverity
	retry    RetryStrategy
}

// defaults seeds every new error of a category; builders may override either field.
var defaults = map[ErrorCategory]classDefaults{
	CategoryConfig:   {SeverityFatal, RetryUserAction},
	CategoryNotFound: {SeverityInfo, RetryNever},
	CategoryNetwork:  {SeverityError, RetryBackoff},
	CategoryBind:     {SeverityFatal, RetryNever},
	CategoryInternal: {SeverityFatal, RetryNever},
}

func defaultsFor(c ErrorCategory) classDefaults {
	if d, ok := defaults[c]; ok {
		return d
	}
	return classDefaults{SeverityError, RetryNever}
}

// ErrorContext holds structured key/value details attached to an error.
type ErrorContext map[string]any

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	str, ok := c[key].(string)
	return str, ok
}
