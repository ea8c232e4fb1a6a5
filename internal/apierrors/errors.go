// Package apierrors defines the stable error taxonomy every component
// returns, and maps each code onto a gRPC status.
package apierrors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code is one of the stable, caller-visible error codes.
type Code int

const (
	CodeUnspecified Code = iota
	CodeNotFound
	CodeAlreadyExists
	CodeInvalidArgument
	CodeSchemaConflict
	CodeSchemaUnsupported
	CodeValidationFailed
	CodeTypeMismatch
	CodeCycle
	CodeInvalidZookie
	CodeStaleUnavailable
	CodeUnauthenticated
	CodeResourceExhausted
	CodeInternal
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeAlreadyExists:
		return "ALREADY_EXISTS"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeSchemaConflict:
		return "SCHEMA_CONFLICT"
	case CodeSchemaUnsupported:
		return "SCHEMA_UNSUPPORTED"
	case CodeValidationFailed:
		return "VALIDATION_FAILED"
	case CodeTypeMismatch:
		return "TYPE_MISMATCH"
	case CodeCycle:
		return "CYCLE"
	case CodeInvalidZookie:
		return "INVALID_ZOOKIE"
	case CodeStaleUnavailable:
		return "STALE_UNAVAILABLE"
	case CodeUnauthenticated:
		return "UNAUTHENTICATED"
	case CodeResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case CodeInternal:
		return "INTERNAL"
	default:
		return "UNSPECIFIED"
	}
}

// Violation is a single JSON Schema validation failure.
type Violation struct {
	Path    string
	Message string
}

// GraphError is the concrete error type returned by every component.
type GraphError struct {
	Code       Code
	Message    string
	Violations []Violation
	Cause      error
}

func (e *GraphError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *GraphError) Unwrap() error { return e.Cause }

// Retryable reports whether the propagation policy allows retrying the
// operation that produced this error.
func (e *GraphError) Retryable() bool {
	switch e.Code {
	case CodeCycle, CodeValidationFailed, CodeTypeMismatch, CodeSchemaConflict,
		CodeAlreadyExists, CodeNotFound:
		return false
	default:
		return true
	}
}

// ToGRPCStatus maps a GraphError onto a gRPC status with the code string
// preserved in the message so clients without the taxonomy can still see it.
func (e *GraphError) ToGRPCStatus() error {
	return status.Error(toGRPCCode(e.Code), e.Error())
}

func toGRPCCode(c Code) codes.Code {
	switch c {
	case CodeNotFound:
		return codes.NotFound
	case CodeAlreadyExists, CodeSchemaConflict:
		return codes.AlreadyExists
	case CodeInvalidArgument, CodeSchemaUnsupported, CodeValidationFailed,
		CodeTypeMismatch, CodeInvalidZookie:
		return codes.InvalidArgument
	case CodeCycle:
		return codes.FailedPrecondition
	case CodeStaleUnavailable:
		return codes.Unavailable
	case CodeUnauthenticated:
		return codes.Unauthenticated
	case CodeResourceExhausted:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

func NotFound(msg string) *GraphError { return &GraphError{Code: CodeNotFound, Message: msg} }

func AlreadyExists(msg string) *GraphError {
	return &GraphError{Code: CodeAlreadyExists, Message: msg}
}

func InvalidArgument(msg string) *GraphError {
	return &GraphError{Code: CodeInvalidArgument, Message: msg}
}

func SchemaConflict(msg string) *GraphError {
	return &GraphError{Code: CodeSchemaConflict, Message: msg}
}

func SchemaUnsupported(msg string) *GraphError {
	return &GraphError{Code: CodeSchemaUnsupported, Message: msg}
}

func ValidationFailed(violations []Violation) *GraphError {
	return &GraphError{Code: CodeValidationFailed, Message: "metadata does not satisfy schema", Violations: violations}
}

func TypeMismatch(msg string) *GraphError {
	return &GraphError{Code: CodeTypeMismatch, Message: msg}
}

func Cycle(msg string) *GraphError { return &GraphError{Code: CodeCycle, Message: msg} }

func InvalidZookie(msg string) *GraphError {
	return &GraphError{Code: CodeInvalidZookie, Message: msg}
}

func StaleUnavailable(msg string) *GraphError {
	return &GraphError{Code: CodeStaleUnavailable, Message: msg}
}

func Unauthenticated(msg string) *GraphError {
	return &GraphError{Code: CodeUnauthenticated, Message: msg}
}

func ResourceExhausted(msg string) *GraphError {
	return &GraphError{Code: CodeResourceExhausted, Message: msg}
}

func Internal(msg string, cause error) *GraphError {
	return &GraphError{Code: CodeInternal, Message: msg, Cause: cause}
}

// As extracts a *GraphError from err when err itself is one; wrapped
// errors are not unwrapped.
func As(err error) (*GraphError, bool) {
	ge, ok := err.(*GraphError)
	return ge, ok
}
