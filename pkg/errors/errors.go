package errors

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RequiredFieldError reports a required field that was absent or empty at write time.
type RequiredFieldError struct {
	Field string
}

// NewRequiredFieldError creates a new required field error
func NewRequiredFieldError(field string) *RequiredFieldError {
	return &RequiredFieldError{Field: field}
}

// Error implements the error interface
func (e *RequiredFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// GRPCStatus returns the gRPC status for this error
func (e *RequiredFieldError) GRPCStatus() *status.Status {
	return badRequest(e.Error(), e.Field, e.Error())
}

// ValidationError represents a validation failure with field-level details.
// Message is carried verbatim; callers may match on it.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// GRPCStatus returns the gRPC status for this error
func (e *ValidationError) GRPCStatus() *status.Status {
	return badRequest(e.Error(), e.Field, e.Message)
}

// badRequest builds an InvalidArgument status carrying the offending field
// as a BadRequest detail.
func badRequest(msg, field, description string) *status.Status {
	st := status.New(codes.InvalidArgument, msg)
	if field == "" {
		return st
	}
	detailed, err := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{Field: field, Description: description},
		},
	})
	if err != nil {
		return st
	}
	return detailed
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// GRPCStatus returns the gRPC status for this error
func (e *NotFoundError) GRPCStatus() *status.Status {
	return status.New(codes.NotFound, e.Error())
}

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// GRPCStatus returns the gRPC status for this error.
// The wrapped cause stays server-side.
func (e *InternalError) GRPCStatus() *status.Status {
	return status.New(codes.Internal, e.Message)
}

// GRPCStatuser interface for errors that can provide gRPC status
type GRPCStatuser interface {
	GRPCStatus() *status.Status
}

// IsUserInput reports whether err was caused by the caller's input
// (a missing field or a failed format rule).
func IsUserInput(err error) bool {
	var required *RequiredFieldError
	var validation *ValidationError
	return As(err, &required) || As(err, &validation)
}
