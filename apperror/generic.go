package apperror

import "fmt"

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNoData             = Error("no records found")
	ErrRecordChanged      = Error("write conflict")
	ErrDenied             = Error("not allowed") // eg. upd/del of someone else's item
	ErrUnauthenticated    = Error("No token provided")
	ErrInvalidCredential  = Error("Invalid or expired token")
	ErrInvalidLogin       = Error("Invalid email or password")
	ErrServiceUnavailable = Error("Service unavailable")
	ErrDuplicateUser      = Error("User with this email or username already exists")
	ErrRateLimited        = Error("Too many requests")
)

// NotFoundError names the missing resource, errors.Is matches ErrNoData
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNoData }

// NotFound is a shorthand for models reporting a missing document
func NotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// ForbiddenError carries the user facing reason, errors.Is matches ErrDenied
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

func (e *ForbiddenError) Is(target error) bool { return target == ErrDenied }

// Forbidden rejects acting on another identity's resource
func Forbidden(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

// ValidationError carries the first violated field rule of a request
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validation is a shorthand for handlers rejecting a single field
func Validation(field string, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// BalanceError reports a token debit that could not be covered
type BalanceError struct {
	Required  int64
	Available int64
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("Insufficient tokens. Required: %d, Available: %d", e.Required, e.Available)
}
