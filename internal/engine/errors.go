package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an entity that is absent or not yet visible to the caller.
	ErrNotFound = errors.New("not_found")
	// ErrForbidden reports an authenticated caller that may not perform the mutation.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited reports a throttled comment creation.
	ErrRateLimited = errors.New("rate_limited")
	// ErrInvalidInput reports a malformed field or patch.
	ErrInvalidInput = errors.New("invalid_input")
)

// ServiceError carries a stable "<operation>.<reason>" code and the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError builds a ServiceError for the operation and reason, wrapping cause.
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// Kind returns the taxonomy sentinel wrapped by err, or nil when err is not one of them.
func Kind(err error) error {
	for _, sentinel := range []error{ErrNotFound, ErrForbidden, ErrRateLimited, ErrInvalidInput} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

// CodeOf returns the ServiceError code carried by err, if any.
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}
