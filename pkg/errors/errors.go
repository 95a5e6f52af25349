package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of business-rule rejection.
type ErrorCode int

const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrInternal
)

// Domain rejections live in their own range so boundary code can
// distinguish them from plumbing failures.
const (
	ErrInvalidQuantity ErrorCode = iota + 2000
	ErrDuplicateAuthorization
	ErrTypeMismatch
	ErrInvalidTransition
	ErrGuideAlreadyInvoiced
	ErrGuideNotExecuted
	ErrUnresolvedDenialsPresent
	ErrConcurrentModification
)

// AppError carries a code, a caller-facing message and the wrapped cause.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// CodeOf returns the error code carried by err, or ErrInternal when err is
// not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{Code: ErrBadRequest, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Code: ErrInternal, Message: "internal server error", Err: err}
}

func Unauthorized(err error) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: "unauthorized", Err: err}
}

// InvalidQuantity rejects a reconciliation input that violates
// non-negativity or the substitution tolerance policy.
func InvalidQuantity(message string) *AppError {
	return &AppError{Code: ErrInvalidQuantity, Message: message}
}

// DuplicateAuthorization rejects a second active authorization for a target
// that already has one.
func DuplicateAuthorization(target string) *AppError {
	return &AppError{
		Code:    ErrDuplicateAuthorization,
		Message: fmt.Sprintf("an active authorization already exists for %s", target),
	}
}

// TypeMismatch rejects binding an authorization type to the wrong target kind.
func TypeMismatch(authType, targetKind string) *AppError {
	return &AppError{
		Code:    ErrTypeMismatch,
		Message: fmt.Sprintf("authorization type %q cannot be bound to a %s", authType, targetKind),
	}
}

// InvalidTransition rejects an out-of-order lifecycle transition.
func InvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("%s cannot transition from %q to %q", entity, from, to),
	}
}

// GuideAlreadyInvoiced rejects attaching a guide that is already on an
// active invoice.
func GuideAlreadyInvoiced(guideNumber string) *AppError {
	return &AppError{
		Code:    ErrGuideAlreadyInvoiced,
		Message: fmt.Sprintf("guide %s already belongs to a pending or submitted invoice", guideNumber),
	}
}

// GuideNotExecuted rejects attaching a guide that has not reached the
// executed state.
func GuideNotExecuted(guideNumber, status string) *AppError {
	return &AppError{
		Code:    ErrGuideNotExecuted,
		Message: fmt.Sprintf("guide %s has status %q, only executed guides can be invoiced", guideNumber, status),
	}
}

// UnresolvedDenialsPresent blocks invoice finalization while denied lines
// lack a recorded reason.
func UnresolvedDenialsPresent(detail string) *AppError {
	return &AppError{
		Code:    ErrUnresolvedDenialsPresent,
		Message: fmt.Sprintf("invoice has denied lines without a recorded reason: %s", detail),
	}
}

// ConcurrentModification signals a lost optimistic-lock race. No partial
// effect was committed, so the caller may retry.
func ConcurrentModification(entity string) *AppError {
	return &AppError{
		Code:    ErrConcurrentModification,
		Message: fmt.Sprintf("%s was modified concurrently, retry the operation", entity),
	}
}
