package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by repositories.
var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")
)

// Code classifies an AppError for clients.
type Code string

const (
	CodeUnauthenticated Code = "unauthenticated"
	CodeNotFriends      Code = "not-friends"
	CodeQuotaExceeded   Code = "quota-exceeded"
	CodePaidFeature     Code = "paid-feature"
	CodeInvalidText     Code = "invalid-text"
	CodeInvalidRequest  Code = "invalid-request"
	CodeNotFound        Code = "not-found"
	CodeInternal        Code = "internal"
)

// AppError is the structured rejection surfaced to both ingress paths.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func newAppError(code Code, msg string) error {
	return &AppError{Code: code, Message: msg}
}

func Unauthenticated(msg string) error { return newAppError(CodeUnauthenticated, msg) }
func NotFriends(msg string) error      { return newAppError(CodeNotFriends, msg) }
func QuotaExceeded(msg string) error   { return newAppError(CodeQuotaExceeded, msg) }
func PaidFeature(msg string) error     { return newAppError(CodePaidFeature, msg) }
func InvalidText(msg string) error     { return newAppError(CodeInvalidText, msg) }
func InvalidRequest(msg string) error  { return newAppError(CodeInvalidRequest, msg) }
func NotFound(msg string) error        { return newAppError(CodeNotFound, msg) }

// Internal wraps a storage or collaborator failure.
func Internal(msg string, cause error) error {
	return &AppError{Code: CodeInternal, Message: msg, Cause: cause}
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns a client-safe message for err.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

// UpgradeRequired reports whether the client should be told to upgrade.
func UpgradeRequired(err error) bool {
	switch CodeOf(err) {
	case CodeQuotaExceeded, CodePaidFeature:
		return true
	}
	return false
}

// Retryable reports whether retrying the same request may succeed.
func Retryable(err error) bool {
	return CodeOf(err) == CodeInternal
}
