// Package errors defines the coded error every service returns and the HTTP
// treatment each code gets when it reaches the API layer.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodePayment       Code = "PAYMENT_DECLINED"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code is rendered to clients. Callers' messages replace
// PublicMessage only when ExposeMessage is set.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

const (
	exposeMessage = 1 << iota
	allowDetails
	retryable
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		ExposeMessage:  flags&exposeMessage != 0,
		DetailsAllowed: flags&allowDetails != 0,
		Retryable:      flags&retryable != 0,
	}
}

var catalog = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, "validation failed", exposeMessage|allowDetails),
	CodeUnauthorized:  meta(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeForbidden:     meta(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:      meta(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:      meta(http.StatusConflict, "conflict detected", exposeMessage|allowDetails),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, "state transition disallowed", exposeMessage|allowDetails),
	CodePayment:       meta(http.StatusPaymentRequired, "payment was not accepted", exposeMessage|allowDetails),
	CodeIdempotency:   meta(http.StatusConflict, "idempotency key reused", exposeMessage|allowDetails),
	CodeRateLimit:     meta(http.StatusTooManyRequests, "rate limit exceeded", exposeMessage),
	CodeInternal:      meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|allowDetails),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := catalog[code]; ok {
		return m
	}
	return catalog[CodeInternal]
}

// Error carries a code, a caller-facing message, optional structured details
// and the underlying cause.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap is New with a cause. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the outermost *Error, or CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
