package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Code classifies an error against the application's taxonomy. Pure-computation
// codes (InvalidConfiguration, InvalidTransition) are contract violations and
// propagate to the caller; collaborator codes (PersistenceFailure, AuthFailure)
// are isolated at the adapter boundary and degrade gracefully.
type Code string

const (
	// CodeInvalidConfiguration: catalog or stored data violates an invariant,
	// e.g. a sample size larger than the question pool.
	CodeInvalidConfiguration Code = "invalid_configuration"
	// CodeInvalidTransition: a state-machine operation attempted outside its
	// valid source states, e.g. submitting an already submitted session.
	CodeInvalidTransition Code = "invalid_transition"
	// CodePersistenceFailure: the history store collaborator failed.
	CodePersistenceFailure Code = "persistence_failure"
	// CodeAuthFailure: the identity collaborator failed.
	CodeAuthFailure Code = "auth_failure"
	CodeNotFound    Code = "not_found"
	CodeInternal    Code = "internal"
)

var code2grpc = map[Code]codes.Code{
	CodeInvalidConfiguration: codes.FailedPrecondition,
	CodeInvalidTransition:    codes.Aborted,
	CodePersistenceFailure:   codes.Unavailable,
	CodeAuthFailure:          codes.Unauthenticated,
	CodeNotFound:             codes.NotFound,
	CodeInternal:             codes.Internal,
}

var code2http = map[Code]int{
	CodeInvalidConfiguration: http.StatusInternalServerError,
	CodeInvalidTransition:    http.StatusConflict,
	CodePersistenceFailure:   http.StatusServiceUnavailable,
	CodeAuthFailure:          http.StatusUnauthorized,
	CodeNotFound:             http.StatusNotFound,
	CodeInternal:             http.StatusInternalServerError,
}

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: string(code),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	c, ok := code2grpc[e.Code]
	if !ok {
		c = codes.Internal
	}

	return status.New(c, e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

// Convert extracts the coded error from err, or wraps it as Internal.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
