package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

// Reasons distinguish errors sharing the same code.
const (
	ReasonValidation       = "VALIDATION"
	ReasonInvalidGroupCode = "INVALID_GROUP_CODE"
	ReasonAlreadyCompleted = "ALREADY_COMPLETED"
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeFailedPrecondition: http.StatusBadRequest,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

type Error struct {
	Code    Code   `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target has the same code and reason, so sentinel-like
// comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == t.Code && e.Reason == t.Reason
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func Validation(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithReason(ReasonValidation), WithMessagef(format, args...))
}

func InvalidGroupCode(code string) *Error {
	return New(CodeInvalidArgument, WithReason(ReasonInvalidGroupCode), WithMessagef("invalid group code: %q", code))
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, WithMessagef(format, args...))
}

func AlreadyCompleted(userID, challengeID int64) *Error {
	return New(CodeFailedPrecondition, WithReason(ReasonAlreadyCompleted),
		WithMessagef("challenge already completed: user=%d challenge=%d", userID, challengeID))
}

func Unauthenticated(msg string) *Error {
	return New(CodeUnauthenticated, WithMessagef("%s", msg))
}

// Kinds usable as errors.Is targets.
var (
	ErrValidation       = New(CodeInvalidArgument, WithReason(ReasonValidation))
	ErrInvalidGroupCode = New(CodeInvalidArgument, WithReason(ReasonInvalidGroupCode))
	ErrAlreadyCompleted = New(CodeFailedPrecondition, WithReason(ReasonAlreadyCompleted))
	ErrNotFound         = New(CodeNotFound)
	ErrUnauthenticated  = New(CodeUnauthenticated)
)

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

func WithReason(reason string) Option {
	return optionFunc(func(e *Error) {
		e.Reason = reason
	})
}
