package apperr

import (
	"errors"
	"net/http"
)

// Error kinds. Match with errors.Is.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrInvalidContent   = errors.New("invalid response content")
	ErrProfanity        = errors.New("profanity rejected")
	ErrAlreadySubmitted = errors.New("already submitted")
	ErrRateLimited      = errors.New("rate limited")
	ErrUpstream         = errors.New("upstream failure")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrInternal         = errors.New("internal error")
)

type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	kind    error
	status  int
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the error kind, so errors.Is(err, ErrForbidden) works through wrapping.
func (e *AppError) Is(target error) bool {
	return e != nil && e.kind != nil && e.kind == target
}

func (e *AppError) StatusCode() int {
	if e == nil || e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}

func Unauthorized(msg string, err error) *AppError {
	return newAppError(ErrUnauthorized, "unauthorized", msg, err, http.StatusUnauthorized)
}

func Forbidden(msg string, err error) *AppError {
	return newAppError(ErrForbidden, "forbidden", msg, err, http.StatusForbidden)
}

func NotFound(msg string, err error) *AppError {
	return newAppError(ErrNotFound, "not_found", msg, err, http.StatusNotFound)
}

func InvalidContent(msg string, err error) *AppError {
	return newAppError(ErrInvalidContent, "invalid_response_content", msg, err, http.StatusUnprocessableEntity)
}

func Profanity(msg string) *AppError {
	return newAppError(ErrProfanity, "profanity_rejected", msg, nil, http.StatusUnprocessableEntity)
}

func AlreadySubmitted(msg string, err error) *AppError {
	return newAppError(ErrAlreadySubmitted, "already_submitted", msg, err, http.StatusConflict)
}

func RateLimited(msg string) *AppError {
	return newAppError(ErrRateLimited, "rate_limited", msg, nil, http.StatusTooManyRequests)
}

func Upstream(msg string, err error) *AppError {
	return newAppError(ErrUpstream, "upstream_failure", msg, err, http.StatusBadGateway)
}

func InvalidInput(msg string, err error) *AppError {
	return newAppError(ErrInvalidInput, "invalid_input", msg, err, http.StatusBadRequest)
}

func Conflict(msg string, err error) *AppError {
	return newAppError(ErrConflict, "conflict", msg, err, http.StatusConflict)
}

func Internal(msg string, err error) *AppError {
	return newAppError(ErrInternal, "internal_error", msg, err, http.StatusInternalServerError)
}

func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(http.StatusText(http.StatusInternalServerError), err)
}

func newAppError(kind error, code, msg string, err error, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: msg,
		Err:     err,
		kind:    kind,
		status:  status,
	}
}
