package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeUnavailable      ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond    ErrorCode = "FAILED_PRECONDITION"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInternal         ErrorCode = "INTERNAL"
	CodeCanceled         ErrorCode = "CANCELED"
	CodeDeadlineExceeded ErrorCode = "DEADLINE_EXCEEDED"
	CodeUpstream         ErrorCode = "UPSTREAM"
)

var (
	ErrNotReady           = errors.New("child process not ready")
	ErrTimeout            = errors.New("timed out waiting for child response")
	ErrMalformedResponse  = errors.New("malformed child response")
	ErrToolNotFound       = errors.New("tool not found")
	ErrUpstreamFailure    = errors.New("child reported an error")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrExecutableNotFound = errors.New("executable not found")
	ErrPermissionDenied   = errors.New("permission denied")
)

type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
	Meta    map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:    existing.Code,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
			Meta:    existing.Meta,
		}
	}
	if derived, ok := CodeFrom(err); ok {
		code = derived
	}
	return E(code, op, "", err)
}

// CodeFrom maps an error to its code. Sentinels are checked after coded errors.
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrToolNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrConnectionClosed):
		return CodeUnavailable, true
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeDeadlineExceeded, true
	case errors.Is(err, context.Canceled):
		return CodeCanceled, true
	case errors.Is(err, ErrMalformedResponse):
		return CodeInternal, true
	case errors.Is(err, ErrUpstreamFailure):
		return CodeUpstream, true
	case errors.Is(err, ErrInvalidCommand), errors.Is(err, ErrExecutableNotFound):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied, true
	default:
		return "", false
	}
}

// ToolNotFoundError reports a catalog miss together with the names that exist.
type ToolNotFoundError struct {
	Name      string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("tool %q not found: catalog is empty", e.Name)
	}
	names := append([]string(nil), e.Available...)
	sort.Strings(names)
	return fmt.Sprintf("tool %q not found; available: %s", e.Name, strings.Join(names, ", "))
}

func (e *ToolNotFoundError) Unwrap() error {
	return ErrToolNotFound
}

// MalformedError carries the raw line that failed to parse.
type MalformedError struct {
	Raw   string
	Cause error
}

func (e *MalformedError) Error() string {
	if e.Cause == nil {
		return ErrMalformedResponse.Error()
	}
	return fmt.Sprintf("%s: %s", ErrMalformedResponse.Error(), e.Cause.Error())
}

func (e *MalformedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Cause}
}

// UpstreamError is the error envelope a child returned.
type UpstreamError struct {
	Code    int
	Message string
	Data    []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: code %d: %s", ErrUpstreamFailure.Error(), e.Code, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamFailure
}
