package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "invalid request", err: fmt.Errorf("decode: %w", ErrInvalidRequest), want: CodeInvalidArgument},
		{name: "tool miss", err: &ToolNotFoundError{Name: "x"}, want: CodeNotFound},
		{name: "not ready", err: ErrNotReady, want: CodeUnavailable},
		{name: "closed", err: fmt.Errorf("%w: EOF", ErrConnectionClosed), want: CodeUnavailable},
		{name: "timeout", err: ErrTimeout, want: CodeDeadlineExceeded},
		{name: "deadline", err: context.DeadlineExceeded, want: CodeDeadlineExceeded},
		{name: "canceled", err: context.Canceled, want: CodeCanceled},
		{name: "malformed", err: &MalformedError{Raw: "nope"}, want: CodeInternal},
		{name: "upstream", err: &UpstreamError{Code: -32601, Message: "no"}, want: CodeUpstream},
		{name: "missing executable", err: ErrExecutableNotFound, want: CodeFailedPrecond},
		{name: "coded", err: E(CodeNotFound, "op", "gone", ErrTimeout), want: CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := CodeFrom(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.want, code)
		})
	}

	_, ok := CodeFrom(errors.New("plain"))
	assert.False(t, ok)
	_, ok = CodeFrom(nil)
	assert.False(t, ok)
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(CodeInternal, "op", nil))

	wrapped := Wrap(CodeInternal, "app.serve", ErrExecutableNotFound)
	assert.Equal(t, CodeFailedPrecond, wrapped.Code, "sentinel code wins over the fallback")
	assert.ErrorIs(t, wrapped, ErrExecutableNotFound)
	assert.Equal(t, "app.serve: FAILED_PRECONDITION: executable not found", wrapped.Error())

	inner := E(CodeUnavailable, "", "child gone", nil)
	rewrapped := Wrap(CodeInternal, "outer", inner)
	assert.Equal(t, CodeUnavailable, rewrapped.Code)
	assert.Equal(t, "outer", rewrapped.Op)

	withOp := E(CodeUnavailable, "inner", "child gone", nil)
	assert.Same(t, withOp, Wrap(CodeInternal, "outer", withOp))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "INTERNAL", (&Error{Code: CodeInternal}).Error())
	assert.Equal(t, "INTERNAL: boom", (&Error{Code: CodeInternal, Message: "boom"}).Error())
	assert.Equal(t, "op: INTERNAL", (&Error{Code: CodeInternal, Op: "op"}).Error())
	assert.Equal(t, "", (*Error)(nil).Error())
}

func TestToolNotFoundError(t *testing.T) {
	err := &ToolNotFoundError{Name: "bar", Available: []string{"foo", "baz"}}
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.Equal(t, `tool "bar" not found; available: baz, foo`, err.Error())
	assert.Equal(t, []string{"foo", "baz"}, err.Available, "available names keep catalog order")

	empty := &ToolNotFoundError{Name: "bar"}
	assert.Equal(t, `tool "bar" not found: catalog is empty`, empty.Error())
}

func TestMalformedError(t *testing.T) {
	cause := errors.New("invalid character 'n'")
	err := &MalformedError{Raw: "not json", Cause: cause}

	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "malformed child response: invalid character 'n'", err.Error())

	var target *MalformedError
	require.ErrorAs(t, fmt.Errorf("call: %w", err), &target)
	assert.Equal(t, "not json", target.Raw)
}

func TestUpstreamError(t *testing.T) {
	err := &UpstreamError{Code: -32601, Message: "Method not found"}
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	assert.Equal(t, "child reported an error: code -32601: Method not found", err.Error())
}

func TestCallStatusFromError(t *testing.T) {
	assert.Equal(t, CallStatusSuccess, CallStatusFromError(nil))
	assert.Equal(t, CallStatusTimeout, CallStatusFromError(ErrTimeout))
	assert.Equal(t, CallStatusMalformed, CallStatusFromError(&MalformedError{}))
	assert.Equal(t, CallStatusNotReady, CallStatusFromError(ErrNotReady))
	assert.Equal(t, CallStatusClosed, CallStatusFromError(ErrConnectionClosed))
	assert.Equal(t, CallStatusError, CallStatusFromError(&UpstreamError{}))
}
