package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lokkagw/internal/domain"
)

func TestLineFramer_SingleLine(t *testing.T) {
	framer := NewLineFramer(0)

	frames := framer.Feed([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n"))
	require.Len(t, frames, 1)
	assert.NoError(t, frames[0].Err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, string(frames[0].Raw))
	assert.Equal(t, "n:1", frames[0].ID())
	assert.False(t, frames[0].IsChildRequest())
	assert.Zero(t, framer.Buffered())
}

func TestLineFramer_FragmentedLine(t *testing.T) {
	framer := NewLineFramer(0)

	assert.Empty(t, framer.Feed([]byte(`{"jsonrpc":"2.0",`)))
	assert.Empty(t, framer.Feed([]byte(`"id":"a","res`)))
	assert.Equal(t, len(`{"jsonrpc":"2.0","id":"a","res`), framer.Buffered())

	frames := framer.Feed([]byte(`ult":{"ok":true}}` + "\n"))
	require.Len(t, frames, 1)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"a","result":{"ok":true}}`, string(frames[0].Raw))
	assert.Equal(t, "s:a", frames[0].ID())
	assert.Zero(t, framer.Buffered())
}

func TestLineFramer_MultipleLinesInOneChunk(t *testing.T) {
	framer := NewLineFramer(0)

	frames := framer.Feed([]byte("{\"id\":1,\"result\":1}\n{\"id\":2,\"result\":2}\n{\"id\":3,"))
	require.Len(t, frames, 2)
	assert.Equal(t, "n:1", frames[0].ID())
	assert.Equal(t, "n:2", frames[1].ID())

	frames = framer.Feed([]byte("\"result\":3}\n"))
	require.Len(t, frames, 1)
	assert.Equal(t, "n:3", frames[0].ID())
}

func TestLineFramer_SkipsBlankLines(t *testing.T) {
	framer := NewLineFramer(0)

	frames := framer.Feed([]byte("\n   \r\n{\"id\":1,\"result\":null}\r\n"))
	require.Len(t, frames, 1)
	assert.NoError(t, frames[0].Err)
}

func TestLineFramer_MalformedLine(t *testing.T) {
	framer := NewLineFramer(0)

	frames := framer.Feed([]byte("npm WARN deprecated\n{\"id\":1,\"result\":{}}\n"))
	require.Len(t, frames, 2)

	require.Error(t, frames[0].Err)
	assert.ErrorIs(t, frames[0].Err, domain.ErrMalformedResponse)
	var malformed *domain.MalformedError
	require.True(t, errors.As(frames[0].Err, &malformed))
	assert.Equal(t, "npm WARN deprecated", malformed.Raw)
	assert.Nil(t, frames[0].Raw)

	assert.NoError(t, frames[1].Err)
}

func TestLineFramer_MalformedPreviewTruncated(t *testing.T) {
	framer := NewLineFramer(0)

	frames := framer.Feed([]byte(strings.Repeat("x", 2000) + "\n"))
	require.Len(t, frames, 1)
	var malformed *domain.MalformedError
	require.True(t, errors.As(frames[0].Err, &malformed))
	assert.True(t, strings.HasSuffix(malformed.Raw, truncatedSuffix))
	assert.Len(t, malformed.Raw, malformedPreview+len(truncatedSuffix))
}

func TestLineFramer_OversizeLine(t *testing.T) {
	framer := NewLineFramer(16)

	frames := framer.Feed([]byte(`{"id":1,"result":"0123456789"}`))
	require.Len(t, frames, 1)
	assert.ErrorIs(t, frames[0].Err, domain.ErrMalformedResponse)
	assert.Zero(t, framer.Buffered())

	// Remainder of the oversize line is dropped; the next line parses.
	frames = framer.Feed([]byte("tail\n{\"id\":2}\n"))
	require.Len(t, frames, 1)
	assert.NoError(t, frames[0].Err)
	assert.Equal(t, "n:2", frames[0].ID())
}

func TestLineFramer_OversizeCompleteLine(t *testing.T) {
	framer := NewLineFramer(8)

	frames := framer.Feed([]byte("{\"result\":\"long\"}\n{\"id\":1}\n"))
	require.Len(t, frames, 2)
	assert.ErrorIs(t, frames[0].Err, domain.ErrMalformedResponse)
	assert.NoError(t, frames[1].Err)
}

func TestLineFramer_ChildRequest(t *testing.T) {
	framer := NewLineFramer(0)

	frames := framer.Feed([]byte(
		`{"jsonrpc":"2.0","method":"notifications/message","params":{}}` + "\n" +
			`{"jsonrpc":"2.0","id":7,"method":"roots/list"}` + "\n",
	))
	require.Len(t, frames, 2)
	assert.True(t, frames[0].IsChildRequest())
	assert.Empty(t, frames[0].ID())
	assert.True(t, frames[1].IsChildRequest())
	assert.Equal(t, "n:7", frames[1].ID())
}

func TestLineFramer_Run(t *testing.T) {
	framer := NewLineFramer(0)
	input := bytes.NewBufferString("{\"id\":1,\"result\":1}\n{\"id\":2,\"result\":2}\n")

	var got []Frame
	err := framer.Run(input, func(frame Frame) {
		got = append(got, frame)
	})
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, got, 2)
}

func TestIDKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `1`, want: "n:1"},
		{raw: `1.0`, want: "n:1"},
		{raw: `"1"`, want: "s:1"},
		{raw: `"tools-list-3"`, want: "s:tools-list-3"},
		{raw: `null`, want: ""},
		{raw: ``, want: ""},
		{raw: `{}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, idKey([]byte(tt.raw)))
		})
	}
}
