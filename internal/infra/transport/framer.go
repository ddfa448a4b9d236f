package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lokkagw/internal/domain"
)

const (
	readChunkSize     = 32 * 1024
	malformedPreview  = 512
	truncatedSuffix   = "... [truncated]"
	defaultFrameLimit = domain.DefaultMaxLineBytes
)

// Frame is one line of child output. Exactly one of Raw and Err is set.
type Frame struct {
	Raw json.RawMessage
	Err error

	id      string
	request bool
}

// ID returns the normalized JSON-RPC id of the frame, or "" when absent.
func (f Frame) ID() string {
	return f.id
}

// IsChildRequest reports whether the child sent a request or notification
// rather than a response.
func (f Frame) IsChildRequest() bool {
	return f.request
}

// LineFramer splits a byte stream into newline-delimited JSON frames.
type LineFramer struct {
	buf          []byte
	maxLineBytes int
	discarding   bool
}

func NewLineFramer(maxLineBytes int) *LineFramer {
	if maxLineBytes <= 0 {
		maxLineBytes = defaultFrameLimit
	}
	return &LineFramer{maxLineBytes: maxLineBytes}
}

// Feed consumes a chunk and returns the frames completed by it, in order.
// Trailing bytes without a newline stay buffered for the next call.
func (f *LineFramer) Feed(chunk []byte) []Frame {
	var frames []Frame
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			if frame, overflow := f.buffer(chunk); overflow {
				frames = append(frames, frame)
			}
			break
		}
		part := chunk[:idx]
		chunk = chunk[idx+1:]

		if f.discarding {
			f.discarding = false
			f.buf = f.buf[:0]
			continue
		}
		if len(f.buf)+len(part) > f.maxLineBytes {
			frames = append(frames, f.oversize(append(f.buf, part...)))
			f.buf = f.buf[:0]
			continue
		}

		var line []byte
		if len(f.buf) == 0 {
			line = part
		} else {
			f.buf = append(f.buf, part...)
			line = f.buf
		}
		frame, ok := parseLine(line)
		f.buf = f.buf[:0]
		if ok {
			frames = append(frames, frame)
		}
	}
	return frames
}

// Buffered returns the number of bytes waiting for a newline.
func (f *LineFramer) Buffered() int {
	return len(f.buf)
}

// Run reads r until it fails and emits every completed frame.
// It returns the read error, io.EOF when the child closed stdout.
func (f *LineFramer) Run(r io.Reader, emit func(Frame)) error {
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			for _, frame := range f.Feed(chunk[:n]) {
				emit(frame)
			}
		}
		if err != nil {
			return err
		}
	}
}

func (f *LineFramer) buffer(partial []byte) (Frame, bool) {
	if f.discarding {
		return Frame{}, false
	}
	if len(f.buf)+len(partial) > f.maxLineBytes {
		frame := f.oversize(append(f.buf, partial...))
		f.buf = f.buf[:0]
		f.discarding = true
		return frame, true
	}
	f.buf = append(f.buf, partial...)
	return Frame{}, false
}

func (f *LineFramer) oversize(line []byte) Frame {
	return Frame{Err: &domain.MalformedError{
		Raw:   preview(line),
		Cause: fmt.Errorf("line exceeds %d bytes", f.maxLineBytes),
	}}
}

func parseLine(line []byte) (Frame, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Frame{}, false
	}
	if !json.Valid(trimmed) {
		return Frame{Err: &domain.MalformedError{
			Raw:   preview(trimmed),
			Cause: fmt.Errorf("line is not valid JSON"),
		}}, true
	}
	raw := make(json.RawMessage, len(trimmed))
	copy(raw, trimmed)
	env := peekEnvelope(raw)
	return Frame{
		Raw:     raw,
		id:      env.key,
		request: env.method != "" && !env.response,
	}, true
}

type envelope struct {
	key      string
	method   string
	response bool
}

func peekEnvelope(raw json.RawMessage) envelope {
	var wire struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return envelope{}
	}
	return envelope{
		key:      idKey(wire.ID),
		method:   wire.Method,
		response: len(wire.Result) > 0 || len(wire.Error) > 0,
	}
}

// idKey normalizes a raw JSON-RPC id so string "1" and number 1 never collide.
func idKey(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return "s:" + s
	}
	if n, err := strconv.ParseFloat(string(trimmed), 64); err == nil {
		return "n:" + strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func preview(line []byte) string {
	if len(line) <= malformedPreview {
		return string(line)
	}
	return strings.ToValidUTF8(string(line[:malformedPreview]), "") + truncatedSuffix
}
