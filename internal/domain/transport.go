package domain

import (
	"context"
	"encoding/json"
	"io"
)

// Caller performs one request/response exchange with the child.
type Caller interface {
	Call(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// IOStreams are the child's stdout (Reader) and stdin (Writer).
type IOStreams struct {
	Reader io.ReadCloser
	Writer io.WriteCloser
}

// StopFn terminates the child and waits for it to exit.
type StopFn func(ctx context.Context) error

// Launcher starts the child process.
type Launcher interface {
	Start(ctx context.Context, spec ChildSpec) (IOStreams, StopFn, error)
}
