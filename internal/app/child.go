package app

import (
	"context"
	"io"
	"sync"
	"time"

	"lokkagw/internal/domain"
)

// ChildProcess is the running Lokka MCP process.
type ChildProcess struct {
	Stdout io.Reader
	Stdin  io.Writer

	stop    domain.StopFn
	timeout time.Duration
	once    sync.Once
	err     error
}

// StartChildProcess launches the child described by cfg.Child. The returned
// cleanup stops it.
func StartChildProcess(ctx context.Context, launcher domain.Launcher, cfg domain.Config) (*ChildProcess, func(), error) {
	streams, stop, err := launcher.Start(ctx, cfg.Child)
	if err != nil {
		return nil, nil, err
	}
	child := &ChildProcess{
		Stdout:  streams.Reader,
		Stdin:   streams.Writer,
		stop:    stop,
		timeout: time.Duration(domain.DefaultShutdownTimeoutSeconds) * time.Second,
	}
	return child, func() { _ = child.Stop() }, nil
}

// Stop terminates the child once; later calls return the first result.
func (c *ChildProcess) Stop() error {
	c.once.Do(func() {
		if c.stop == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		c.err = c.stop(ctx)
	})
	return c.err
}
