package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/telemetry"
)

// maxStaleIDs bounds the set of ids whose callers already gave up.
const maxStaleIDs = 256

// Correlator pairs each request written to the child with the next response
// frame. Only one request is outstanding at a time.
type Correlator struct {
	writer  io.Writer
	logger  *zap.Logger
	metrics domain.Metrics
	gate    *Gate

	ready   atomic.Bool
	timeout atomic.Int64
	calls   atomic.Uint64

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  *pendingCall
	stale    map[string]struct{}
	owed     int
	closeErr error
}

type CorrelatorOptions struct {
	Writer  io.Writer
	Logger  *zap.Logger
	Metrics domain.Metrics
	Timeout time.Duration
}

type pendingCall struct {
	key string
	ch  chan callResult
}

type callResult struct {
	raw json.RawMessage
	err error
}

func NewCorrelator(opts CorrelatorOptions) *Correlator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	c := &Correlator{
		writer:  opts.Writer,
		logger:  logger.Named("correlator"),
		metrics: metrics,
		gate:    NewGate(),
		stale:   make(map[string]struct{}),
	}
	c.SetTimeout(opts.Timeout)
	return c
}

// Call sends payload to the child and waits for its response.
// It fails with ErrNotReady until SetReady(true) has been called.
// A notification (method without id) is written and returns a nil response.
func (c *Correlator) Call(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	if !c.Ready() {
		c.metrics.ObserveChildCall(methodOf(payload), domain.CallStatusNotReady, 0)
		return nil, domain.ErrNotReady
	}
	return c.call(ctx, payload)
}

// Notify writes a message that expects no response.
func (c *Correlator) Notify(ctx context.Context, payload json.RawMessage) error {
	if !c.Ready() {
		return domain.ErrNotReady
	}
	return c.notify(ctx, payload)
}

// Unguarded returns a caller that skips the readiness check. It exists for the
// startup probe and handshake, which run before the child is marked ready.
func (c *Correlator) Unguarded() *UnguardedCaller {
	return &UnguardedCaller{c: c}
}

type UnguardedCaller struct {
	c *Correlator
}

func (u *UnguardedCaller) Call(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return u.c.call(ctx, payload)
}

func (u *UnguardedCaller) Notify(ctx context.Context, payload json.RawMessage) error {
	return u.c.notify(ctx, payload)
}

func (c *Correlator) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Correlator) Ready() bool {
	return c.ready.Load()
}

// SetTimeout changes the per-request deadline; non-positive values restore the default.
func (c *Correlator) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultRequestTimeoutSeconds) * time.Second
	}
	c.timeout.Store(int64(timeout))
}

func (c *Correlator) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// Err reports why the child stream closed, or nil while it is open.
func (c *Correlator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Calls counts requests written to the child.
func (c *Correlator) Calls() uint64 {
	return c.calls.Load()
}

// Serve pumps child output through framer until the stream ends, then fails
// every outstanding and future call with ErrConnectionClosed.
func (c *Correlator) Serve(r io.Reader, framer *LineFramer) error {
	if framer == nil {
		framer = NewLineFramer(0)
	}
	err := framer.Run(r, c.Dispatch)
	if errors.Is(err, io.EOF) {
		c.Close(io.EOF)
		return nil
	}
	c.Close(err)
	return err
}

// Dispatch hands one frame to the outstanding call, or drops it.
func (c *Correlator) Dispatch(frame Frame) {
	if frame.Err == nil && frame.IsChildRequest() {
		c.logger.Debug("drop child-initiated message", zap.ByteString("raw", frame.Raw))
		return
	}
	c.mu.Lock()
	call, reason := c.claim(frame)
	c.mu.Unlock()
	if call == nil {
		c.logger.Debug("drop child output", zap.String("reason", reason), zap.String("id", frame.ID()))
		return
	}
	call.ch <- callResult{raw: frame.Raw, err: frame.Err}
}

// Close fails the outstanding call and rejects new ones.
func (c *Correlator) Close(cause error) {
	c.mu.Lock()
	if c.closeErr != nil {
		c.mu.Unlock()
		return
	}
	if cause == nil {
		cause = io.EOF
	}
	c.closeErr = fmt.Errorf("%w: %v", domain.ErrConnectionClosed, cause)
	call := c.pending
	c.pending = nil
	err := c.closeErr
	c.mu.Unlock()

	if call != nil {
		call.ch <- callResult{err: err}
	}
	c.logger.Info("child output closed", telemetry.EventField(telemetry.EventChildOutputDone), zap.Error(cause))
}

func (c *Correlator) call(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	req, err := inspectRequest(payload)
	if err != nil {
		c.metrics.ObserveChildCall("", domain.CallStatusError, 0)
		return nil, err
	}
	logger := telemetry.LoggerWithRequest(ctx, c.logger)
	if req.notification() {
		started := time.Now()
		err := c.send(ctx, req)
		c.metrics.ObserveChildCall(req.method, domain.CallStatusFromError(err), time.Since(started))
		if err != nil {
			logger.Warn("child notification failed", telemetry.MethodField(req.method), zap.Error(err))
			return nil, err
		}
		logger.Debug("child notification forwarded", telemetry.MethodField(req.method))
		return nil, nil
	}
	started := time.Now()
	resp, err := c.roundTrip(ctx, req)
	duration := time.Since(started)
	c.metrics.ObserveChildCall(req.method, domain.CallStatusFromError(err), duration)
	if err != nil {
		logger.Warn("child call failed",
			telemetry.MethodField(req.method),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		return nil, err
	}
	logger.Debug("child call completed",
		telemetry.MethodField(req.method),
		telemetry.DurationField(duration),
	)
	return resp, nil
}

func (c *Correlator) roundTrip(ctx context.Context, req request) (json.RawMessage, error) {
	timeout := c.Timeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.gate.Acquire(callCtx); err != nil {
		return nil, deadlineError(ctx, err, timeout)
	}
	defer c.gate.Release()

	call := &pendingCall{key: req.key, ch: make(chan callResult, 1)}
	if err := c.register(call); err != nil {
		return nil, err
	}
	if err := c.write(callCtx, req.line); err != nil {
		timedOut := callCtx.Err() != nil
		c.abandon(call, timedOut)
		if timedOut {
			return nil, deadlineError(ctx, err, timeout)
		}
		return nil, fmt.Errorf("write request: %w", err)
	}
	c.calls.Add(1)

	select {
	case result := <-call.ch:
		return result.raw, result.err
	case <-callCtx.Done():
		if c.abandon(call, true) {
			return nil, deadlineError(ctx, callCtx.Err(), timeout)
		}
		// Dispatch claimed the call before we could abandon it.
		result := <-call.ch
		return result.raw, result.err
	}
}

func (c *Correlator) notify(ctx context.Context, payload json.RawMessage) error {
	req, err := inspectRequest(payload)
	if err != nil {
		return err
	}
	return c.send(ctx, req)
}

// send writes req under the gate without registering a pending slot.
func (c *Correlator) send(ctx context.Context, req request) error {
	timeout := c.Timeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.gate.Acquire(callCtx); err != nil {
		return deadlineError(ctx, err, timeout)
	}
	defer c.gate.Release()

	if err := c.Err(); err != nil {
		return err
	}
	if err := c.write(callCtx, req.line); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

func (c *Correlator) register(call *pendingCall) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	c.pending = call
	return nil
}

// abandon removes call from the pending slot. It reports false when Dispatch
// already claimed it. A timed-out call leaves a debt so its late response is
// dropped instead of reaching the next caller.
func (c *Correlator) abandon(call *pendingCall, timedOut bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != call {
		return false
	}
	c.pending = nil
	if !timedOut {
		return true
	}
	if call.key == "" {
		c.owed++
		return true
	}
	if len(c.stale) >= maxStaleIDs {
		c.stale = make(map[string]struct{})
	}
	c.stale[call.key] = struct{}{}
	return true
}

// claim must be called with c.mu held. Malformed frames never settle a debt:
// they always reach the outstanding caller.
func (c *Correlator) claim(frame Frame) (*pendingCall, string) {
	key := frame.ID()
	if key != "" {
		if _, ok := c.stale[key]; ok {
			delete(c.stale, key)
			return nil, "late response"
		}
	} else if c.owed > 0 && frame.Err == nil {
		c.owed--
		return nil, "late response"
	}
	call := c.pending
	if call == nil {
		return nil, "no outstanding request"
	}
	if key != "" && call.key != "" && key != call.key {
		return nil, "id mismatch"
	}
	c.pending = nil
	return call, ""
}

// write gives up when ctx ends; the pending write still completes under
// writeMu so lines never interleave on the pipe.
func (c *Correlator) write(ctx context.Context, line []byte) error {
	if c.writer == nil {
		return domain.ErrConnectionClosed
	}
	done := make(chan error, 1)
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_, err := c.writer.Write(line)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type request struct {
	key    string
	method string
	line   []byte
}

func (r request) notification() bool {
	return r.key == "" && r.method != ""
}

// inspectRequest compacts payload onto a single newline-terminated line and
// extracts its id and method.
func inspectRequest(payload json.RawMessage) (request, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return request{}, fmt.Errorf("%w: empty payload", domain.ErrInvalidRequest)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return request{}, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	env := peekEnvelope(buf.Bytes())
	buf.WriteByte('\n')
	return request{key: env.key, method: env.method, line: buf.Bytes()}, nil
}

func methodOf(payload json.RawMessage) string {
	return peekEnvelope(payload).method
}

func deadlineError(parent context.Context, err error, timeout time.Duration) error {
	if parentErr := parent.Err(); parentErr != nil && !errors.Is(parentErr, context.DeadlineExceeded) {
		return parentErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: no response within %s", domain.ErrTimeout, timeout)
	}
	return err
}
