package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"lokkagw/internal/domain"
)

var pingIDSeq atomic.Uint64

// PingProbe checks that the child answers a JSON-RPC ping.
type PingProbe struct {
	Timeout time.Duration
}

func (p *PingProbe) Ping(ctx context.Context, caller domain.Caller) error {
	if caller == nil {
		return errors.New("caller is nil")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultProbeTimeoutSeconds) * time.Second
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	seq := pingIDSeq.Add(1)
	id, err := jsonrpc.MakeID(fmt.Sprintf("ping-%d", seq))
	if err != nil {
		return fmt.Errorf("build ping id: %w", err)
	}

	wire, err := jsonrpc.EncodeMessage(&jsonrpc.Request{
		ID:     id,
		Method: "ping",
		Params: json.RawMessage(`{}`),
	})
	if err != nil {
		return fmt.Errorf("encode ping: %w", err)
	}

	rawResp, err := caller.Call(pingCtx, wire)
	if err != nil {
		return fmt.Errorf("call ping: %w", err)
	}

	respMsg, err := jsonrpc.DecodeMessage(rawResp)
	if err != nil {
		return fmt.Errorf("decode ping response: %w", err)
	}

	resp, ok := respMsg.(*jsonrpc.Response)
	if !ok {
		return errors.New("ping response is not a response message")
	}
	if resp.Error != nil {
		return fmt.Errorf("ping error: %w", resp.Error)
	}

	return nil
}
