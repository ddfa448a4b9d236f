package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"lokkagw/internal/domain"
	"lokkagw/internal/infra/mcpcodec"
)

// Session is a caller that can also send notifications.
type Session interface {
	domain.Caller
	Notify(ctx context.Context, payload json.RawMessage) error
}

// Initializer performs the MCP initialize handshake.
type Initializer struct {
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
}

// InitializeResult is the subset of the child's initialize reply that gets logged.
type InitializeResult struct {
	ProtocolVersion string
	ServerName      string
	ServerVersion   string
}

func (i *Initializer) Initialize(ctx context.Context, session Session) (InitializeResult, error) {
	if session == nil {
		return InitializeResult{}, errors.New("session is nil")
	}
	params := &mcp.InitializeParams{
		ProtocolVersion: valueOr(i.ProtocolVersion, domain.DefaultProtocolVersion),
		ClientInfo: &mcp.Implementation{
			Name:    valueOr(i.ClientName, domain.DefaultClientName),
			Version: valueOr(i.ClientVersion, domain.DefaultClientVersion),
		},
		Capabilities: &mcp.ClientCapabilities{},
	}
	payload, err := mcpcodec.EncodeRequest("initialize-1", "initialize", params)
	if err != nil {
		return InitializeResult{}, err
	}
	raw, err := session.Call(ctx, payload)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("call initialize: %w", err)
	}
	result, err := mcpcodec.ResponseResult(raw)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("initialize: %w", err)
	}

	var reply mcp.InitializeResult
	if err := json.Unmarshal(result, &reply); err != nil {
		return InitializeResult{}, fmt.Errorf("decode initialize result: %w", err)
	}

	notification, err := mcpcodec.EncodeNotification("notifications/initialized", nil)
	if err != nil {
		return InitializeResult{}, err
	}
	if err := session.Notify(ctx, notification); err != nil {
		return InitializeResult{}, fmt.Errorf("send initialized: %w", err)
	}

	out := InitializeResult{ProtocolVersion: reply.ProtocolVersion}
	if reply.ServerInfo != nil {
		out.ServerName = reply.ServerInfo.Name
		out.ServerVersion = reply.ServerInfo.Version
	}
	return out, nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
