package mcpcodec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"lokkagw/internal/domain"
)

// EncodeRequest builds a JSON-RPC request line payload. A nil params value is
// sent as an empty object.
func EncodeRequest(id any, method string, params any) (json.RawMessage, error) {
	wireID, err := jsonrpc.MakeID(id)
	if err != nil {
		return nil, fmt.Errorf("build %s id: %w", method, err)
	}
	rawParams, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}
	wire, err := jsonrpc.EncodeMessage(&jsonrpc.Request{
		ID:     wireID,
		Method: method,
		Params: rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	return wire, nil
}

// EncodeNotification builds a JSON-RPC notification, which carries no id.
func EncodeNotification(method string, params any) (json.RawMessage, error) {
	rawParams, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}
	wire, err := jsonrpc.EncodeMessage(&jsonrpc.Request{
		Method: method,
		Params: rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	return wire, nil
}

func encodeParams(params any) (json.RawMessage, error) {
	switch v := params.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

type wireError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// UpstreamError reports the error envelope of a child response, or nil when
// the response carries none.
func UpstreamError(raw json.RawMessage) *domain.UpstreamError {
	var env struct {
		Error *wireError `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == nil {
		return nil
	}
	return &domain.UpstreamError{
		Code:    env.Error.Code,
		Message: env.Error.Message,
		Data:    env.Error.Data,
	}
}

// ResponseResult returns the result member of a child response. An error
// envelope yields *domain.UpstreamError; anything that is not a JSON-RPC
// response object yields *domain.MalformedError.
func ResponseResult(raw json.RawMessage) (json.RawMessage, error) {
	if upstream := UpstreamError(raw); upstream != nil {
		return nil, upstream
	}
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.MalformedError{Raw: string(raw), Cause: err}
	}
	if len(bytes.TrimSpace(env.Result)) == 0 {
		return nil, &domain.MalformedError{Raw: string(raw), Cause: errors.New("response has no result")}
	}
	return env.Result, nil
}
