package mcpcodec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lokkagw/internal/domain"
)

func TestEncodeRequest(t *testing.T) {
	raw, err := EncodeRequest("tools-list-1", "tools/list", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"tools-list-1","method":"tools/list","params":{}}`, string(raw))

	msg, err := jsonrpc.DecodeMessage(raw)
	require.NoError(t, err)
	req, ok := msg.(*jsonrpc.Request)
	require.True(t, ok)
	assert.Equal(t, "tools/list", req.Method)
}

func TestEncodeRequest_Params(t *testing.T) {
	raw, err := EncodeRequest(int64(3), "tools/call", map[string]any{"name": "Lokka-Microsoft"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"Lokka-Microsoft"}}`, string(raw))
}

func TestEncodeNotification(t *testing.T) {
	raw, err := EncodeNotification("notifications/initialized", nil)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "id")
	assert.Equal(t, "notifications/initialized", decoded["method"])
}

func TestUpstreamError(t *testing.T) {
	upstream := UpstreamError(json.RawMessage(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found","data":{"method":"x"}}}`))
	require.NotNil(t, upstream)
	assert.Equal(t, -32601, upstream.Code)
	assert.Equal(t, "Method not found", upstream.Message)
	assert.JSONEq(t, `{"method":"x"}`, string(upstream.Data))
	assert.ErrorIs(t, upstream, domain.ErrUpstreamFailure)

	assert.Nil(t, UpstreamError(json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{}}`)))
	assert.Nil(t, UpstreamError(json.RawMessage(`not json`)))
}

func TestResponseResult(t *testing.T) {
	result, err := ResponseResult(json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tools":[]}`, string(result))

	_, err = ResponseResult(json.RawMessage(`{"jsonrpc":"2.0","id":1,"error":{"code":1,"message":"boom"}}`))
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)

	_, err = ResponseResult(json.RawMessage(`{"jsonrpc":"2.0","id":1}`))
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	_, err = ResponseResult(json.RawMessage(`[]`))
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	var malformed *domain.MalformedError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "[]", malformed.Raw)
}
