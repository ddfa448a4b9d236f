package mcpcodec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"lokkagw/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		tag     domain.ResultTag
		payload string
	}{
		{
			name:    "structured result",
			raw:     `{"jsonrpc":"2.0","id":1,"result":{"value":42}}`,
			tag:     domain.ResultDirect,
			payload: `{"value":42}`,
		},
		{
			name:    "array result",
			raw:     `{"jsonrpc":"2.0","id":1,"result":[1,2,3]}`,
			tag:     domain.ResultDirect,
			payload: `[1,2,3]`,
		},
		{
			name:    "scalar result",
			raw:     `{"jsonrpc":"2.0","id":1,"result":"ok"}`,
			tag:     domain.ResultDirect,
			payload: `"ok"`,
		},
		{
			name:    "embedded object in text",
			raw:     `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"Result for graph API: {\"value\":[{\"id\":\"u1\"}]} done"}]}}`,
			tag:     domain.ResultExtracted,
			payload: `{"value":[{"id":"u1"}]}`,
		},
		{
			name:    "greedy span from first to last brace",
			raw:     `{"result":{"content":[{"text":"a {\"x\":{\"y\":1}} b"}]}}`,
			tag:     domain.ResultExtracted,
			payload: `{"x":{"y":1}}`,
		},
		{
			name:    "text without braces",
			raw:     `{"result":{"content":[{"type":"text","text":"no json here"}]}}`,
			tag:     domain.ResultRaw,
			payload: `{"result":{"content":[{"type":"text","text":"no json here"}]}}`,
		},
		{
			name:    "unparseable braces",
			raw:     `{"result":{"content":[{"text":"{not json}"}]}}`,
			tag:     domain.ResultRaw,
			payload: `{"result":{"content":[{"text":"{not json}"}]}}`,
		},
		{
			name:    "missing text",
			raw:     `{"result":{"content":[{"type":"image"}]}}`,
			tag:     domain.ResultRaw,
			payload: `{"result":{"content":[{"type":"image"}]}}`,
		},
		{
			name:    "empty content",
			raw:     `{"result":{"content":[]}}`,
			tag:     domain.ResultRaw,
			payload: `{"result":{"content":[]}}`,
		},
		{
			name:    "null content counts as absent",
			raw:     `{"result":{"content":null,"isError":false}}`,
			tag:     domain.ResultDirect,
			payload: `{"content":null,"isError":false}`,
		},
		{
			name:    "empty string content counts as absent",
			raw:     `{"result":{"content":""}}`,
			tag:     domain.ResultDirect,
			payload: `{"content":""}`,
		},
		{
			name:    "text content is not a result",
			raw:     `{"result":{"content":"plain"}}`,
			tag:     domain.ResultRaw,
			payload: `{"result":{"content":"plain"}}`,
		},
		{
			name:    "error envelope",
			raw:     `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`,
			tag:     domain.ResultRaw,
			payload: `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"Method not found"}}`,
		},
		{
			name:    "null result",
			raw:     `{"jsonrpc":"2.0","id":1,"result":null}`,
			tag:     domain.ResultRaw,
			payload: `{"jsonrpc":"2.0","id":1,"result":null}`,
		},
		{
			name:    "non-object value",
			raw:     `[1,2]`,
			tag:     domain.ResultRaw,
			payload: `[1,2]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(json.RawMessage(tt.raw))
			assert.Equal(t, tt.tag, got.Tag)
			assert.JSONEq(t, tt.payload, string(got.Payload))
		})
	}
}

func TestNormalize_RawKeepsInputBytes(t *testing.T) {
	raw := json.RawMessage(`{"result":{"content":[{"text":"plain"}]},  "id":  7}`)
	got := Normalize(raw)
	assert.Equal(t, domain.ResultRaw, got.Tag)
	assert.Equal(t, string(raw), string(got.Payload))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Direct tool result", Message(domain.ResultDirect))
	assert.Equal(t, "Graph API result (extracted)", Message(domain.ResultExtracted))
	assert.Equal(t, "Raw Lokka response", Message(domain.ResultRaw))
}
