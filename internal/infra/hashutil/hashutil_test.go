package hashutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"lokkagw/internal/domain"
)

func tool(name, body string) domain.ToolDescriptor {
	return domain.ToolDescriptor{Name: name, Body: json.RawMessage(body)}
}

func TestToolCatalogETag(t *testing.T) {
	a := []domain.ToolDescriptor{tool("foo", `{"name":"foo"}`), tool("bar", `{"name":"bar"}`)}
	same := []domain.ToolDescriptor{tool("foo", `{ "name": "foo" }`), tool("bar", `{"name":"bar"}`)}
	reordered := []domain.ToolDescriptor{a[1], a[0]}
	changed := []domain.ToolDescriptor{tool("foo", `{"name":"foo","description":"x"}`), a[1]}

	etag := ToolCatalogETag(zap.NewNop(), a)
	assert.Len(t, etag, 64)
	assert.Equal(t, etag, ToolCatalogETag(nil, same), "whitespace in bodies is not significant")
	assert.NotEqual(t, etag, ToolCatalogETag(nil, reordered))
	assert.NotEqual(t, etag, ToolCatalogETag(nil, changed))
	assert.Empty(t, ToolCatalogETag(nil, nil))
}

func TestToolCatalogETag_InvalidBodyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	etag := ToolCatalogETag(zap.New(core), []domain.ToolDescriptor{tool("foo", `{broken`)})

	assert.Empty(t, etag)
	assert.Equal(t, 1, logs.FilterMessage("tool catalog hash failed").Len())
}
