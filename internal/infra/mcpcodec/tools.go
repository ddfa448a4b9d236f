package mcpcodec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"lokkagw/internal/domain"
)

// ToolList is the decoded result of a tools/list call.
type ToolList struct {
	Tools []domain.ToolDescriptor
	// Skipped counts entries dropped for a missing or duplicate name.
	Skipped int
}

// DecodeToolList reads result.tools in order. Each entry keeps its body as
// sent; the first occurrence of a name wins.
func DecodeToolList(result json.RawMessage) (ToolList, error) {
	var wire struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return ToolList{}, &domain.MalformedError{Raw: string(result), Cause: fmt.Errorf("decode tools: %w", err)}
	}
	if wire.Tools == nil {
		return ToolList{}, &domain.MalformedError{Raw: string(result), Cause: errors.New("result has no tools array")}
	}

	list := ToolList{Tools: make([]domain.ToolDescriptor, 0, len(wire.Tools))}
	seen := make(map[string]struct{}, len(wire.Tools))
	for _, entry := range wire.Tools {
		tool, ok := ToolFromMCP(entry)
		if !ok {
			list.Skipped++
			continue
		}
		if _, dup := seen[tool.Name]; dup {
			list.Skipped++
			continue
		}
		seen[tool.Name] = struct{}{}
		list.Tools = append(list.Tools, tool)
	}
	return list, nil
}

// ToolFromMCP converts one tools/list entry to a descriptor.
func ToolFromMCP(entry json.RawMessage) (domain.ToolDescriptor, bool) {
	var tool mcp.Tool
	if err := json.Unmarshal(entry, &tool); err != nil {
		return domain.ToolDescriptor{}, false
	}
	if tool.Name == "" {
		return domain.ToolDescriptor{}, false
	}
	body := make(json.RawMessage, len(entry))
	copy(body, entry)
	return domain.ToolDescriptor{
		Name:        tool.Name,
		Description: tool.Description,
		Body:        body,
	}, true
}
