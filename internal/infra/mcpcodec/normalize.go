package mcpcodec

import (
	"bytes"
	"encoding/json"
	"strings"

	"lokkagw/internal/domain"
)

const (
	messageDirect    = "Direct tool result"
	messageExtracted = "Graph API result (extracted)"
	messageRaw       = "Raw Lokka response"
)

// Normalize classifies a child response. The first matching shape wins:
// a result without nested content is returned as is, then a JSON object
// embedded in result.content[0].text, then the whole response.
func Normalize(raw json.RawMessage) domain.NormalizedResult {
	if result, ok := directResult(raw); ok {
		return domain.NormalizedResult{Tag: domain.ResultDirect, Payload: result}
	}
	if extracted, ok := extractEmbeddedObject(raw); ok {
		return domain.NormalizedResult{Tag: domain.ResultExtracted, Payload: extracted}
	}
	return domain.NormalizedResult{Tag: domain.ResultRaw, Payload: raw}
}

// Message returns the caller-facing description for a result tag.
func Message(tag domain.ResultTag) string {
	switch tag {
	case domain.ResultDirect:
		return messageDirect
	case domain.ResultExtracted:
		return messageExtracted
	default:
		return messageRaw
	}
}

func directResult(raw json.RawMessage) (json.RawMessage, bool) {
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	result := bytes.TrimSpace(env.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, false
	}
	if result[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(result, &fields); err != nil {
			return nil, false
		}
		if content, nested := fields["content"]; nested && !emptyValue(content) {
			return nil, false
		}
	}
	return env.Result, true
}

// emptyValue reports whether v is null, false, 0 or "". A content field
// holding one of these counts as absent.
func emptyValue(v json.RawMessage) bool {
	switch string(bytes.TrimSpace(v)) {
	case "null", "false", `""`:
		return true
	}
	var n float64
	if err := json.Unmarshal(v, &n); err == nil {
		return n == 0
	}
	return false
}

// extractEmbeddedObject scans the first text content block from the first
// '{' to the last '}' and keeps the span only if it parses as JSON.
func extractEmbeddedObject(raw json.RawMessage) (json.RawMessage, bool) {
	var env struct {
		Result struct {
			Content []struct {
				Text *string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if len(env.Result.Content) == 0 {
		return nil, false
	}
	text := ""
	if env.Result.Content[0].Text != nil {
		text = *env.Result.Content[0].Text
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text[start:end+1])); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
