package domain

import "encoding/json"

// ResultTag names the envelope shape a child response matched.
type ResultTag string

const (
	// ResultDirect is a structured result without nested text content.
	ResultDirect ResultTag = "direct"
	// ResultExtracted is a JSON object recovered from embedded text content.
	ResultExtracted ResultTag = "extracted"
	// ResultRaw is the unmodified response when no other shape matched.
	ResultRaw ResultTag = "raw"
)

// NormalizedResult is the uniform payload handed back to HTTP callers.
type NormalizedResult struct {
	Tag     ResultTag
	Payload json.RawMessage
}
