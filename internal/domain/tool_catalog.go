package domain

import (
	"encoding/json"
	"time"
)

// ToolDescriptor is one entry of the child's advertised tool list.
// Body holds the descriptor exactly as the child sent it.
type ToolDescriptor struct {
	Name        string
	Description string
	Body        json.RawMessage
}

// MarshalJSON emits the descriptor body verbatim.
func (t ToolDescriptor) MarshalJSON() ([]byte, error) {
	if len(t.Body) == 0 {
		return json.Marshal(struct {
			Name        string `json:"name"`
			Description string `json:"description,omitempty"`
		}{Name: t.Name, Description: t.Description})
	}
	return t.Body, nil
}

// ToolCatalogSnapshot is an immutable view of the tool catalog.
// A zero FetchedAt means no fetch has succeeded yet.
type ToolCatalogSnapshot struct {
	Tools     []ToolDescriptor
	FetchedAt time.Time
	// ETag fingerprints Tools; equal tags mean an unchanged catalog.
	ETag string
}

func (s ToolCatalogSnapshot) Empty() bool {
	return len(s.Tools) == 0
}

func (s ToolCatalogSnapshot) Count() int {
	return len(s.Tools)
}

func (s ToolCatalogSnapshot) Fetched() bool {
	return !s.FetchedAt.IsZero()
}

// Age reports how long ago the snapshot was fetched, zero when never fetched.
func (s ToolCatalogSnapshot) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}

// Names lists tool names in catalog order.
func (s ToolCatalogSnapshot) Names() []string {
	names := make([]string, 0, len(s.Tools))
	for _, tool := range s.Tools {
		names = append(names, tool.Name)
	}
	return names
}

// Lookup finds a tool by exact name.
func (s ToolCatalogSnapshot) Lookup(name string) (ToolDescriptor, error) {
	for _, tool := range s.Tools {
		if tool.Name == name {
			return tool, nil
		}
	}
	return ToolDescriptor{}, &ToolNotFoundError{Name: name, Available: s.Names()}
}
