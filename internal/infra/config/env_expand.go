package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envExpander substitutes ${VAR} references in YAML scalar values and
// remembers which variables were unset.
type envExpander struct {
	lookup  func(string) (string, bool)
	missing map[string]struct{}
}

func newEnvExpander(lookup func(string) (string, bool)) *envExpander {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &envExpander{lookup: lookup, missing: make(map[string]struct{})}
}

func expandConfigEnv(raw []byte) (string, []string, error) {
	return newEnvExpander(nil).expand(raw)
}

func (e *envExpander) expand(raw []byte) (string, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return "", nil, fmt.Errorf("parse config: %w", err)
	}
	e.walk(&root)

	out, err := yaml.Marshal(&root)
	if err != nil {
		return "", nil, fmt.Errorf("encode expanded config: %w", err)
	}
	return string(out), e.missingNames(), nil
}

func (e *envExpander) walk(node *yaml.Node) {
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			e.walk(child)
		}
	case yaml.MappingNode:
		// Keys are never expanded.
		for i := 1; i < len(node.Content); i += 2 {
			e.walk(node.Content[i])
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			e.walk(node.Alias)
		}
	case yaml.ScalarNode:
		e.scalar(node)
	}
}

func (e *envExpander) scalar(node *yaml.Node) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}
	value := os.Expand(node.Value, func(key string) string {
		if v, ok := e.lookup(key); ok {
			return v
		}
		e.missing[key] = struct{}{}
		return ""
	})
	if value == node.Value {
		return
	}
	// Quoted scalars stay strings.
	if node.Style != 0 {
		node.Tag = "!!str"
		node.Value = value
		return
	}
	node.Tag, node.Value = retagScalar(value)
}

func (e *envExpander) missingNames() []string {
	if len(e.missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.missing))
	for name := range e.missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// retagScalar lets an unquoted ${VAR} resolve to a number or bool, so
// requestTimeoutSeconds: ${TIMEOUT} decodes as an int.
func retagScalar(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return "!!str", value
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return "!!str", value
	}
	switch v := parsed.(type) {
	case nil:
		return "!!null", "null"
	case bool:
		return "!!bool", strconv.FormatBool(v)
	case int:
		return "!!int", strconv.Itoa(v)
	case float64:
		return "!!float", strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "!!str", value
	}
}
