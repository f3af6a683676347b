package llm

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/generative-ai-go/genai"
)

// jsonSchemaNode is the subset of JSON Schema that maps onto genai.Schema.
// Validation-only keywords (minLength, minItems, bounds) are dropped; the
// response is still checked against the full document after it arrives.
type jsonSchemaNode struct {
	Type        string                     `json:"type"`
	Description string                     `json:"description"`
	Enum        []string                   `json:"enum"`
	Items       *jsonSchemaNode            `json:"items"`
	Properties  map[string]*jsonSchemaNode `json:"properties"`
	Required    []string                   `json:"required"`
}

// ResponseSchemaFromJSON converts a JSON Schema document into the schema the
// Gemini API uses to constrain structured output.
func ResponseSchemaFromJSON(doc []byte) (*genai.Schema, error) {
	var root jsonSchemaNode
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	return root.toGenai("(root)")
}

func (n *jsonSchemaNode) toGenai(path string) (*genai.Schema, error) {
	s := &genai.Schema{Description: n.Description}
	switch n.Type {
	case "string":
		s.Type = genai.TypeString
		if len(n.Enum) > 0 {
			s.Format = "enum"
			s.Enum = append([]string(nil), n.Enum...)
		}
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		if n.Items == nil {
			return nil, fmt.Errorf("%s: array schema has no items", path)
		}
		items, err := n.Items.toGenai(path + "[]")
		if err != nil {
			return nil, err
		}
		s.Items = items
	case "object":
		s.Type = genai.TypeObject
		names := make([]string, 0, len(n.Properties))
		for name := range n.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		s.Properties = make(map[string]*genai.Schema, len(names))
		for _, name := range names {
			prop, err := n.Properties[name].toGenai(path + "." + name)
			if err != nil {
				return nil, err
			}
			s.Properties[name] = prop
		}
		s.Required = append([]string(nil), n.Required...)
	default:
		return nil, fmt.Errorf("%s: unsupported schema type %q", path, n.Type)
	}
	return s, nil
}
