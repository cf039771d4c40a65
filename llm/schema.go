package llm

// Primitive types a schema field may declare.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// SchemaField describes one named input of a tool.
// Fields are required unless Optional is set.
type SchemaField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Optional    bool     `json:"optional,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolSchema is the structural input contract of a tool. It is independent
// of any vendor and is translated by each adapter.
type ToolSchema struct {
	Fields []SchemaField `json:"fields"`
}

// Field looks up a field by name.
func (s ToolSchema) Field(name string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return SchemaField{}, false
}

// Properties renders the fields as JSON-schema property objects.
func (s ToolSchema) Properties() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{"type": f.Type}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.Type == TypeArray {
			prop["items"] = map[string]any{"type": TypeString}
		}
		props[f.Name] = prop
	}
	return props
}

// Required lists the names of required fields in declaration order.
// It returns nil, not an empty slice, when every field is optional.
func (s ToolSchema) Required() []string {
	var required []string
	for _, f := range s.Fields {
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return required
}

// JSONSchema renders the object schema most vendors accept. The "required"
// key is omitted when no field is required.
func (s ToolSchema) JSONSchema() map[string]any {
	schema := map[string]any{
		"type":       TypeObject,
		"properties": s.Properties(),
	}
	if required := s.Required(); len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
