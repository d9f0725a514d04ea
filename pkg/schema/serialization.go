package schema

import "encoding/json"

type fieldJSON struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Required    bool     `json:"required"`
	Allowed     []string `json:"allowed,omitempty"`
	Description string   `json:"description,omitempty"`
}

type schemaJSON struct {
	Name   string      `json:"name"`
	Fields []fieldJSON `json:"fields"`
}

// MarshalJSON serializes the schema as an ordered list of field descriptors.
func (s RecordSchema) MarshalJSON() ([]byte, error) {
	out := schemaJSON{Name: s.Name, Fields: make([]fieldJSON, 0, len(s.fields))}
	for _, f := range s.fields {
		fj := fieldJSON{
			Name:        f.Name,
			Kind:        f.Kind.Name(),
			Required:    f.Required,
			Description: f.Description,
		}
		if e, ok := f.Kind.(Enumerated); ok {
			fj.Allowed = e.Allowed()
		}
		out.Fields = append(out.Fields, fj)
	}
	return json.Marshal(out)
}
