package schema

// JSONSchema renders the schema as a strict JSON Schema object: every field is listed
// under "required" and optional fields accept null instead of being omitted.
// This is the shape expected by structured-output backends.
func JSONSchema(s RecordSchema) map[string]any {
	properties := make(map[string]any, len(s.fields))
	required := make([]any, 0, len(s.fields))

	for _, f := range s.fields {
		prop := f.Kind.JSONSchema()
		if !f.Required {
			prop = nullable(prop)
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		properties[f.Name] = prop
		required = append(required, f.Name)
	}

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

func nullable(prop map[string]any) map[string]any {
	out := make(map[string]any, len(prop))
	for k, v := range prop {
		out[k] = v
	}
	if t, ok := prop["type"].(string); ok {
		out["type"] = []any{t, "null"}
	}
	if enum, ok := prop["enum"].([]any); ok {
		out["enum"] = append(append([]any(nil), enum...), nil)
	}
	return out
}

// LenientJSONSchema renders the schema for validating model output after the fact:
// only required fields must be present, optional fields may be null or omitted,
// and unknown properties are tolerated.
func LenientJSONSchema(s RecordSchema) map[string]any {
	properties := make(map[string]any, len(s.fields))
	required := make([]any, 0, len(s.fields))

	for _, f := range s.fields {
		prop := f.Kind.JSONSchema()
		if f.Required {
			required = append(required, f.Name)
		} else {
			prop = nullable(prop)
		}
		properties[f.Name] = prop
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
