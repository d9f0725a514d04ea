package generation

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

var codeFence = regexp.MustCompile("(?s)```(\\w+)?\\s*\\n(.*?)```")

// ExtractJSON returns the JSON object embedded in raw model output.
// It unwraps a fenced code block and trims prose around the outermost braces.
func ExtractJSON(raw string) string {
	out := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(out); len(m) > 0 {
		out = strings.TrimSpace(m[2])
	}

	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start >= 0 && end > start {
		out = out[start : end+1]
	}
	return out
}

// Decode maps a JSON object onto the fields of s. Unknown keys are dropped and
// absent keys and empty strings become null. JSON numbers keep their value; only
// strings are coerced with the field kind.
func Decode(doc string, s schema.RecordSchema) domain.Record {
	rec := s.NewRecord("")
	obj := gjson.Parse(doc)

	for _, f := range s.Fields() {
		res := obj.Get(f.Name)
		rec.Fields[f.Name] = decodeValue(res, f.Kind)
	}
	return rec
}

func decodeValue(res gjson.Result, kind schema.Kind) any {
	switch {
	case !res.Exists() || res.Type == gjson.Null:
		return nil
	case res.IsArray():
		list := []string{}
		for _, item := range res.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				list = append(list, s)
			}
		}
		return list
	case res.IsObject():
		return res.Raw
	case res.Type == gjson.Number:
		if _, ok := kind.(*schema.IntegerKind); ok {
			return int(res.Int())
		}
	}

	raw := strings.TrimSpace(res.String())
	if raw == "" {
		return nil
	}
	if v, ok := kind.Coerce(raw); ok {
		return v
	}
	return raw
}
