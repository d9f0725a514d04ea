package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

// Format writes a record as one document in schema field order.
// Null fields are written with an empty value so the field set stays visible.
func Format(r domain.Record, s schema.RecordSchema) string {
	var b strings.Builder
	for _, name := range s.Names() {
		b.WriteString(name)
		b.WriteString(KeyValueSeparator)
		if v := FormatValue(r.Fields[name]); v != "" {
			b.WriteString(" ")
			b.WriteString(v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatAll writes records as documents separated by DocumentSeparator.
func FormatAll(records []domain.Record, s schema.RecordSchema) string {
	docs := make([]string, len(records))
	for i, r := range records {
		docs[i] = Format(r, s)
	}
	return Join(docs)
}

// Join concatenates raw documents with the document separator.
func Join(docs []string) string {
	return strings.Join(docs, "\n"+DocumentSeparator+"\n")
}

// FormatValue renders a single record value on one line.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return oneLine(val)
	case int:
		return strconv.Itoa(val)
	case []string:
		items := make([]string, len(val))
		for i, item := range val {
			items[i] = oneLine(item)
		}
		return strings.Join(items, ", ")
	default:
		return oneLine(fmt.Sprint(val))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
