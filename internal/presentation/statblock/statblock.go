// Package statblock renders finished records for people: markdown, terminal, HTML and JSON.
package statblock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/term"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

// Format names an output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	// FormatText is the flat key: value grammar read back by the parser.
	FormatText Format = "text"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatMarkdown, FormatHTML, FormatJSON, FormatText:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Fields rendered outside the table.
const (
	titleField  = "name"
	flavorField = "flavour_text"
)

// Markdown renders rec as a titled table followed by its flavour text.
// Null fields are omitted.
func Markdown(rec domain.Record, s schema.RecordSchema) string {
	var sb strings.Builder

	title, _ := rec.String(titleField)
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&sb, "## %s\n\n", title)
	if rec.Type != "" {
		fmt.Fprintf(&sb, "*%s*\n\n", rec.Type)
	}

	var rows []string
	for _, f := range s.Fields() {
		if f.Name == titleField || f.Name == flavorField || rec.IsNull(f.Name) {
			continue
		}
		v, _ := rec.Get(f.Name)
		rows = append(rows, fmt.Sprintf("| %s | %s |", Label(f.Name), escapeCell(parser.FormatValue(v))))
	}
	if len(rows) > 0 {
		sb.WriteString("| Property | Value |\n|---|---|\n")
		sb.WriteString(strings.Join(rows, "\n"))
		sb.WriteString("\n\n")
	}

	if flavor, ok := rec.String(flavorField); ok && flavor != "" {
		for _, line := range strings.Split(strings.TrimSpace(flavor), "\n") {
			fmt.Fprintf(&sb, "> %s\n", line)
		}
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Label turns a field name into a column label: "saving_throw_type" becomes "Saving Throw Type".
func Label(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the markdown form of rec to an HTML fragment.
func HTML(rec domain.Record, s schema.RecordSchema) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(rec, s)), &buf); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

// JSON renders rec as indented JSON.
func JSON(rec domain.Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

// Terminal renders markdown with glamour for a terminal of the given width.
func Terminal(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// Write renders rec to w in format. Markdown is styled with glamour when w is a terminal.
func Write(w io.Writer, format Format, rec domain.Record, s schema.RecordSchema) error {
	var out string
	switch format {
	case FormatJSON:
		data, err := JSON(rec)
		if err != nil {
			return err
		}
		out = string(data) + "\n"
	case FormatHTML:
		html, err := HTML(rec, s)
		if err != nil {
			return err
		}
		out = html
	case FormatText:
		out = parser.Format(rec, s)
	default:
		out = Markdown(rec, s)
		if IsTerminal(w) {
			styled, err := Terminal(out, terminalWidth(w))
			if err == nil {
				out = styled
			}
		}
	}
	_, err := io.WriteString(w, out)
	return err
}
