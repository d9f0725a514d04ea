package parser

import (
	"log/slog"
	"strings"

	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

const (
	// DocumentSeparator splits a text block into documents.
	DocumentSeparator = "--document-separator--"
	// KeyValueSeparator splits a line into key and value at its first occurrence.
	KeyValueSeparator = ":"
)

// Parser converts delimited flat text into validated records.
// A Parser is stateless and safe for concurrent use.
type Parser struct {
	delimiter string
	separator string
	logger    *slog.Logger
}

// Option configures the Parser.
type Option func(*Parser)

// WithDelimiter overrides the document delimiter.
func WithDelimiter(d string) Option {
	return func(p *Parser) {
		p.delimiter = d
	}
}

// WithSeparator overrides the key/value separator.
func WithSeparator(s string) Option {
	return func(p *Parser) {
		p.separator = s
	}
}

// WithLogger configures a logger for skipped documents.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a Parser with the default grammar.
func New(opts ...Option) *Parser {
	p := &Parser{
		delimiter: DocumentSeparator,
		separator: KeyValueSeparator,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse returns the valid records found in raw, in document order, tagged with t.
// Documents missing a required field are skipped and reported as warnings; the chunk
// index counts non-empty documents from zero.
func (p *Parser) Parse(raw string, s schema.RecordSchema, t domain.EntityType) ([]domain.Record, []domain.ParseWarning) {
	var (
		records  []domain.Record
		warnings []domain.ParseWarning
	)

	for i, chunk := range p.chunks(raw) {
		rec := p.parseChunk(chunk, s, t)
		if missing := schema.MissingRequired(s, rec); len(missing) > 0 {
			w := domain.ParseWarning{Chunk: i, Missing: missing}
			p.logger.Warn("Skipping malformed document", "chunk", i, "missing", missing)
			warnings = append(warnings, w)
			continue
		}
		records = append(records, rec)
	}

	return records, warnings
}

func (p *Parser) chunks(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, p.delimiter) {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (p *Parser) parseChunk(chunk string, s schema.RecordSchema, t domain.EntityType) domain.Record {
	rec := s.NewRecord(t)

	for _, line := range strings.Split(chunk, "\n") {
		key, value, found := strings.Cut(line, p.separator)
		if !found {
			continue
		}
		field, ok := s.Field(normalizeKey(key))
		if !ok {
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" {
			rec.Fields[field.Name] = nil
			continue
		}
		if v, ok := field.Kind.Coerce(value); ok {
			rec.Fields[field.Name] = v
		} else {
			rec.Fields[field.Name] = nil
		}
	}

	return rec
}

// normalizeKey maps "Flavour Text" or "flavour-text" onto the snake_case field name.
func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(key)
}
