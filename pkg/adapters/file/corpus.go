package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/schema"
)

// DefaultCorpusPrefix names the per-type CSV files: <prefix>_<slug>.csv.
const DefaultCorpusPrefix = "dnd_converter_outputs"

// Corpus implements ports.Corpus with one CSV file per entity type.
// The header row holds the schema field names; each following row is one record.
type Corpus struct {
	dir      string
	prefix   string
	registry *schema.Registry
	mu       sync.Mutex
}

// CorpusOption configures the Corpus.
type CorpusOption func(*Corpus)

// WithPrefix overrides DefaultCorpusPrefix.
func WithPrefix(prefix string) CorpusOption {
	return func(c *Corpus) {
		c.prefix = prefix
	}
}

// WithRegistry overrides schema.Default.
func WithRegistry(r *schema.Registry) CorpusOption {
	return func(c *Corpus) {
		c.registry = r
	}
}

// NewCorpus creates a CSV corpus in dir.
func NewCorpus(dir string, opts ...CorpusOption) *Corpus {
	c := &Corpus{
		dir:      dir,
		prefix:   DefaultCorpusPrefix,
		registry: schema.Default,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the CSV file backing type t.
func (c *Corpus) Path(t domain.EntityType) string {
	return filepath.Join(c.dir, c.prefix+"_"+t.Slug()+".csv")
}

// Append adds the record as a row of its type's file, writing the header on first use.
func (c *Corpus) Append(ctx context.Context, record domain.Record) error {
	s, err := c.registry.SchemaFor(record.Type)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure corpus directory: %w", err)
	}

	f, err := os.OpenFile(c.Path(record.Type), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat corpus file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(s.Names()); err != nil {
			return fmt.Errorf("failed to write corpus header: %w", err)
		}
	}

	row := make([]string, 0, len(s.Names()))
	for _, name := range s.Names() {
		row = append(row, parser.FormatValue(record.Fields[name]))
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write corpus row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush corpus file: %w", err)
	}
	return f.Sync()
}

// Documents renders every row of t as "column: value" lines.
// A missing file yields an empty slice.
func (c *Corpus) Documents(ctx context.Context, t domain.EntityType) ([]string, error) {
	if !t.Valid() {
		return nil, &domain.UnknownTypeError{Type: t}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.Path(t))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read corpus header: %w", err)
	}

	docs := []string{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus row: %w", err)
		}
		docs = append(docs, renderRow(header, row))
	}
	return docs, nil
}

func renderRow(header, row []string) string {
	var b strings.Builder
	for i, col := range header {
		value := ""
		if i < len(row) {
			value = strings.TrimSpace(row[i])
		}
		b.WriteString(col)
		b.WriteString(parser.KeyValueSeparator)
		b.WriteString(" ")
		b.WriteString(value)
		b.WriteString("\n")
	}
	return b.String()
}
