package file_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge/pkg/adapters/file"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/parser"
	"github.com/aretw0/statforge/pkg/ports"
	"github.com/aretw0/statforge/pkg/schema"
)

func TestFileCorpus_Contract(t *testing.T) {
	ports.RunCorpusContract(t, file.NewCorpus(t.TempDir()))
}

func TestFileCorpus_FileLayout(t *testing.T) {
	dir := t.TempDir()
	corpus := file.NewCorpus(dir)
	ctx := context.Background()

	rec := domain.Record{Type: domain.MagicItem, Fields: map[string]any{
		"name":         "Flametongue, Greater",
		"rarity":       "Rare",
		"range":        5,
		"flavour_text": "Line one\nline two",
	}}
	require.NoError(t, corpus.Append(ctx, rec))

	path := filepath.Join(dir, "dnd_converter_outputs_magic_item.csv")
	assert.Equal(t, path, corpus.Path(domain.MagicItem))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(schema.Item.Names(), ","), lines[0])
	assert.Contains(t, lines[1], `"Flametongue, Greater"`)
}

func TestFileCorpus_DocumentsParseBack(t *testing.T) {
	corpus := file.NewCorpus(t.TempDir(), file.WithPrefix("test"))
	ctx := context.Background()

	spell := domain.Record{Type: domain.Spell, Fields: map[string]any{
		"name":               "Burning Hands",
		"damage":             "3d6 fire",
		"range":              15,
		"saving_throw_dc":    nil,
		"saving_throw_type":  "Dexterity",
		"components":         []string{"Verbal", "Somatic"},
		"materials":          nil,
		"magic_school":       "Evocation",
		"spell_level":        1,
		"effect_description": "A thin sheet of flames shoots forth.",
		"flavour_text":       "Hands aglow.",
	}}
	require.NoError(t, corpus.Append(ctx, spell))

	docs, err := corpus.Documents(ctx, domain.Spell)
	require.NoError(t, err)

	records, warnings := parser.New().Parse(parser.Join(docs), schema.SpellBlock, domain.Spell)
	require.Empty(t, warnings)
	require.Len(t, records, 1)
	assert.Equal(t, spell.Fields, records[0].Fields)
}

func TestFileCorpus_UnknownType(t *testing.T) {
	_, err := file.NewCorpus(t.TempDir()).Documents(context.Background(), "Vehicle")

	var unknown *domain.UnknownTypeError
	assert.ErrorAs(t, err, &unknown)
}
