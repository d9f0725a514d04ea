package statblock

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/schema"
)

func scimitar() domain.Record {
	rec := schema.Item.NewRecord(domain.MagicItem)
	rec.Fields["name"] = "Flame Tongue"
	rec.Fields["damage"] = "1d6 slashing | 2d6 fire"
	rec.Fields["range"] = 5
	rec.Fields["saving_throw_type"] = "Dexterity"
	rec.Fields["rarity"] = "Rare"
	rec.Fields["flavour_text"] = "The blade hisses in the rain."
	return rec
}

func TestMarkdown(t *testing.T) {
	out := Markdown(scimitar(), schema.Item)

	assert.Contains(t, out, "## Flame Tongue\n")
	assert.Contains(t, out, "*MagicItem*")
	assert.Contains(t, out, "| Saving Throw Type | Dexterity |")
	assert.Contains(t, out, "| Range | 5 |")
	assert.Contains(t, out, `1d6 slashing \| 2d6 fire`)
	assert.Contains(t, out, "> The blade hisses in the rain.\n")
	assert.NotContains(t, out, "Charges")
	assert.NotContains(t, out, "| Name |")
}

func TestHTML(t *testing.T) {
	out, err := HTML(scimitar(), schema.Item)
	require.NoError(t, err)

	assert.Contains(t, out, "<h2>Flame Tongue</h2>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>Dexterity</td>")
	assert.Contains(t, out, "<blockquote>")
}

func TestWrite_Formats(t *testing.T) {
	rec := scimitar()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, rec, schema.Item))
	var decoded domain.Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Flame Tongue", decoded.Fields["name"])

	buf.Reset()
	require.NoError(t, Write(&buf, FormatText, rec, schema.Item))
	assert.Contains(t, buf.String(), "name: Flame Tongue\n")
	assert.Contains(t, buf.String(), "charges:\n")

	// A buffer is not a terminal, so markdown stays plain.
	buf.Reset()
	require.NoError(t, Write(&buf, FormatMarkdown, rec, schema.Item))
	assert.Equal(t, Markdown(rec, schema.Item), buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("MD")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	out, err := Terminal("## Flame Tongue\n", 40)
	require.NoError(t, err)
	assert.Contains(t, out, "Flame Tongue")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Saving Throw Type", Label("saving_throw_type"))
	assert.Equal(t, "Name", Label("name"))
}
