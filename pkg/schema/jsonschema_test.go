package schema_test

import (
	"testing"

	"github.com/aretw0/statforge/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSchema_StrictShape(t *testing.T) {
	js := schema.JSONSchema(schema.Item)

	assert.Equal(t, "object", js["type"])
	assert.Equal(t, false, js["additionalProperties"])
	assert.Len(t, js["required"], len(schema.Item.Names()))

	props := js["properties"].(map[string]any)

	name := props["name"].(map[string]any)
	assert.Equal(t, "string", name["type"])

	rng := props["range"].(map[string]any)
	assert.Equal(t, []any{"integer", "null"}, rng["type"])

	save := props["saving_throw_type"].(map[string]any)
	enum := save["enum"].([]any)
	require.Len(t, enum, len(schema.Abilities)+1)
	assert.Nil(t, enum[len(enum)-1])
}

func TestJSONSchema_DoesNotMutateKinds(t *testing.T) {
	_ = schema.JSONSchema(schema.Item)
	f, _ := schema.Item.Field("saving_throw_type")
	assert.Len(t, f.Kind.JSONSchema()["enum"], len(schema.Abilities))
}

func TestLenientJSONSchema_RequiresOnlyRequiredFields(t *testing.T) {
	js := schema.LenientJSONSchema(schema.SpellBlock)

	assert.NotContains(t, js, "additionalProperties")
	assert.ElementsMatch(t,
		[]any{"name", "components", "magic_school", "spell_level", "effect_description", "flavour_text"},
		js["required"])
}
