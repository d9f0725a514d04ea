// Package schema is the static registry of record schemas per entity type.
//
// A RecordSchema is an ordered list of FieldSpecs. Each field has a Kind that
// knows how to coerce flat text (used by the parser), validate a typed value
// (used on generated records) and describe itself as JSON Schema (used to bind
// structured generation):
//
//	spell := schema.NewRecordSchema("spell",
//	    schema.Required("name", schema.String(), "Name of the spell"),
//	    schema.Required("components", schema.ListOfEnum("Verbal", "Somatic", "Material"), ""),
//	    schema.Optional("range", schema.Integer(), "Range in feet"),
//	)
//
//	if err := schema.Validate(spell, record); err != nil {
//	    for _, e := range schema.ValidationErrors(err) {
//	        // Handle each field failure
//	    }
//	}
//
// The Default registry maps every domain.EntityType to one of the built-in
// shapes (Item, SpellBlock, Any). No reflection is involved: the table is
// built at initialization time and never mutated.
package schema
