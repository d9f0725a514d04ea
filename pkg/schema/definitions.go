package schema

import "github.com/aretw0/statforge/pkg/domain"

// Abilities are the saving throw types shared by items and spells.
var Abilities = []string{"Strength", "Dexterity", "Constitution", "Intelligence", "Wisdom", "Charisma"}

// SpellComponents are the casting components of a spell.
var SpellComponents = []string{"Verbal", "Somatic", "Material"}

// MagicSchools are the schools a spell can belong to.
var MagicSchools = []string{"Evocation", "Necromancy", "Abjuration", "Enchantment", "Divination"}

// Item is the stat block shape of magic and regular items.
var Item = NewRecordSchema("item",
	Required("name", String(), "Name of the item"),
	Optional("damage", String(), "Damage dice and type, e.g. 1d6 fire"),
	Optional("range", Integer(), "Range in feet"),
	Optional("saving_throw", Integer(), "Saving throw DC"),
	Optional("saving_throw_type", Enum(Abilities...), "Ability used for the saving throw"),
	Optional("charges", Integer(), "Number of charges"),
	Required("rarity", String(), "Rarity, e.g. common, rare, legendary"),
	Optional("effect_description", String(), "Mechanical effect of the item"),
	Required("flavour_text", String(), "Evocative description of the item"),
)

// SpellBlock is the stat block shape of spells.
var SpellBlock = NewRecordSchema("spell",
	Required("name", String(), "Name of the spell"),
	Optional("damage", String(), "Damage dice and type"),
	Optional("range", Integer(), "Range in feet"),
	Optional("saving_throw_dc", Integer(), "Saving throw DC"),
	Optional("saving_throw_type", Enum(Abilities...), "Ability used for the saving throw"),
	Required("components", ListOfEnum(SpellComponents...), "Casting components"),
	Optional("materials", ListOfString(), "Material components"),
	Required("magic_school", Enum(MagicSchools...), "School of magic"),
	Required("spell_level", Integer(), "Spell level, 0 for cantrips"),
	Required("effect_description", String(), "Mechanical effect of the spell"),
	Required("flavour_text", String(), "Evocative description of the spell"),
)

// Any is the generic shape used for creatures and uncategorized entities.
var Any = NewRecordSchema("any",
	Required("name", String(), "Name of the entity"),
	Required("description", String(), "Description of the entity"),
)

// Effect is the shape of a magical effect produced by a scene. It is not bound to an
// EntityType: effects are described first and converted afterwards.
var Effect = NewRecordSchema("effect",
	Optional("name", String(), "Name of the effect"),
	Optional("damage", String(), "Damage dice and type"),
	Optional("range", Integer(), "Range in feet"),
	Optional("saving_throw_dc", Integer(), "Saving throw DC"),
	Optional("saving_throw_type", Enum(Abilities...), "Ability used for the saving throw"),
	Required("effect_description", String(), "What the effect does"),
	Required("flavour_text", String(), "How the effect looks and feels"),
)

// classification is the single-field answer shape of the classify stage.
var classification = newClassification()

func newClassification() RecordSchema {
	labels := make([]string, 0, len(domain.EntityTypes()))
	for _, t := range domain.EntityTypes() {
		labels = append(labels, string(t))
	}
	return NewRecordSchema("entity_type",
		Required("type", Enum(labels...), "Category of the described entity"),
	)
}

// Classification returns the schema constraining the classify stage to the EntityType enumeration.
func Classification() RecordSchema { return classification }
