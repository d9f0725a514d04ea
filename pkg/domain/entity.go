package domain

import (
	"strings"
	"unicode"
)

// EntityType is the enumerated category a description is classified into.
type EntityType string

const (
	MagicItem   EntityType = "Magic Item"
	Spell       EntityType = "Spell"
	RegularItem EntityType = "Regular Item"
	Creature    EntityType = "Creature"
	Other       EntityType = "Other"
)

// EntityTypes returns the closed set of entity types in declaration order.
func EntityTypes() []EntityType {
	return []EntityType{MagicItem, Spell, RegularItem, Creature, Other}
}

// Valid reports whether t belongs to the enumeration.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Slug returns the snake_case form used for file names and index keys (e.g. "magic_item").
func (t EntityType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(t)), " ", "_")
}

func (t EntityType) String() string { return string(t) }

// ParseEntityType resolves a label, slug or camel-cased tag into an EntityType.
// "Magic Item", "magic_item", "magic-item" and "MagicItem" all resolve to MagicItem.
func ParseEntityType(s string) (EntityType, error) {
	key := normalizeTag(s)
	for _, t := range EntityTypes() {
		if normalizeTag(string(t)) == key {
			return t, nil
		}
	}
	return "", &UnknownTypeError{Type: EntityType(s)}
}

func normalizeTag(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
