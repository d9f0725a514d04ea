/*
Package parser reconstructs typed records from loosely formatted flat text.

The input is zero or more documents separated by a delimiter line. Each
document is a list of "key: value" lines:

	name: Flame Blade
	damage: 2d6 fire
	range: 5 feet
	--document-separator--
	name: Frost Brand
	...

Values are coerced according to the schema field kinds; unknown keys are
ignored, and a document missing a required field is dropped with a
domain.ParseWarning while the remaining documents are still returned. The
writer side (Format, FormatAll) emits the same grammar so that stored
records can be read back.
*/
package parser
