/*
Package otwrap turns minimal fonts into well-formed OpenType fonts.

Fonts converted from legacy formats often arrive with a bare table set:
kerning sits in a legacy 'kern' table instead of GPOS, glyph classes are
nowhere defined, and there is no GSUB even when the glyph set plainly
contains ligatures. Package otwrap inspects such a font and derives a
wrapping plan, naming the tables that can be scaffolded from what the font
already knows about itself:

▪ a GSUB table with ligature substitutions inferred from glyph names

▪ a GPOS table with pair positionings migrated from the 'kern' table

▪ a GDEF table with glyph classes and ligature caret positions

▪ a character map rebuilt from code points encoded in glyph names

Planning and execution are separate steps: CreatePlan only inspects and
reports, Execute rewrites the font. The wrapper is conservative. It never
replaces a table that is already present, and it removes the legacy 'kern'
table only when explicitly asked to, and only when its pairs live on in a
GPOS table.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otwrap

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'otfeat.fonts'.
func tracer() tracing.Trace {
	return tracing.Select("otfeat.fonts")
}
