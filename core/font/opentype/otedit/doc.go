/*
Package otedit assembles OpenType font tables and writes modified fonts.

It is the counterpart to package ot: where ot navigates the binary data of
an existing font, otedit produces binary data for tables that are to be
added to or replaced in a font. The package covers the tables which feature
generation and wrapper scaffolding have to touch:

▪ 'name': decoding all records of a name table, adding label strings,
allocating name IDs

▪ 'GSUB': assembling a substitution table from scratch or merging new
features into an existing one, without disturbing structures it does not
understand

▪ 'GPOS': building a pair-positioning table from legacy 'kern' data

▪ 'GDEF': building a glyph-class definition with a ligature caret list

▪ 'cmap': synthesizing a character map for fonts that lack one

Finally, Serialize re-packages a font's tables into a new font file, and
SaveFont persists it without ever leaving a half-written font behind.

Encoding follows the two-pass style common for SFNT structures: a sizing
pass assigns offsets, a fill pass writes big-endian bytes into a single
buffer. All multi-byte values are big-endian, as required by the font
format.

# Status

Sub-tables this package writes are deliberately plain: single substitutions
use format 2, ligature substitutions format 1, pair positionings format 1.
Class-based and contextual forms are never generated.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otedit

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'otfeat.fonts'.
func tracer() tracing.Trace {
	return tracing.Select("otfeat.fonts")
}
