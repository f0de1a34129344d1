/*
Package otquery queries metrics and other information from OpenType fonts.

Package otquery provides functions to query layout information from a font. It knows about
the various tables contained in OpenType fonts and which ones to address for queries.
Clients of this package will, amongst other, be:

▪︎ the feature detection engine, which works on glyph names and character maps

▪︎ table rewriting code, which has to know what a font already contains

# Status

Work in progress. Handling fonts is fiddly and fonts have become complex software
applications in their own right. I often need a break from the vast desert of
bytes (without any sign posts), which is what font data files are at their core.

No font collections nor variable fonts are supported yet.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otquery

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'otfeat.fonts'
func tracer() tracing.Trace {
	return tracing.Select("otfeat.fonts")
}
