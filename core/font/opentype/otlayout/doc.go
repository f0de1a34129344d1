/*
Package otlayout provides access to OpenType font layout features.

It wraps the feature lists of the GSUB and GPOS tables into Go types,
decodes feature parameters (stylistic sets carry a UI label reference),
and applies substitution lookups to glyph buffers. Application currently
covers GSUB lookup types 1 to 4, which is the repertoire that generated
features draw from. Contextual lookups are listed, but not interpreted.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package otlayout

import (
	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/schuko/tracing"
)

// trace writes to trace with key 'otfeat.fonts'
func trace() tracing.Trace {
	return tracing.Select("otfeat.fonts")
}

// errFontFormat produces user level errors for font parsing.
func errFontFormat(x string) error {
	return core.Error(core.EINVALID, "OpenType font format: %s", x)
}
