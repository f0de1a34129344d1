/*
Package feature detects, generates and audits OpenType layout features.

The package derives substitution features from glyph naming conventions: a
glyph "A.sc" is a small-caps variant of "A", "f_i" is a ligature of "f" and
"i", "A.ss01" belongs to stylistic set 1. From such names it proposes
feature groups (smcp, liga, dlig, ssNN, onum, …), synthesizes substitution
rules, and writes them into a font's GSUB table, together with UI labels
for stylistic sets.

Processing of a single font is a fixed sequence of stages:

▪ classify: map each glyph name to feature candidates (pure, no font state)

▪ build: validate candidates against the font's real glyph inventory and
collect them into ordered feature groups

▪ extract: read the features the font already has, in the same shape

▪ audit: compare proposed and present features, report findings

▪ apply: merge the missing rules and labels into the font and save it

Each stage is usable on its own; Pipeline wires them together, and
ProcessBatch runs the pipeline over many fonts concurrently.

# Status

Generated substitutions cover single and ligature substitutions, which is
what naming conventions can express. Positioning features are out of scope
here; package otwrap migrates legacy kern data separately.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package feature

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'otfeat.engine'.
func tracer() tracing.Trace {
	return tracing.Select("otfeat.engine")
}
