/*
Package ot provides access to the internal structure of OpenType fonts.

Intended audience for this package are:

▪︎ tools that detect, generate or audit OpenType layout features

▪︎ any application needing to have the internal structure of an OpenType font file
available, and possibly extending the methods of package `ot` by handling
additional font tables

Package `ot` will not interpret the tables of a font on behalf of the client,
but rather just expose them. For example, it is not possible to ask package `ot`
for a kerning distance between two glyphs. Clients have to check for the
availability of kerning information and consult the appropriate table(s)
themselves. From this point of view, `ot` is a low-level package. Functions for
querying font-global information are homed in a sister package (otquery), as are
functions for assembling and rewriting tables (otedit).

OpenType fonts contain a whole lot of different tables and sub-tables. This package
strives to make the semantics of the tables accessible, thus has a lot of different
types for the different kinds of OT tables. This makes `ot` a shallow API,
but it will nevertheless abstract away some implementation details of fonts:

▪︎ Format versions: many OT tables may occur in a variety of formats. Tables in `ot` will
hide the concrete format and structure of underlying OT tables.

▪︎ Word size: offsets in OT may either be 2-byte or 4-byte values. Package `ot` will
hide offset-related details.

▪︎ Bugs in fonts: many fonts in the wild contain entries that infringe upon the
OT specification, strictly speaking, but an application using such a font should
not fail because of recoverable errors. Package `ot` will try to circumvent known
bugs in common fonts.

# Navigation

The binary data of a font can be thought of as a bunch of structures
connected by links. The linking is done by offsets (u16 or u32) from link anchors
defined by the spec. Data-structures may be categorized into fields-like,
list-likes and map-likes. The implementation details of these structures vary
heavily, and many internal tables combine more than one category, but conceptually
it should be possible to navigate the graph, spanned by links and structures,
without caring about implementation details.

We design an abstraction resting on chains of navigation items and links.
Consider an example: the OpenType specification flags the 'OS/2' table as
mandatory (though unused on Mac platforms), but package `ot` does not offer a
type for it. As a client, how do you access, e.g., OS/2.xAvgCharWidth?
We start by requesting OS/2 as a vanilla table:

	os2 := myfont.Table(T("OS/2"))

This should succeed unless `myfont` is broken. From there on, clients will have
to consult the OpenType specification. That will tell them that xAvgCharWidth is
the 2nd field (index 1) of table OS/2, right after the version field.

	xAvgCharWidth := os2.Fields().Get(1).U16(0)

That sure looks like a complicated way of getting a number out of a struct, but
remember that we agreed on having an abstraction on top of field-likes,
list-likes and map-likes. You didn't have to think about version differences in
OT OS/2-tables or byte-offsets from anchors.

The same mechanism carries through the layout tables. If we want to know which
features the font provides for Latin script with Turkish language flavour:

	gsub := myfont.Table(T("GSUB")).Self().AsGSub()
	feats := gsub.ScriptList.LookupTag(T("latn")).Navigate().Map().LookupTag(T("TRK")).Navigate().List()

A chain of navigation calls does not force clients to check each step for
success. If a link cannot be followed, the chain continues with null-objects and
clients check once, at the end. In other words, navigation is null-safe.

Navigation is complemented by concrete types for the tables this module leans
on most heavily (cmap, name, post, GSUB, GPOS, GDEF, kern). Concrete types are
obtained by a type-safe cast from a generic table:

	post := myfont.Table(T("post")).Self().AsPost()

# Status

No font collections nor variable fonts are supported yet.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>

Some code has originally been copied over from golang.org/x/image/font/sfnt/cmap.go,
as the cmap-routines are not accessible through the sfnt package's API.
I understand this to be legally okay as long as the Go license information
stays intact.

	Copyright 2017 The Go Authors. All rights reserved.
	Use of this source code is governed by a BSD-style
	license that can be found in the LICENSE file.

The license file mentioned can be found in file GO-LICENSE at the root folder
of this module.
*/
package ot

import (
	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/schuko/tracing"
)

// Valuable resource:
// http://opentypecookbook.com/

// tracer writes to trace with key 'otfeat.fonts'
func tracer() tracing.Trace {
	return tracing.Select("otfeat.fonts")
}

// errFontFormat produces user level errors for font parsing.
func errFontFormat(x string) error {
	return core.Error(core.EINVALID, "OpenType font format: %s", x)
}
