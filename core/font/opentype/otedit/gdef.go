package otedit

import (
	"sort"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// Glyph classes of the GDEF glyph class definition table.
const (
	GlyphClassBase      = 1
	GlyphClassLigature  = 2
	GlyphClassMark      = 3
	GlyphClassComponent = 4
)

// AssembleGDef builds a GDEF table (version 1.0) with a glyph class
// definition and a ligature caret list. Glyphs missing from classes default
// to class 0; carets maps ligature glyphs to their caret x-coordinates in
// font units. Either argument may be empty, the corresponding offset is
// then null.
//
// See https://docs.microsoft.com/en-us/typography/opentype/spec/gdef
func AssembleGDef(classes map[ot.GlyphIndex]uint16, carets map[ot.GlyphIndex][]int16) ([]byte, error) {
	b := make([]byte, 12)
	putU16(b, 0, 1) // majorVersion
	hasClasses := false
	for _, cls := range classes {
		if cls != 0 {
			hasClasses = true
			break
		}
	}
	if hasClasses {
		if len(b) > 0xffff {
			return nil, core.Error(core.EINVALID, "GDEF table overflows offset range")
		}
		putU16(b, 4, uint16(len(b))) // glyphClassDefOffset
		b = append(b, encodeClassDef(classes)...)
	}
	if len(carets) > 0 {
		if len(b) > 0xffff {
			return nil, core.Error(core.EINVALID, "GDEF table overflows offset range")
		}
		putU16(b, 8, uint16(len(b))) // ligCaretListOffset
		lcl, err := encodeLigCaretList(carets)
		if err != nil {
			return nil, err
		}
		b = append(b, lcl...)
	}
	return b, nil
}

// encodeLigCaretList writes a LigCaretList table. Caret values use format 1,
// a plain x-coordinate.
func encodeLigCaretList(carets map[ot.GlyphIndex][]int16) ([]byte, error) {
	glyphs := make([]ot.GlyphIndex, 0, len(carets))
	for g := range carets {
		glyphs = append(glyphs, g)
	}
	sort.Slice(glyphs, func(i, j int) bool { return glyphs[i] < glyphs[j] })
	b := make([]byte, 4+2*len(glyphs))
	putU16(b, 2, uint16(len(glyphs)))
	for i, g := range glyphs {
		if len(b) > 0xffff {
			return nil, core.Error(core.EINVALID, "ligature caret list overflows offset range")
		}
		putU16(b, 4+2*i, uint16(len(b)))
		coords := carets[g]
		lg := make([]byte, 2+2*len(coords))
		putU16(lg, 0, uint16(len(coords)))
		for k := range coords {
			putU16(lg, 2+2*k, uint16(len(lg)+4*k))
		}
		for _, x := range coords {
			cv := make([]byte, 4)
			putU16(cv, 0, 1) // caretValueFormat
			putU16(cv, 2, uint16(x))
			lg = append(lg, cv...)
		}
		b = append(b, lg...)
	}
	if len(b) > 0xffff {
		return nil, core.Error(core.EINVALID, "ligature caret list overflows offset range")
	}
	putU16(b, 0, uint16(len(b)))
	return append(b, encodeCoverage(glyphs)...), nil
}
