package otedit

import (
	"sort"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// Encoding helpers shared by the table assemblers. SFNT structures are
// big-endian throughout.

func putU16(b []byte, at int, v uint16) {
	b[at] = byte(v >> 8)
	b[at+1] = byte(v)
}

func putU32(b []byte, at int, v uint32) {
	b[at] = byte(v >> 24)
	b[at+1] = byte(v >> 16)
	b[at+2] = byte(v >> 8)
	b[at+3] = byte(v)
}

func putTag(b []byte, at int, t ot.Tag) {
	putU32(b, at, uint32(t))
}

func rdU16(b []byte, at int) uint16 {
	return uint16(b[at])<<8 | uint16(b[at+1])
}

func rdU32(b []byte, at int) uint32 {
	return uint32(b[at])<<24 | uint32(b[at+1])<<16 | uint32(b[at+2])<<8 | uint32(b[at+3])
}

// sortedGlyphSet sorts glyphs ascending and drops duplicates.
func sortedGlyphSet(glyphs []ot.GlyphIndex) []ot.GlyphIndex {
	gs := make([]ot.GlyphIndex, len(glyphs))
	copy(gs, glyphs)
	sort.Slice(gs, func(i, j int) bool { return gs[i] < gs[j] })
	out := gs[:0]
	for i, g := range gs {
		if i > 0 && g == gs[i-1] {
			continue
		}
		out = append(out, g)
	}
	return out
}

type glyphRange struct {
	first, last ot.GlyphIndex
}

// glyphRanges splits a sorted glyph list into runs of consecutive IDs.
func glyphRanges(glyphs []ot.GlyphIndex) []glyphRange {
	var rs []glyphRange
	for _, g := range glyphs {
		if n := len(rs); n > 0 && rs[n-1].last+1 == g {
			rs[n-1].last = g
			continue
		}
		rs = append(rs, glyphRange{first: g, last: g})
	}
	return rs
}

// encodeCoverage writes a coverage table for a set of glyphs, which need not
// be sorted. Format 1 lists glyph IDs, format 2 lists ranges; the smaller of
// the two encodings wins.
func encodeCoverage(glyphs []ot.GlyphIndex) []byte {
	gs := sortedGlyphSet(glyphs)
	ranges := glyphRanges(gs)
	size1 := 4 + 2*len(gs)
	size2 := 4 + 6*len(ranges)
	if size1 <= size2 {
		b := make([]byte, size1)
		putU16(b, 0, 1) // coverageFormat
		putU16(b, 2, uint16(len(gs)))
		for i, g := range gs {
			putU16(b, 4+2*i, uint16(g))
		}
		return b
	}
	b := make([]byte, size2)
	putU16(b, 0, 2) // coverageFormat
	putU16(b, 2, uint16(len(ranges)))
	covInx := 0
	for i, r := range ranges {
		putU16(b, 4+6*i, uint16(r.first))
		putU16(b, 4+6*i+2, uint16(r.last))
		putU16(b, 4+6*i+4, uint16(covInx)) // startCoverageIndex
		covInx += int(r.last-r.first) + 1
	}
	return b
}

// encodeClassDef writes a format 2 class definition table. Glyphs without an
// entry fall into class 0, which therefore is never written out.
func encodeClassDef(classes map[ot.GlyphIndex]uint16) []byte {
	glyphs := make([]ot.GlyphIndex, 0, len(classes))
	for g, cls := range classes {
		if cls != 0 {
			glyphs = append(glyphs, g)
		}
	}
	sort.Slice(glyphs, func(i, j int) bool { return glyphs[i] < glyphs[j] })
	type classRange struct {
		first, last ot.GlyphIndex
		class       uint16
	}
	var rs []classRange
	for _, g := range glyphs {
		cls := classes[g]
		if n := len(rs); n > 0 && rs[n-1].last+1 == g && rs[n-1].class == cls {
			rs[n-1].last = g
			continue
		}
		rs = append(rs, classRange{first: g, last: g, class: cls})
	}
	b := make([]byte, 4+6*len(rs))
	putU16(b, 0, 2) // classFormat
	putU16(b, 2, uint16(len(rs)))
	for i, r := range rs {
		putU16(b, 4+6*i, uint16(r.first))
		putU16(b, 4+6*i+2, uint16(r.last))
		putU16(b, 4+6*i+4, r.class)
	}
	return b
}

// align4 pads b with zero bytes to the next 4-byte boundary.
func align4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

// align2 pads b with a zero byte if its length is odd.
func align2(b []byte) []byte {
	if len(b)%2 != 0 {
		b = append(b, 0)
	}
	return b
}
