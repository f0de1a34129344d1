package otedit

import (
	"math/bits"
	"sort"
	"strings"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// AssembleCMap builds a cmap table with a single format-4 subtable for the
// basic multilingual plane, shared by a Unicode (0,3) and a Windows (3,1)
// encoding record. Code points outside the BMP cannot be expressed in
// format 4 and are skipped with a notice.
//
// See https://docs.microsoft.com/en-us/typography/opentype/spec/cmap
func AssembleCMap(mapping map[rune]ot.GlyphIndex) ([]byte, error) {
	if len(mapping) == 0 {
		return nil, core.Error(core.EINVALID, "empty character mapping")
	}
	codes := make([]rune, 0, len(mapping))
	for r := range mapping {
		if r < 0 || r >= 0xffff {
			tracer().Infof("code point %#U outside the BMP, not mapped", r)
			continue
		}
		codes = append(codes, r)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	type segment struct {
		start, end uint16
		delta      uint16
	}
	var segs []segment
	for _, r := range codes {
		c, g := uint16(r), uint16(mapping[r])
		if n := len(segs); n > 0 && c == segs[n-1].end+1 && g-c == segs[n-1].delta {
			segs[n-1].end = c
			continue
		}
		segs = append(segs, segment{start: c, end: c, delta: g - c})
	}
	segs = append(segs, segment{start: 0xffff, end: 0xffff, delta: 1})

	n := len(segs)
	sublen := 16 + 8*n
	if sublen > 0xffff {
		return nil, core.Error(core.EINVALID, "too many cmap segments for format 4")
	}
	sub := make([]byte, sublen)
	putU16(sub, 0, 4) // format
	putU16(sub, 2, uint16(sublen))
	putU16(sub, 6, uint16(2*n)) // segCountX2
	sel := bits.Len(uint(n)) - 1
	putU16(sub, 8, uint16(2<<sel)) // searchRange
	putU16(sub, 10, uint16(sel))
	putU16(sub, 12, uint16(2*n-2<<sel)) // rangeShift
	for i, s := range segs {
		putU16(sub, 14+2*i, s.end)
		putU16(sub, 16+2*n+2*i, s.start)
		putU16(sub, 16+4*n+2*i, s.delta)
		// idRangeOffsets stay zero, all segments use deltas
	}

	b := make([]byte, 4+8*2)
	putU16(b, 2, 2) // two encoding records, one shared subtable
	putU16(b, 4, 0)
	putU16(b, 6, 3)
	putU32(b, 8, uint32(len(b)))
	putU16(b, 12, 3)
	putU16(b, 14, 1)
	putU32(b, 16, uint32(len(b)))
	return append(b, sub...), nil
}

// AssembleKern builds a kern table in the Windows flavor: a version 0 table
// with one horizontal format-0 subtable.
func AssembleKern(pairs []KernPair) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, core.Error(core.EINVALID, "no kerning pairs")
	}
	sorted := append([]KernPair{}, pairs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Left != sorted[j].Left {
			return sorted[i].Left < sorted[j].Left
		}
		return sorted[i].Right < sorted[j].Right
	})
	uniq := sorted[:0]
	for i, p := range sorted {
		if i > 0 && p.Left == uniq[len(uniq)-1].Left && p.Right == uniq[len(uniq)-1].Right {
			uniq[len(uniq)-1].Value = p.Value
			continue
		}
		uniq = append(uniq, p)
	}
	n := len(uniq)
	sublen := 14 + 6*n
	if sublen > 0xffff {
		return nil, core.Error(core.EINVALID, "too many pairs for a format-0 kern sub-table")
	}
	b := make([]byte, 4+sublen)
	putU16(b, 2, 1) // one sub-table
	putU16(b, 6, uint16(sublen))
	putU16(b, 8, 0x0001) // coverage: horizontal kerning values
	putU16(b, 10, uint16(n))
	sel := bits.Len(uint(n)) - 1
	putU16(b, 12, uint16(6<<sel)) // searchRange
	putU16(b, 14, uint16(sel))
	putU16(b, 16, uint16(6*n-6<<sel)) // rangeShift
	for i, p := range uniq {
		at := 18 + 6*i
		putU16(b, at, uint16(p.Left))
		putU16(b, at+2, uint16(p.Right))
		putU16(b, at+4, uint16(p.Value))
	}
	return b, nil
}

// FontSpec describes a font scaffold for BuildFont. Glyphs lists the glyph
// names in glyph-ID order; entry 0 is conventionally ".notdef". All outlines
// are empty, which is good enough for feature detection, table assembly and
// tests, though not for rendering.
type FontSpec struct {
	FamilyName string
	Glyphs     []string
	CMap       map[rune]ot.GlyphIndex
	Advances   []uint16 // per glyph; missing entries default to half an em
	UnitsPerEm uint16   // zero defaults to 1000
	Kern       []KernPair
	GSub       []byte // raw table data, e.g. from AssembleGSub
	GPos       []byte
	GDef       []byte
}

// BuildFont assembles a complete TrueType font from a scaffold description,
// with all tables the OpenType specification requires. The result parses
// with ot.Parse.
func BuildFont(spec FontSpec) ([]byte, error) {
	n := len(spec.Glyphs)
	if n == 0 {
		return nil, core.Error(core.EINVALID, "font scaffold needs at least one glyph")
	}
	if n > 0xffff {
		return nil, core.Error(core.EINVALID, "too many glyphs")
	}
	upem := spec.UnitsPerEm
	if upem == 0 {
		upem = 1000
	}
	advances := make([]uint16, n)
	maxAdvance := uint16(0)
	for i := range advances {
		advances[i] = upem / 2
		if i < len(spec.Advances) && spec.Advances[i] != 0 {
			advances[i] = spec.Advances[i]
		}
		if advances[i] > maxAdvance {
			maxAdvance = advances[i]
		}
	}

	tables := make(map[ot.Tag][]byte)
	tables[ot.T("head")] = encodeHead(upem)
	tables[ot.T("maxp")] = encodeMaxP(n)
	tables[ot.T("hhea")] = encodeHHea(n, maxAdvance)
	tables[ot.T("hmtx")] = encodeHMtx(advances)
	tables[ot.T("OS/2")] = encodeOS2()
	tables[ot.T("post")] = encodePostV2(spec.Glyphs)
	tables[ot.T("loca")] = make([]byte, 2*(n+1)) // short format, all glyphs empty
	tables[ot.T("glyf")] = make([]byte, 4)

	cmap, err := AssembleCMap(spec.CMap)
	if err != nil {
		return nil, err
	}
	tables[ot.T("cmap")] = cmap

	family := spec.FamilyName
	if family == "" {
		family = "Scaffold"
	}
	name := EditName(nil)
	name.SetName(1, family)
	name.SetName(2, "Regular")
	name.SetName(4, family)
	name.SetName(6, strings.ReplaceAll(family, " ", "")+"-Regular")
	nb, err := name.Encode()
	if err != nil {
		return nil, err
	}
	tables[ot.T("name")] = nb

	if len(spec.Kern) > 0 {
		kern, err := AssembleKern(spec.Kern)
		if err != nil {
			return nil, err
		}
		tables[ot.T("kern")] = kern
	}
	if spec.GSub != nil {
		tables[ot.T("GSUB")] = spec.GSub
	}
	if spec.GPos != nil {
		tables[ot.T("GPOS")] = spec.GPos
	}
	if spec.GDef != nil {
		tables[ot.T("GDEF")] = spec.GDef
	}
	return writeFont(tables)
}

func encodeHead(upem uint16) []byte {
	b := make([]byte, 54)
	putU16(b, 0, 1)                 // majorVersion
	putU32(b, 4, 0x00010000)        // fontRevision 1.0
	putU32(b, 12, headMagicNumber)  // magicNumber
	putU16(b, 16, 0x0003)           // flags: baseline at y=0, left sidebearing at x=0
	putU16(b, 18, upem)
	putU16(b, 46, 8) // lowestRecPPEM
	putU16(b, 48, 2) // fontDirectionHint
	// indexToLocFormat 0: short loca offsets
	return b
}

const headMagicNumber = 0x5F0F3CF5

func encodeMaxP(numGlyphs int) []byte {
	b := make([]byte, 32)
	putU32(b, 0, 0x00010000) // version 1.0, TrueType outlines
	putU16(b, 4, uint16(numGlyphs))
	putU16(b, 14, 2) // maxZones
	return b
}

func encodeHHea(numGlyphs int, maxAdvance uint16) []byte {
	b := make([]byte, 36)
	putU16(b, 0, 1)              // majorVersion
	putU16(b, 4, 800)            // ascender
	putU16(b, 6, uint16(-200&0xffff)) // descender
	putU16(b, 10, maxAdvance)
	putU16(b, 18, 1) // caretSlopeRise: vertical caret
	putU16(b, 34, uint16(numGlyphs))
	return b
}

func encodeHMtx(advances []uint16) []byte {
	b := make([]byte, 4*len(advances))
	for i, adv := range advances {
		putU16(b, 4*i, adv)
		// left side bearings stay zero
	}
	return b
}

func encodeOS2() []byte {
	b := make([]byte, 96)
	putU16(b, 0, 4)   // version
	putU16(b, 2, 500) // xAvgCharWidth
	putU16(b, 4, 400) // usWeightClass: regular
	putU16(b, 6, 5)   // usWidthClass: medium
	copy(b[58:62], "UKWN")
	putU16(b, 62, 0x0040) // fsSelection: REGULAR
	putU16(b, 64, 0x0020) // usFirstCharIndex
	putU16(b, 66, 0xffff)
	putU16(b, 68, 800)                 // sTypoAscender
	putU16(b, 70, uint16(-200&0xffff)) // sTypoDescender
	putU16(b, 72, 200)                 // sTypoLineGap
	putU16(b, 74, 1000)                // usWinAscent
	putU16(b, 76, 200)                 // usWinDescent
	putU16(b, 92, 0x0020)              // usBreakChar
	putU16(b, 94, 3)                   // usMaxContext
	return b
}

// encodePostV2 writes a post table in version 2.0 with all glyph names in
// the string storage.
func encodePostV2(names []string) []byte {
	n := len(names)
	b := make([]byte, 34+2*n)
	putU32(b, 0, 0x00020000)
	putU16(b, 8, uint16(-75&0xffff)) // underlinePosition
	putU16(b, 10, 50)                // underlineThickness
	putU16(b, 32, uint16(n))
	for i, name := range names {
		putU16(b, 34+2*i, uint16(258+i))
		if len(name) > 255 {
			name = name[:255]
		}
		b = append(b, byte(len(name)))
		b = append(b, name...)
	}
	return b
}
