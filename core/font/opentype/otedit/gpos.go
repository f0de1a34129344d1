package otedit

import (
	"sort"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// KernPair is one kerning pair. Value is added to the advance width of Left
// whenever Right follows it.
type KernPair struct {
	Left, Right ot.GlyphIndex
	Value       int16
}

// ReadKernPairs collects the kerning pairs of all plain horizontal format-0
// sub-tables of a kern table. Sub-tables with minimum values or cross-stream
// kerning have no equivalent in a GPOS pair-positioning lookup and are
// skipped.
func ReadKernPairs(kern *ot.KernTable) []KernPair {
	if kern == nil {
		return nil
	}
	b := kern.Binary()
	var pairs []KernPair
	for n := 0; n < kern.SubTableCount(); n++ {
		info := kern.SubTableInfo(n)
		if !info.IsHorizontal || info.IsMinimum || info.IsCrossStream {
			tracer().Infof("skipping kern sub-table %d, not plain horizontal kerning", n)
			continue
		}
		off := int(info.Offset)
		count := info.PairCount
		if off >= len(b) {
			continue
		}
		if max := (len(b) - off) / 6; count > max {
			tracer().Infof("kern sub-table %d declares %d pairs, only %d fit into the table", n, count, max)
			count = max
		}
		for i := 0; i < count; i++ {
			at := off + 6*i
			pairs = append(pairs, KernPair{
				Left:  ot.GlyphIndex(rdU16(b, at)),
				Right: ot.GlyphIndex(rdU16(b, at+2)),
				Value: int16(rdU16(b, at+4)),
			})
		}
	}
	return pairs
}

// AssembleGPos builds a GPOS table (version 1.0) with a single 'kern'
// feature holding the given pairs, registered for the default and the Latin
// script. Pair positioning uses format 1 with an x-advance adjustment on the
// first glyph. Large pair collections are split over several subtables to
// stay within the 16-bit offsets of the format.
//
// See https://docs.microsoft.com/en-us/typography/opentype/spec/gpos
func AssembleGPos(pairs []KernPair) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, core.Error(core.EINVALID, "no kerning pairs to position")
	}
	values := make(map[uint32]int16, len(pairs))
	for _, p := range pairs {
		key := uint32(p.Left)<<16 | uint32(p.Right)
		if old, ok := values[key]; ok && old != p.Value {
			tracer().Infof("duplicate kern pair (%d,%d), keeping the later value", p.Left, p.Right)
		}
		values[key] = p.Value
	}
	sets := make(map[ot.GlyphIndex][]KernPair)
	for key, v := range values {
		left := ot.GlyphIndex(key >> 16)
		sets[left] = append(sets[left], KernPair{left, ot.GlyphIndex(key), v})
	}
	lefts := make([]ot.GlyphIndex, 0, len(sets))
	for g := range sets {
		lefts = append(lefts, g)
		set := sets[g]
		sort.Slice(set, func(i, j int) bool { return set[i].Right < set[j].Right })
	}
	sort.Slice(lefts, func(i, j int) bool { return lefts[i] < lefts[j] })

	var subtables [][]byte
	var chunk []ot.GlyphIndex
	chunkBytes := 0
	flush := func() {
		if len(chunk) > 0 {
			subtables = append(subtables, encodePairPosSubtable(chunk, sets))
			chunk, chunkBytes = nil, 0
		}
	}
	for _, left := range lefts {
		setSize := 2 + 4*len(sets[left])
		// header, pair sets and coverage all live in the same 16-bit
		// offset range; keep a margin below 0xffff
		if len(chunk) > 0 && 10+4*(len(chunk)+1)+chunkBytes+setSize+4 > 0xf000 {
			flush()
		}
		chunk = append(chunk, left)
		chunkBytes += setSize
	}
	flush()

	lookup, err := wrapLookup(2, 0, subtables) // GPOS type 2, pair adjustment
	if err != nil {
		return nil, err
	}
	featureList, err := encodeFeatureList([]featEnc{{tag: ot.T("kern"), lookups: []uint16{0}}})
	if err != nil {
		return nil, err
	}
	lookupList, err := encodeLookupList([][]byte{lookup}, nil)
	if err != nil {
		return nil, err
	}
	scripts := encodeDefaultScriptList([]uint16{0})
	return assembleLayoutTable(scripts, featureList, lookupList)
}

// encodePairPosSubtable writes a PairPos subtable in format 1, value format
// 0x0004 (x-advance on the first glyph). Pair sets are keyed by the lefts in
// coverage order; records within a set are sorted by second glyph.
func encodePairPosSubtable(lefts []ot.GlyphIndex, sets map[ot.GlyphIndex][]KernPair) []byte {
	n := len(lefts)
	sub := make([]byte, 10+2*n)
	putU16(sub, 0, 1)      // posFormat
	putU16(sub, 4, 0x0004) // valueFormat1: XAdvance
	putU16(sub, 8, uint16(n))
	for i, left := range lefts {
		putU16(sub, 10+2*i, uint16(len(sub)))
		set := sets[left]
		ps := make([]byte, 2+4*len(set))
		putU16(ps, 0, uint16(len(set)))
		for k, p := range set {
			putU16(ps, 2+4*k, uint16(p.Right))
			putU16(ps, 4+4*k, uint16(p.Value))
		}
		sub = append(sub, ps...)
	}
	putU16(sub, 2, uint16(len(sub)))
	return append(sub, encodeCoverage(lefts)...)
}
