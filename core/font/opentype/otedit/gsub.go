package otedit

import (
	"sort"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// SingleSubst replaces one glyph with another.
type SingleSubst struct {
	From, To ot.GlyphIndex
}

// LigatureSubst replaces a sequence of glyphs with a single ligature glyph.
// Components holds the complete sequence, including the first glyph.
type LigatureSubst struct {
	Components []ot.GlyphIndex
	Ligature   ot.GlyphIndex
}

// FeatureSpec describes a layout feature to be written into a GSUB table,
// together with the substitution rules it activates. Singles become a
// single-substitution lookup (type 1), Ligatures a ligature-substitution
// lookup (type 4). A non-zero ParamsNameID is written as a FeatureParams
// table in the stylistic-set format, pointing to a name-table entry with the
// feature's UI label.
type FeatureSpec struct {
	Tag          ot.Tag
	ParamsNameID uint16
	Singles      []SingleSubst
	Ligatures    []LigatureSubst
}

func (fs FeatureSpec) isEmpty() bool {
	return len(fs.Singles) == 0 && len(fs.Ligatures) == 0 && fs.ParamsNameID == 0
}

// --- Assembling a GSUB table from scratch ----------------------------------

// AssembleGSub builds a complete GSUB table (version 1.0) from feature
// specifications. All features are registered for the default and the Latin
// script, each with a default language system only.
//
// See https://docs.microsoft.com/en-us/typography/opentype/spec/gsub
func AssembleGSub(feats []FeatureSpec) ([]byte, error) {
	encs, lookups, err := encodeFeatureSpecs(feats, 0)
	if err != nil {
		return nil, err
	}
	indices := make([]uint16, len(encs))
	for i := range encs {
		indices[i] = uint16(i)
	}
	scripts := encodeDefaultScriptList(indices)
	featureList, err := encodeFeatureList(encs)
	if err != nil {
		return nil, err
	}
	lookupList, err := encodeLookupList(lookups, nil)
	if err != nil {
		return nil, err
	}
	return assembleLayoutTable(scripts, featureList, lookupList)
}

// featEnc is a feature ready for serialization: tag, encoded FeatureParams
// bytes (may be empty) and the lookup indices the feature activates.
type featEnc struct {
	tag     ot.Tag
	params  []byte
	lookups []uint16
}

// encodeFeatureSpecs turns feature specs into sorted featEnc entries plus the
// encoded lookup blocks they reference. Lookup indices start at base, leaving
// room for pre-existing lookups when merging.
func encodeFeatureSpecs(feats []FeatureSpec, base int) ([]featEnc, [][]byte, error) {
	sorted := append([]FeatureSpec{}, feats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Tag == sorted[i-1].Tag {
			return nil, nil, core.Error(core.EINVALID, "duplicate feature tag '%s'", sorted[i].Tag)
		}
	}
	var lookups [][]byte
	encs := make([]featEnc, 0, len(sorted))
	for _, f := range sorted {
		enc := featEnc{tag: f.Tag}
		if len(f.Singles) > 0 {
			lk, err := encodeSingleSubstLookup(f.Singles)
			if err != nil {
				return nil, nil, err
			}
			enc.lookups = append(enc.lookups, uint16(base+len(lookups)))
			lookups = append(lookups, lk)
		}
		if len(f.Ligatures) > 0 {
			lk, err := encodeLigatureSubstLookup(f.Ligatures)
			if err != nil {
				return nil, nil, err
			}
			enc.lookups = append(enc.lookups, uint16(base+len(lookups)))
			lookups = append(lookups, lk)
		}
		if f.ParamsNameID != 0 {
			enc.params = encodeStylisticSetParams(f.ParamsNameID)
		}
		encs = append(encs, enc)
	}
	return encs, lookups, nil
}

// encodeStylisticSetParams writes a FeatureParams table for 'ss01'…'ss20'
// features: version 0 followed by the name ID of the UI label.
func encodeStylisticSetParams(nameID uint16) []byte {
	b := make([]byte, 4)
	putU16(b, 2, nameID)
	return b
}

// encodeSingleSubstLookup builds a self-contained lookup block with a single
// SingleSubst subtable in format 2. Offsets within the block are relative to
// its first byte, so the block may be placed anywhere in the lookup section.
func encodeSingleSubstLookup(subs []SingleSubst) ([]byte, error) {
	repl := make(map[ot.GlyphIndex]ot.GlyphIndex, len(subs))
	glyphs := make([]ot.GlyphIndex, 0, len(subs))
	for _, s := range subs {
		if to, ok := repl[s.From]; ok {
			if to != s.To {
				return nil, core.Error(core.EINVALID, "conflicting substitutions for glyph %d", s.From)
			}
			continue
		}
		repl[s.From] = s.To
		glyphs = append(glyphs, s.From)
	}
	sort.Slice(glyphs, func(i, j int) bool { return glyphs[i] < glyphs[j] })
	sub := make([]byte, 6+2*len(glyphs))
	putU16(sub, 0, 2) // substFormat
	putU16(sub, 4, uint16(len(glyphs)))
	for i, g := range glyphs {
		putU16(sub, 6+2*i, uint16(repl[g]))
	}
	if len(sub) > 0xffff {
		return nil, core.Error(core.EINVALID, "single substitution lookup overflows")
	}
	putU16(sub, 2, uint16(len(sub))) // coverage follows the substitute array
	sub = append(sub, encodeCoverage(glyphs)...)
	return wrapLookup(1, 0, [][]byte{sub})
}

// encodeLigatureSubstLookup builds a self-contained lookup block with a
// LigatureSubst subtable in format 1. Within each ligature set, longer
// component sequences come first so that matching prefers the longest
// ligature.
func encodeLigatureSubstLookup(ligs []LigatureSubst) ([]byte, error) {
	sets := make(map[ot.GlyphIndex][]LigatureSubst)
	seen := make(map[string]ot.GlyphIndex)
	for _, lig := range ligs {
		if len(lig.Components) < 2 {
			return nil, core.Error(core.EINVALID, "ligature glyph %d needs at least 2 components", lig.Ligature)
		}
		key := componentKey(lig.Components)
		if prev, ok := seen[key]; ok {
			if prev != lig.Ligature {
				return nil, core.Error(core.EINVALID, "conflicting ligatures for one component sequence (glyphs %d and %d)",
					prev, lig.Ligature)
			}
			continue
		}
		seen[key] = lig.Ligature
		sets[lig.Components[0]] = append(sets[lig.Components[0]], lig)
	}
	firsts := make([]ot.GlyphIndex, 0, len(sets))
	for g := range sets {
		firsts = append(firsts, g)
	}
	sort.Slice(firsts, func(i, j int) bool { return firsts[i] < firsts[j] })
	sub := make([]byte, 6+2*len(firsts))
	putU16(sub, 0, 1) // substFormat
	putU16(sub, 4, uint16(len(firsts)))
	for i, g := range firsts {
		set := sets[g]
		sort.SliceStable(set, func(a, b int) bool {
			return len(set[a].Components) > len(set[b].Components)
		})
		if len(sub) > 0xffff {
			return nil, core.Error(core.EINVALID, "ligature substitution lookup overflows")
		}
		putU16(sub, 6+2*i, uint16(len(sub)))
		sub = append(sub, encodeLigatureSet(set)...)
	}
	if len(sub) > 0xffff {
		return nil, core.Error(core.EINVALID, "ligature substitution lookup overflows")
	}
	putU16(sub, 2, uint16(len(sub)))
	sub = append(sub, encodeCoverage(firsts)...)
	return wrapLookup(4, 0, [][]byte{sub})
}

func componentKey(comps []ot.GlyphIndex) string {
	b := make([]byte, 2*len(comps))
	for i, c := range comps {
		putU16(b, 2*i, uint16(c))
	}
	return string(b)
}

// encodeLigatureSet writes a LigatureSet table. Offsets are relative to the
// start of the set.
func encodeLigatureSet(ligs []LigatureSubst) []byte {
	b := make([]byte, 2+2*len(ligs))
	putU16(b, 0, uint16(len(ligs)))
	for i, lig := range ligs {
		putU16(b, 2+2*i, uint16(len(b)))
		lt := make([]byte, 4+2*(len(lig.Components)-1))
		putU16(lt, 0, uint16(lig.Ligature))
		putU16(lt, 2, uint16(len(lig.Components)))
		for k, comp := range lig.Components[1:] {
			putU16(lt, 4+2*k, uint16(comp))
		}
		b = append(b, lt...)
	}
	return b
}

// wrapLookup prepends a lookup table header to a list of subtable blocks.
// The result is self-contained, all offsets relative to its first byte.
func wrapLookup(ltype, flag uint16, subtables [][]byte) ([]byte, error) {
	n := len(subtables)
	hdrlen := 6 + 2*n
	if flag&uint16(ot.LOOKUP_FLAG_USE_MARK_FILTERING_SET) != 0 {
		return nil, core.Error(core.EINTERNAL, "mark filtering sets not supported for generated lookups")
	}
	b := make([]byte, hdrlen)
	putU16(b, 0, ltype)
	putU16(b, 2, flag)
	putU16(b, 4, uint16(n))
	off := hdrlen
	for i, sub := range subtables {
		if off > 0xffff {
			return nil, core.Error(core.EINVALID, "lookup subtables overflow offset range")
		}
		putU16(b, 6+2*i, uint16(off))
		off += len(sub)
	}
	for _, sub := range subtables {
		b = append(b, sub...)
	}
	return b, nil
}

// encodeFeatureList writes the FeatureList: the record array, sorted by tag,
// followed by the feature tables. FeatureParams, where present, trail their
// feature table directly.
func encodeFeatureList(feats []featEnc) ([]byte, error) {
	n := len(feats)
	b := make([]byte, 2+6*n)
	putU16(b, 0, uint16(n))
	for i, f := range feats {
		if len(b) > 0xffff {
			return nil, core.Error(core.EINVALID, "feature list overflows offset range")
		}
		putTag(b, 2+6*i, f.tag)
		putU16(b, 2+6*i+4, uint16(len(b)))
		ft := make([]byte, 4+2*len(f.lookups))
		if len(f.params) > 0 {
			putU16(ft, 0, uint16(len(ft)))
		}
		putU16(ft, 2, uint16(len(f.lookups)))
		for k, li := range f.lookups {
			putU16(ft, 4+2*k, li)
		}
		ft = append(ft, f.params...)
		b = append(b, ft...)
	}
	return b, nil
}

// encodeLookupList writes the LookupList: the offset array followed by the
// lookup blocks, with trailer appended verbatim at the end. Offsets only ever
// point at the blocks, never into the trailer, which is reached through
// 32-bit extension offsets inside the blocks.
func encodeLookupList(lookups [][]byte, trailer []byte) ([]byte, error) {
	n := len(lookups)
	b := make([]byte, 2+2*n)
	putU16(b, 0, uint16(n))
	for i, lk := range lookups {
		if len(b) > 0xffff {
			return nil, core.Error(core.EINVALID, "lookup list overflows offset range")
		}
		putU16(b, 2+2*i, uint16(len(b)))
		b = append(b, lk...)
	}
	return append(b, trailer...), nil
}

// encodeLangSys writes a LangSys table with no required feature.
func encodeLangSys(required uint16, featureIdx []uint16) []byte {
	b := make([]byte, 6+2*len(featureIdx))
	putU16(b, 2, required)
	putU16(b, 4, uint16(len(featureIdx)))
	for i, fi := range featureIdx {
		putU16(b, 6+2*i, fi)
	}
	return b
}

// encodeDefaultScriptList writes a ScriptList with scripts DFLT and latn,
// each carrying a default language system that activates all given features.
func encodeDefaultScriptList(featureIdx []uint16) []byte {
	langSys := encodeLangSys(0xffff, featureIdx)
	script := make([]byte, 4)
	putU16(script, 0, 4) // default LangSys follows the script table header
	script = append(script, langSys...)

	b := make([]byte, 2+2*6)
	putU16(b, 0, 2)
	putTag(b, 2, ot.T("DFLT"))
	putU16(b, 6, uint16(len(b)))
	b = append(b, script...)
	putTag(b, 8, ot.T("latn"))
	putU16(b, 12, uint16(14+len(script)))
	b = append(b, script...)
	return b
}

// assembleLayoutTable concatenates header, ScriptList, FeatureList and
// LookupList into a version 1.0 layout table.
func assembleLayoutTable(scripts, features, lookupList []byte) ([]byte, error) {
	b := make([]byte, 10)
	putU16(b, 0, 1) // majorVersion
	scriptsOff := len(b)
	featsOff := scriptsOff + len(scripts)
	lookupsOff := featsOff + len(features)
	if lookupsOff > 0xffff {
		return nil, core.Error(core.EINVALID, "layout table overflows offset range")
	}
	putU16(b, 4, uint16(scriptsOff))
	putU16(b, 6, uint16(featsOff))
	putU16(b, 8, uint16(lookupsOff))
	b = append(b, scripts...)
	b = append(b, features...)
	b = append(b, lookupList...)
	return b, nil
}

// --- Merging features into an existing GSUB table --------------------------

// MergeGSub rewrites a font's GSUB table with additional features. The
// existing lookups are preserved byte for byte: the section from the lookup
// list to the end of the table is carried over as an opaque block, and each
// original lookup is replaced by an extension lookup (type 7) pointing into
// that block with a 32-bit offset. Lookup indices do not change, so feature
// tables and contextual lookups referencing lookups by index stay valid. New
// lookups are appended after the originals.
//
// Features in feats whose tag already exists in the font are merged into the
// existing feature record: new lookup indices are appended and FeatureParams
// are added if the feature has none. This is also the path for repairing a
// stylistic set without a UI label, using a spec with no substitutions and
// just a ParamsNameID.
//
// Returned warnings report dropped data, currently only FeatureParams of
// unregistered kinds.
func MergeGSub(gsub *ot.GSubTable, feats []FeatureSpec) ([]byte, []string, error) {
	if gsub == nil {
		data, err := AssembleGSub(feats)
		return data, nil, err
	}
	b := gsub.Binary()
	if len(b) < 10 {
		return nil, nil, core.Error(core.EINVALID, "GSUB table too short")
	}
	if major := rdU16(b, 0); major != 1 {
		return nil, nil, core.Error(core.EINVALID, "unsupported GSUB version %d", major)
	}
	if minor := rdU16(b, 2); minor >= 1 {
		if len(b) < 14 {
			return nil, nil, core.Error(core.EINVALID, "GSUB table too short")
		}
		if rdU32(b, 10) != 0 {
			return nil, nil, core.Error(core.EINVALID, "GSUB with feature variations cannot be rewritten")
		}
	}
	scriptsOff := int(rdU16(b, 4))
	featsOff := int(rdU16(b, 6))
	lookupsOff := int(rdU16(b, 8))
	if lookupsOff == 0 || lookupsOff >= len(b) {
		tracer().Infof("GSUB has no lookup section, building a fresh table")
		data, err := AssembleGSub(feats)
		return data, nil, err
	}

	origLookups, err := parseOrigLookups(b, lookupsOff)
	if err != nil {
		return nil, nil, err
	}
	origFeats, warnings, err := parseOrigFeatures(b, featsOff)
	if err != nil {
		return nil, nil, err
	}
	origScripts, err := parseOrigScripts(b, scriptsOff)
	if err != nil {
		return nil, nil, err
	}

	// Merge new features into the existing feature set. Features are matched
	// by tag; unmatched specs are appended with lookup indices following the
	// preserved ones.
	featByTag := make(map[ot.Tag]int, len(origFeats))
	for i, f := range origFeats {
		if _, ok := featByTag[f.tag]; !ok {
			featByTag[f.tag] = i
		}
	}
	var newLookups [][]byte
	var touched []int
	for _, spec := range sortedSpecs(feats) {
		if spec.isEmpty() {
			continue
		}
		var indices []uint16
		if len(spec.Singles) > 0 {
			lk, err := encodeSingleSubstLookup(spec.Singles)
			if err != nil {
				return nil, nil, err
			}
			indices = append(indices, uint16(len(origLookups)+len(newLookups)))
			newLookups = append(newLookups, lk)
		}
		if len(spec.Ligatures) > 0 {
			lk, err := encodeLigatureSubstLookup(spec.Ligatures)
			if err != nil {
				return nil, nil, err
			}
			indices = append(indices, uint16(len(origLookups)+len(newLookups)))
			newLookups = append(newLookups, lk)
		}
		if i, ok := featByTag[spec.Tag]; ok {
			origFeats[i].lookups = append(origFeats[i].lookups, indices...)
			if spec.ParamsNameID != 0 && len(origFeats[i].params) == 0 {
				origFeats[i].params = encodeStylisticSetParams(spec.ParamsNameID)
			}
			touched = append(touched, i)
		} else {
			fe := featEnc{tag: spec.Tag, lookups: indices}
			if spec.ParamsNameID != 0 {
				fe.params = encodeStylisticSetParams(spec.ParamsNameID)
			}
			featByTag[spec.Tag] = len(origFeats)
			touched = append(touched, len(origFeats))
			origFeats = append(origFeats, fe)
		}
	}

	// Re-sort the feature list by tag and remap all feature indices.
	remap := sortFeatureEncs(origFeats)
	sort.SliceStable(origFeats, func(i, j int) bool { return origFeats[i].tag < origFeats[j].tag })
	touchedIdx := make([]uint16, len(touched))
	for i, t := range touched {
		touchedIdx[i] = remap[t]
	}
	remapScripts(origScripts, remap, touchedIdx)

	var scripts []byte
	if len(origScripts) == 0 {
		all := make([]uint16, len(origFeats))
		for i := range origFeats {
			all[i] = uint16(i)
		}
		scripts = encodeDefaultScriptList(all)
	} else {
		scripts, err = encodeScriptList(origScripts)
		if err != nil {
			return nil, nil, err
		}
	}
	featureList, err := encodeFeatureList(origFeats)
	if err != nil {
		return nil, nil, err
	}

	// Lay out the new lookup section. The preserved block sits at the tail;
	// extension offsets inside the wrapper lookups are patched once the
	// final positions are known.
	blob := b[lookupsOff:]
	lookupCount := len(origLookups) + len(newLookups)
	listHdr := 2 + 2*lookupCount
	blocks := make([][]byte, 0, lookupCount)
	blockOff := make([]int, 0, lookupCount) // offsets relative to lookup list start
	off := listHdr
	for _, lk := range origLookups {
		w := buildWrapperLookup(lk)
		blocks = append(blocks, w)
		blockOff = append(blockOff, off)
		off += len(w)
	}
	for _, lk := range newLookups {
		blocks = append(blocks, lk)
		blockOff = append(blockOff, off)
		off += len(lk)
	}
	blobOff := off
	for i, lk := range origLookups {
		patchWrapperLookup(blocks[i], lk, blockOff[i], blobOff)
	}

	lookupList := make([]byte, listHdr)
	putU16(lookupList, 0, uint16(lookupCount))
	for i, o := range blockOff {
		if o > 0xffff {
			return nil, nil, core.Error(core.EINVALID, "lookup list overflows offset range")
		}
		putU16(lookupList, 2+2*i, uint16(o))
	}
	for _, blk := range blocks {
		lookupList = append(lookupList, blk...)
	}
	lookupList = append(lookupList, blob...)

	data, err := assembleLayoutTable(scripts, featureList, lookupList)
	if err != nil {
		return nil, nil, err
	}
	return data, warnings, nil
}

func sortedSpecs(feats []FeatureSpec) []FeatureSpec {
	sorted := append([]FeatureSpec{}, feats...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })
	return sorted
}

// sortFeatureEncs computes the index remapping a stable sort by tag will
// produce, without modifying feats.
func sortFeatureEncs(feats []featEnc) []uint16 {
	order := make([]int, len(feats))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return feats[order[i]].tag < feats[order[j]].tag })
	remap := make([]uint16, len(feats))
	for newIdx, oldIdx := range order {
		remap[oldIdx] = uint16(newIdx)
	}
	return remap
}
