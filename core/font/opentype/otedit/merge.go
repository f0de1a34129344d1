package otedit

import (
	"fmt"
	"sort"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

const extensionLookupType = 7

// origLookup is a lookup of the pre-existing lookup section, reduced to what
// the extension wrapper needs: flag, optional mark filtering set, and the
// resolved subtable targets.
type origLookup struct {
	flag uint16
	mfs  uint16
	subs []origSubtable
}

// origSubtable points at a subtable within the preserved block. Extension
// lookups of the original table are resolved to their final targets here,
// since an extension subtable must not point at another extension subtable.
type origSubtable struct {
	ltype  uint16
	target int // relative to the preserved block
}

func errCorrupt(what string) error {
	return core.Error(core.EINVALID, "corrupt GSUB %s", what)
}

func parseOrigLookups(b []byte, lookupsOff int) ([]origLookup, error) {
	if lookupsOff+2 > len(b) {
		return nil, errCorrupt("lookup list")
	}
	count := int(rdU16(b, lookupsOff))
	if lookupsOff+2+2*count > len(b) {
		return nil, errCorrupt("lookup list")
	}
	lookups := make([]origLookup, 0, count)
	for i := 0; i < count; i++ {
		la := lookupsOff + int(rdU16(b, lookupsOff+2+2*i))
		if la+6 > len(b) {
			return nil, errCorrupt("lookup table")
		}
		ltype := rdU16(b, la)
		lk := origLookup{flag: rdU16(b, la+2)}
		scount := int(rdU16(b, la+4))
		end := la + 6 + 2*scount
		hasMfs := lk.flag&uint16(ot.LOOKUP_FLAG_USE_MARK_FILTERING_SET) != 0
		if hasMfs {
			end += 2
		}
		if end > len(b) {
			return nil, errCorrupt("lookup table")
		}
		if hasMfs {
			lk.mfs = rdU16(b, la+6+2*scount)
		}
		for j := 0; j < scount; j++ {
			sa := la + int(rdU16(b, la+6+2*j))
			sub := origSubtable{ltype: ltype, target: sa - lookupsOff}
			if ltype == extensionLookupType {
				if sa+8 > len(b) || rdU16(b, sa) != 1 {
					return nil, errCorrupt("extension subtable")
				}
				sub.ltype = rdU16(b, sa+2)
				if sub.ltype == extensionLookupType {
					return nil, errCorrupt("extension subtable")
				}
				sub.target = sa + int(rdU32(b, sa+4)) - lookupsOff
			}
			if sub.target < 0 || lookupsOff+sub.target >= len(b) {
				return nil, errCorrupt("lookup subtable offset")
			}
			lk.subs = append(lk.subs, sub)
		}
		lookups = append(lookups, lk)
	}
	return lookups, nil
}

// buildWrapperLookup writes an extension lookup standing in for an original
// lookup. It keeps the original's flag and mark filtering set. The 32-bit
// extension offsets are filled in by patchWrapperLookup once the block
// positions are fixed.
func buildWrapperLookup(lk origLookup) []byte {
	n := len(lk.subs)
	hdrlen := 6 + 2*n
	hasMfs := lk.flag&uint16(ot.LOOKUP_FLAG_USE_MARK_FILTERING_SET) != 0
	if hasMfs {
		hdrlen += 2
	}
	b := make([]byte, hdrlen+8*n)
	putU16(b, 0, extensionLookupType)
	putU16(b, 2, lk.flag)
	putU16(b, 4, uint16(n))
	for j := range lk.subs {
		putU16(b, 6+2*j, uint16(hdrlen+8*j))
	}
	if hasMfs {
		putU16(b, 6+2*n, lk.mfs)
	}
	for j, sub := range lk.subs {
		ext := hdrlen + 8*j
		putU16(b, ext, 1) // extension substFormat
		putU16(b, ext+2, sub.ltype)
	}
	return b
}

// patchWrapperLookup fills in the extension offsets of a wrapper block.
// blockOff and blobOff are relative to the lookup list start; only the
// difference enters the offsets, so any common base will do. The preserved
// block follows all lookup blocks, which keeps every offset positive.
func patchWrapperLookup(b []byte, lk origLookup, blockOff, blobOff int) {
	n := len(lk.subs)
	hdrlen := 6 + 2*n
	if lk.flag&uint16(ot.LOOKUP_FLAG_USE_MARK_FILTERING_SET) != 0 {
		hdrlen += 2
	}
	for j, sub := range lk.subs {
		ext := hdrlen + 8*j
		putU32(b, ext+4, uint32(blobOff+sub.target-(blockOff+ext)))
	}
}

// parseOrigFeatures reads the FeatureList with its FeatureParams. Params of
// the registered kinds (stylistic sets, character variants, optical size)
// are carried over verbatim. A non-null params offset on any other feature
// has no defined interpretation and is dropped with a warning.
func parseOrigFeatures(b []byte, featsOff int) ([]featEnc, []string, error) {
	if featsOff == 0 {
		return nil, nil, nil
	}
	if featsOff+2 > len(b) {
		return nil, nil, errCorrupt("feature list")
	}
	count := int(rdU16(b, featsOff))
	if featsOff+2+6*count > len(b) {
		return nil, nil, errCorrupt("feature list")
	}
	var warnings []string
	feats := make([]featEnc, 0, count)
	for i := 0; i < count; i++ {
		rec := featsOff + 2 + 6*i
		tag := ot.Tag(rdU32(b, rec))
		fa := featsOff + int(rdU16(b, rec+4))
		if fa+4 > len(b) {
			return nil, nil, errCorrupt("feature table")
		}
		fe := featEnc{tag: tag}
		paramsOff := int(rdU16(b, fa))
		lcount := int(rdU16(b, fa+2))
		if fa+4+2*lcount > len(b) {
			return nil, nil, errCorrupt("feature table")
		}
		for k := 0; k < lcount; k++ {
			fe.lookups = append(fe.lookups, rdU16(b, fa+4+2*k))
		}
		if paramsOff != 0 {
			pa := fa + paramsOff
			plen := featureParamsLen(tag, b, pa)
			if plen < 0 || pa+plen > len(b) {
				warnings = append(warnings, fmt.Sprintf("dropping unreadable FeatureParams of feature '%s'", tag))
			} else {
				fe.params = append([]byte{}, b[pa:pa+plen]...)
			}
		}
		feats = append(feats, fe)
	}
	return feats, warnings, nil
}

// featureParamsLen returns the length of a FeatureParams table, which is
// determined by the feature tag. Registered are 'size', 'ss01'…'ss20' and
// 'cv01'…'cv99'; for any other tag the format is undefined and -1 is
// returned.
func featureParamsLen(tag ot.Tag, b []byte, at int) int {
	t := [4]byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	digits := t[2] >= '0' && t[2] <= '9' && t[3] >= '0' && t[3] <= '9'
	switch {
	case t[0] == 's' && t[1] == 's' && digits:
		return 4
	case t[0] == 'c' && t[1] == 'v' && digits:
		if at+14 > len(b) {
			return -1
		}
		return 14 + 3*int(rdU16(b, at+12))
	case tag == ot.T("size"):
		return 10
	}
	return -1
}

// --- Script list ------------------------------------------------------------

type origLangSys struct {
	tag      ot.Tag // zero for the default language system
	required uint16
	features []uint16
}

type origScript struct {
	tag       ot.Tag
	defaultLS *origLangSys
	langSys   []origLangSys
}

func parseOrigScripts(b []byte, scriptsOff int) ([]origScript, error) {
	if scriptsOff == 0 {
		return nil, nil
	}
	if scriptsOff+2 > len(b) {
		return nil, errCorrupt("script list")
	}
	count := int(rdU16(b, scriptsOff))
	if scriptsOff+2+6*count > len(b) {
		return nil, errCorrupt("script list")
	}
	scripts := make([]origScript, 0, count)
	for i := 0; i < count; i++ {
		rec := scriptsOff + 2 + 6*i
		sc := origScript{tag: ot.Tag(rdU32(b, rec))}
		sa := scriptsOff + int(rdU16(b, rec+4))
		if sa+4 > len(b) {
			return nil, errCorrupt("script table")
		}
		dlsOff := int(rdU16(b, sa))
		lsCount := int(rdU16(b, sa+2))
		if sa+4+6*lsCount > len(b) {
			return nil, errCorrupt("script table")
		}
		if dlsOff != 0 {
			ls, err := parseLangSys(b, sa+dlsOff, 0)
			if err != nil {
				return nil, err
			}
			sc.defaultLS = ls
		}
		for j := 0; j < lsCount; j++ {
			lrec := sa + 4 + 6*j
			ls, err := parseLangSys(b, sa+int(rdU16(b, lrec+4)), ot.Tag(rdU32(b, lrec)))
			if err != nil {
				return nil, err
			}
			sc.langSys = append(sc.langSys, *ls)
		}
		scripts = append(scripts, sc)
	}
	return scripts, nil
}

func parseLangSys(b []byte, at int, tag ot.Tag) (*origLangSys, error) {
	if at+6 > len(b) {
		return nil, errCorrupt("language system")
	}
	ls := &origLangSys{tag: tag, required: rdU16(b, at+2)}
	count := int(rdU16(b, at+4))
	if at+6+2*count > len(b) {
		return nil, errCorrupt("language system")
	}
	for i := 0; i < count; i++ {
		ls.features = append(ls.features, rdU16(b, at+6+2*i))
	}
	return ls, nil
}

// remapScripts applies a feature index permutation to every language system
// and appends the added feature indices to each of them, making new features
// active for all scripts of the font. Indices beyond the feature list are
// left alone; the audit will report them.
func remapScripts(scripts []origScript, remap []uint16, added []uint16) {
	fix := func(ls *origLangSys) {
		for i, fi := range ls.features {
			if int(fi) < len(remap) {
				ls.features[i] = remap[fi]
			}
		}
		if ls.required != 0xffff && int(ls.required) < len(remap) {
			ls.required = remap[ls.required]
		}
		have := make(map[uint16]bool, len(ls.features))
		for _, fi := range ls.features {
			have[fi] = true
		}
		for _, fi := range added {
			if !have[fi] {
				ls.features = append(ls.features, fi)
				have[fi] = true
			}
		}
	}
	for i := range scripts {
		if scripts[i].defaultLS != nil {
			fix(scripts[i].defaultLS)
		}
		for j := range scripts[i].langSys {
			fix(&scripts[i].langSys[j])
		}
	}
}

// encodeScriptList writes a ScriptList from parsed script entries. Script
// records and language-system records are sorted by tag as the format
// requires.
func encodeScriptList(scripts []origScript) ([]byte, error) {
	sort.SliceStable(scripts, func(i, j int) bool { return scripts[i].tag < scripts[j].tag })
	n := len(scripts)
	b := make([]byte, 2+6*n)
	putU16(b, 0, uint16(n))
	for i := range scripts {
		if len(b) > 0xffff {
			return nil, core.Error(core.EINVALID, "script list overflows offset range")
		}
		putTag(b, 2+6*i, scripts[i].tag)
		putU16(b, 2+6*i+4, uint16(len(b)))
		b = append(b, encodeScript(&scripts[i])...)
	}
	return b, nil
}

func encodeScript(sc *origScript) []byte {
	sort.SliceStable(sc.langSys, func(i, j int) bool { return sc.langSys[i].tag < sc.langSys[j].tag })
	hdrlen := 4 + 6*len(sc.langSys)
	b := make([]byte, hdrlen)
	putU16(b, 2, uint16(len(sc.langSys)))
	if sc.defaultLS != nil {
		putU16(b, 0, uint16(len(b)))
		b = append(b, encodeLangSys(sc.defaultLS.required, sc.defaultLS.features)...)
	}
	for j := range sc.langSys {
		ls := &sc.langSys[j]
		putTag(b, 4+6*j, ls.tag)
		putU16(b, 4+6*j+4, uint16(len(b)))
		b = append(b, encodeLangSys(ls.required, ls.features)...)
	}
	return b
}
