package feature

import (
	"fmt"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/otfeat/core/font/opentype/otlayout"
	"github.com/npillmayer/otfeat/core/font/opentype/otquery"
)

// ExistingFeature is one entry of a font's GSUB feature list, with its
// substitution rules decoded as far as the generator understands them:
// single substitutions (lookup type 1) and ligatures (type 4). Lookups of
// other types are counted but left undecoded; Opaque marks features that
// carry such lookups.
type ExistingFeature struct {
	Tag       string
	Record    int // position in the font's feature list
	Index     int // stylistic set index, 0 otherwise
	Lookups   []int
	Params    ParamsState
	NameID    uint16
	Label     string
	Opaque    bool
	Singles   []otedit.SingleSubst
	Ligatures []otedit.LigatureSubst
}

// Extraction is the decoded feature inventory of a font, together with the
// structural findings met along the way.
type Extraction struct {
	Features []ExistingFeature
	Findings []AuditFinding
}

// Feature returns the first extracted feature with the given tag, or nil.
func (ex *Extraction) Feature(tag string) *ExistingFeature {
	for i := range ex.Features {
		if ex.Features[i].Tag == tag {
			return &ex.Features[i]
		}
	}
	return nil
}

// HasRule tells whether any extracted feature of the given tag already
// substitutes the given input glyph sequence.
func (ex *Extraction) HasRule(tag string, input []ot.GlyphIndex) bool {
	var ok bool
	if len(input) == 1 {
		_, ok = ex.singleTarget(tag, input[0])
	} else {
		_, ok = ex.ligatureTarget(tag, input)
	}
	return ok
}

// singleTarget returns the glyph the feature already substitutes for from,
// over all records carrying the tag.
func (ex *Extraction) singleTarget(tag string, from ot.GlyphIndex) (ot.GlyphIndex, bool) {
	for i := range ex.Features {
		f := &ex.Features[i]
		if f.Tag != tag {
			continue
		}
		for _, s := range f.Singles {
			if s.From == from {
				return s.To, true
			}
		}
	}
	return 0, false
}

// ligatureTarget returns the ligature glyph the feature already produces
// for the component sequence.
func (ex *Extraction) ligatureTarget(tag string, comps []ot.GlyphIndex) (ot.GlyphIndex, bool) {
	for i := range ex.Features {
		f := &ex.Features[i]
		if f.Tag != tag {
			continue
		}
		for _, l := range f.Ligatures {
			if glyphsEqual(l.Components, comps) {
				return l.Ligature, true
			}
		}
	}
	return 0, false
}

func glyphsEqual(a, b []ot.GlyphIndex) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Extract reads the existing GSUB features of a font. It is deliberately
// tolerant: corrupt or unexpected structures produce findings and are
// skipped, extraction itself never fails. A font without a GSUB table
// yields an empty extraction.
func Extract(otf *ot.Font) *Extraction {
	ex := &Extraction{}
	recs := otlayout.GSubFeatureRecords(otf)
	if len(recs) == 0 {
		return ex
	}
	gsub := otf.Layout.GSub
	numGlyphs := otquery.NumGlyphs(otf)
	if numGlyphs == 0 {
		numGlyphs = 0x10000
	}
	name := nameTable(otf)
	for _, rec := range recs {
		f := ExistingFeature{
			Tag:    rec.Tag().String(),
			Record: rec.Index,
		}
		if n, isSS := otlayout.ParseStylisticSetTag(rec.Tag()); isSS {
			f.Index = n
			f.Params, f.NameID = paramsState(rec)
			if f.NameID != 0 && name != nil {
				f.Label = name.Get(f.NameID)
			}
		}
		for i := 0; i < rec.LookupCount(); i++ {
			li := rec.LookupIndex(i)
			if li < 0 || li >= gsub.LookupList.Len() {
				ex.finding(StructuralAnomaly, f.Tag,
					"feature references lookup %d outside the lookup list", li)
				continue
			}
			f.Lookups = append(f.Lookups, li)
			ex.walkLookup(gsub, numGlyphs, &f, li)
		}
		ex.Features = append(ex.Features, f)
	}
	tracer().Debugf("extracted %d feature records, %d findings", len(ex.Features), len(ex.Findings))
	return ex
}

func (ex *Extraction) finding(kind FindingKind, tag string, format string, args ...interface{}) {
	f := AuditFinding{Kind: kind, Tag: tag, Message: fmt.Sprintf(format, args...)}
	tracer().Infof(f.String())
	ex.Findings = append(ex.Findings, f)
}

// paramsState classifies the FeatureParams block of a stylistic set
// feature. A valid block has version 0 and references a name record.
func paramsState(f otlayout.Feature) (ParamsState, uint16) {
	params, present := otlayout.FeatureParams(f)
	if !present {
		return ParamsAbsent, 0
	}
	if params.Size() < 4 || params.U16(0) != 0 {
		return ParamsInvalid, 0
	}
	return ParamsValid, params.U16(2)
}

// walkLookup decodes the substitution rules of one lookup into f.
func (ex *Extraction) walkLookup(gsub *ot.GSubTable, numGlyphs int, f *ExistingFeature, li int) {
	lkp := gsub.LookupList.Navigate(li)
	if lkp.Type == 0 {
		ex.finding(StructuralAnomaly, f.Tag, "lookup %d is unreadable", li)
		return
	}
	for s := 0; s < int(lkp.SubTableCount); s++ {
		sub := lkp.Subtable(s)
		if sub == nil || sub.LookupType == 0 {
			ex.finding(StructuralAnomaly, f.Tag, "lookup %d: subtable %d is unreadable", li, s)
			continue
		}
		switch sub.LookupType {
		case ot.GSubLookupTypeSingle:
			ex.readSingles(sub, numGlyphs, f, li, s)
		case ot.GSubLookupTypeLigature:
			ex.readLigatures(sub, numGlyphs, f, li, s)
		default:
			tracer().Debugf("feature %s: lookup %d subtable of type %d left undecoded",
				f.Tag, li, sub.LookupType)
			f.Opaque = true
		}
	}
}

// covered enumerates a coverage table as (coverage index, glyph) pairs by
// probing every glyph of the font.
func covered(sub *ot.LookupSubtable, numGlyphs int, visit func(inx int, gid ot.GlyphIndex)) bool {
	if sub.Coverage.GlyphRange == nil {
		return false
	}
	for g := 0; g < numGlyphs; g++ {
		if inx, ok := sub.Coverage.GlyphRange.Match(ot.GlyphIndex(g)); ok {
			visit(inx, ot.GlyphIndex(g))
		}
	}
	return true
}

func (ex *Extraction) readSingles(sub *ot.LookupSubtable, numGlyphs int, f *ExistingFeature, li, s int) {
	switch sub.Format {
	case 1:
		delta, ok := sub.Support.(int16)
		if !ok {
			ex.finding(StructuralAnomaly, f.Tag, "lookup %d: single substitution without delta", li)
			return
		}
		if !covered(sub, numGlyphs, func(inx int, gid ot.GlyphIndex) {
			f.Singles = append(f.Singles, otedit.SingleSubst{From: gid, To: gid + ot.GlyphIndex(delta)})
		}) {
			ex.finding(StructuralAnomaly, f.Tag, "lookup %d: subtable %d has no coverage", li, s)
		}
	case 2:
		if !covered(sub, numGlyphs, func(inx int, gid ot.GlyphIndex) {
			loc, err := sub.Index.Get(inx, false)
			if err != nil || loc.Size() < 2 {
				return // substitute glyph 0 or out of range, no rule
			}
			f.Singles = append(f.Singles, otedit.SingleSubst{From: gid, To: ot.GlyphIndex(loc.U16(0))})
		}) {
			ex.finding(StructuralAnomaly, f.Tag, "lookup %d: subtable %d has no coverage", li, s)
		}
	default:
		ex.finding(StructuralAnomaly, f.Tag, "lookup %d: single substitution format %d", li, sub.Format)
	}
}

// readLigatures walks the ligature sets of a type 4 subtable. The coverage
// table indexes the sets by first component; each set lists the ligatures
// sharing that first glyph.
func (ex *Extraction) readLigatures(sub *ot.LookupSubtable, numGlyphs int, f *ExistingFeature, li, s int) {
	if sub.Format != 1 {
		ex.finding(StructuralAnomaly, f.Tag, "lookup %d: ligature substitution format %d", li, sub.Format)
		return
	}
	ok := covered(sub, numGlyphs, func(inx int, first ot.GlyphIndex) {
		set, err := sub.Index.Get(inx, false)
		if err != nil || set.Size() < 2 {
			ex.finding(StructuralAnomaly, f.Tag, "lookup %d: ligature set %d unreadable", li, inx)
			return
		}
		ligCount := int(set.U16(0))
		if set.Size() < 2+ligCount*2 {
			ex.finding(StructuralAnomaly, f.Tag, "lookup %d: ligature set %d truncated", li, inx)
			return
		}
		for i := 0; i < ligCount; i++ {
			ligpos := int(set.U16(2 + i*2))
			if set.Size() < ligpos+4 {
				ex.finding(StructuralAnomaly, f.Tag, "lookup %d: ligature record outside its set", li)
				continue
			}
			ligGlyph := ot.GlyphIndex(set.U16(ligpos))
			compCount := int(set.U16(ligpos + 2))
			if compCount < 1 || set.Size() < ligpos+4+(compCount-1)*2 {
				ex.finding(StructuralAnomaly, f.Tag, "lookup %d: ligature with %d components truncated", li, compCount)
				continue
			}
			comps := make([]ot.GlyphIndex, 0, compCount)
			comps = append(comps, first)
			comps = append(comps, set.Slice(ligpos+4, ligpos+4+(compCount-1)*2).Glyphs()...)
			f.Ligatures = append(f.Ligatures, otedit.LigatureSubst{Components: comps, Ligature: ligGlyph})
		}
	})
	if !ok {
		ex.finding(StructuralAnomaly, f.Tag, "lookup %d: subtable %d has no coverage", li, s)
	}
}

func nameTable(otf *ot.Font) *ot.NameTable {
	if t := otf.Table(ot.T("name")); t != nil {
		return t.Self().AsName()
	}
	return nil
}
