package otwrap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/otfeat/core/font/opentype/otlayout"
	"github.com/npillmayer/otfeat/core/font/opentype/otquery"
	"github.com/npillmayer/otfeat/feature"
)

// Prefs control the optional parts of a wrapping plan. The zero value plans
// conservatively: missing tables are scaffolded, kerning pairs are migrated,
// nothing is enriched and nothing is dropped.
type Prefs struct {
	Enrich   bool // write a GDEF table with glyph classes and ligature carets
	DropKern bool // drop the legacy kern table once GPOS covers its pairs
}

// Plan is the result of inspecting a font: which tables are missing, what
// the wrapper can scaffold from the font's own data, and what it will not
// touch. Warnings collect the conditions that keep the wrapper from acting.
//
// A plan is bound to the font it was created from; executing it against a
// different font is not meaningful.
type Plan struct {
	NeedsCMap bool // character map maps no code points
	NeedsGDef bool // no GDEF table
	NeedsGSub bool // no GSUB table
	NeedsGPos bool // no GPOS table
	NeedsDSig bool // font carries a digital signature, void after any rewrite

	CanRebuildCMap bool // glyph names encode code points for a new character map
	RemapCount     int
	CanInferLiga   bool // glyph names yield ligature rules for a new GSUB
	LigatureCount  int
	CanMigrateKern bool // kern pairs can move into a new GPOS
	KernPairCount  int
	CanEnrichGDef  bool // glyph classes and carets for a new GDEF
	MarkCount      int
	LigCaretCount  int

	Warnings []string

	remap     map[rune]ot.GlyphIndex
	ligatures []otedit.FeatureSpec
	kernPairs []otedit.KernPair
	classes   map[ot.GlyphIndex]uint16
	carets    map[ot.GlyphIndex][]int16
	dropKern  bool
}

// HasWork is true when executing the plan would change the font.
func (p *Plan) HasWork() bool {
	if p == nil {
		return false
	}
	return p.CanRebuildCMap || p.CanInferLiga || p.CanMigrateKern || p.CanEnrichGDef || p.dropKern
}

// Summary describes the planned actions, one line per action.
func (p *Plan) Summary() []string {
	if !p.HasWork() {
		return []string{"nothing to do"}
	}
	var lines []string
	if p.CanRebuildCMap {
		lines = append(lines, fmt.Sprintf("rebuild the character map from glyph names, %d code points", p.RemapCount))
	}
	if p.CanInferLiga {
		lines = append(lines, fmt.Sprintf("scaffold a GSUB table with %d ligature rules inferred from glyph names", p.LigatureCount))
	}
	if p.CanMigrateKern {
		lines = append(lines, fmt.Sprintf("migrate %d kerning pairs from the kern table into a new GPOS table", p.KernPairCount))
	}
	if p.CanEnrichGDef {
		lines = append(lines, fmt.Sprintf("write a GDEF table: %d glyph classes, %d of them marks, %d ligature carets",
			len(p.classes), p.MarkCount, p.LigCaretCount))
	}
	if p.dropKern {
		lines = append(lines, "drop the legacy kern table")
	}
	return lines
}

func (p *Plan) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	tracer().Infof(msg)
	p.Warnings = append(p.Warnings, msg)
}

// CreatePlan inspects a font and plans the wrapping steps which the font's
// own data supports. Planning never modifies the font; hand the plan to
// Execute for that.
func CreatePlan(otf *ot.Font, prefs Prefs) (*Plan, error) {
	if otf == nil {
		return nil, core.Error(core.EINVALID, "no font to inspect")
	}
	plan := &Plan{}
	plan.NeedsGSub = otf.Table(ot.T("GSUB")) == nil
	plan.NeedsGPos = otf.Table(ot.T("GPOS")) == nil
	plan.NeedsGDef = otf.Table(ot.T("GDEF")) == nil
	if otf.Table(ot.T("DSIG")) != nil {
		plan.NeedsDSig = true
		plan.warn("font carries a digital signature; a rewrite voids it and drops the DSIG table")
	}
	mapped := 0
	if otf.CMap != nil && otf.CMap.GlyphIndexMap != nil {
		otf.CMap.GlyphIndexMap.Each(func(rune, ot.GlyphIndex) { mapped++ })
	}
	plan.NeedsCMap = mapped == 0

	cfg := feature.DefaultConfig()
	inv, err := feature.NewInventory(otf)
	if err != nil {
		tracer().Infof("%v", err)
		inv = nil
	}
	var fset *feature.FeatureSet
	if inv != nil {
		var warns []string
		fset, warns = feature.Build(inv, cfg)
		plan.Warnings = append(plan.Warnings, warns...)
	}
	planCMap(plan, inv)
	planGSub(plan, fset)
	planKern(plan, otf, prefs)
	planGDef(plan, otf, inv, cfg, fset, prefs)
	return plan, nil
}

// planCMap checks whether glyph names encode enough code points to rebuild
// a character map that maps nothing.
func planCMap(plan *Plan, inv *feature.Inventory) {
	if !plan.NeedsCMap {
		return
	}
	if inv == nil {
		plan.warn("character map maps no code points, and the font has no glyph names to rebuild it from")
		return
	}
	remap := make(map[rune]ot.GlyphIndex)
	for gid, name := range inv.Names() {
		if gid == 0 {
			continue
		}
		r, ok := nameCodePoint(name)
		if !ok {
			continue
		}
		if r >= 0xffff { // outside what a format-4 subtable can express
			tracer().Debugf("glyph %q outside the BMP, not remapped", name)
			continue
		}
		if _, taken := remap[r]; taken {
			continue
		}
		remap[r] = ot.GlyphIndex(gid)
	}
	if len(remap) == 0 {
		plan.warn("character map maps no code points, and glyph names encode none to rebuild it from")
		return
	}
	plan.CanRebuildCMap = true
	plan.RemapCount = len(remap)
	plan.remap = remap
}

// nameCodePoint extracts a code point from a production glyph name of the
// form "uniXXXX" or "uXXXX(XX)". A single ASCII letter or digit names the
// character itself.
func nameCodePoint(name string) (rune, bool) {
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if cp, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(cp), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if cp, err := strconv.ParseUint(name[1:], 16, 32); err == nil && cp <= 0x10ffff {
			return rune(cp), true
		}
	}
	if len(name) == 1 {
		if c := name[0]; c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			return rune(c), true
		}
	}
	return 0, false
}

// planGSub collects ligature rules for a GSUB scaffold. Scaffolding covers
// the basic ligature features only; suffix families and stylistic sets are
// the business of feature generation.
func planGSub(plan *Plan, fset *feature.FeatureSet) {
	if !plan.NeedsGSub {
		return
	}
	if fset == nil {
		plan.warn("font has no GSUB table, and no glyph names to infer one from")
		return
	}
	for _, tag := range []string{"liga", "dlig"} {
		spec := otedit.FeatureSpec{Tag: ot.T(tag)}
		for _, g := range fset.Groups(tag) {
			for _, rule := range g.Ligatures {
				spec.Ligatures = append(spec.Ligatures, otedit.LigatureSubst{
					Components: rule.Components,
					Ligature:   rule.Ligature,
				})
			}
		}
		if len(spec.Ligatures) > 0 {
			plan.ligatures = append(plan.ligatures, spec)
			plan.LigatureCount += len(spec.Ligatures)
		}
	}
	if plan.LigatureCount == 0 {
		if plan.CanRebuildCMap {
			plan.warn("ligature inference needs a usable character map; rerun after the rebuilt one is written")
		} else {
			plan.warn("font has no GSUB table, and glyph names yield no ligature rules to scaffold one")
		}
		return
	}
	plan.CanInferLiga = true
}

// planKern decides what happens to a legacy kern table. Pairs are migrated
// into a new GPOS table, never merged into an existing one. The table is
// dropped only on request, and only when its pairs live on in GPOS.
func planKern(plan *Plan, otf *ot.Font, prefs Prefs) {
	kt := otf.Table(ot.T("kern"))
	if kt == nil {
		if prefs.DropKern {
			plan.warn("font has no kern table to drop")
		}
		return
	}
	pairs := otedit.ReadKernPairs(kt.Self().AsKern())
	plan.KernPairCount = len(pairs)
	gposKern := hasKernFeature(otf)
	switch {
	case len(pairs) == 0:
		plan.warn("kern table carries no plain horizontal kerning pairs; nothing to migrate")
	case plan.NeedsGPos:
		plan.CanMigrateKern = true
		plan.kernPairs = pairs
	case gposKern:
		plan.warn("font already positions kerning through a GPOS 'kern' feature; the legacy kern table is redundant")
	default:
		plan.warn("font has a GPOS table without a 'kern' feature; pairs of the legacy kern table are not merged into it")
	}
	if prefs.DropKern {
		if plan.CanMigrateKern || gposKern {
			plan.dropKern = true
		} else {
			plan.warn("dropping the kern table would lose its kerning data; keeping it")
		}
	}
}

func hasKernFeature(otf *ot.Font) bool {
	if otf.Layout.GPos == nil {
		return false
	}
	for _, rec := range otlayout.FeatureRecords(&otf.Layout.GPos.LayoutTable, otlayout.GPosFeatureType) {
		if rec.Tag() == ot.T("kern") {
			return true
		}
	}
	return false
}

// planGDef classifies the glyph set for a GDEF scaffold: glyphs reachable
// through the character map are base glyphs, targets of inferred ligature
// rules are ligatures, marks are found by name and code point. Ligature
// glyphs additionally get caret positions.
func planGDef(plan *Plan, otf *ot.Font, inv *feature.Inventory, cfg *feature.Config, fset *feature.FeatureSet, prefs Prefs) {
	if !plan.NeedsGDef {
		if prefs.Enrich {
			plan.warn("font already carries a GDEF table; enrichment does not replace it")
		}
		return
	}
	if !prefs.Enrich {
		plan.warn("font has no GDEF table; rerun with enrichment enabled to scaffold one")
		return
	}
	if inv == nil {
		plan.warn("font has no GDEF table, and no glyph names to build one from")
		return
	}
	classes := make(map[ot.GlyphIndex]uint16)
	for gid := 1; gid < inv.NumGlyphs(); gid++ {
		if inv.Mapped(ot.GlyphIndex(gid)) {
			classes[ot.GlyphIndex(gid)] = otedit.GlyphClassBase
		}
	}
	carets := make(map[ot.GlyphIndex][]int16)
	for _, tag := range fset.Tags() {
		for _, g := range fset.Groups(tag) {
			for _, rule := range g.Ligatures {
				classes[rule.Ligature] = otedit.GlyphClassLigature
				if _, ok := carets[rule.Ligature]; ok {
					continue
				}
				if pos := ligCarets(otf, rule.Ligature, len(rule.Components)); len(pos) > 0 {
					carets[rule.Ligature] = pos
				}
			}
		}
	}
	marks := feature.Marks(inv, cfg)
	for gid := range marks {
		classes[gid] = otedit.GlyphClassMark
	}
	plan.MarkCount = len(marks)
	for _, pos := range carets {
		plan.LigCaretCount += len(pos)
	}
	if len(classes) == 0 {
		plan.warn("glyph names and character map give no glyph classification; no GDEF scaffolded")
		return
	}
	plan.CanEnrichGDef = true
	plan.classes = classes
	plan.carets = carets
}

// ligCarets spaces compCount-1 caret positions evenly across the advance
// width of a ligature glyph. True caret positions sit at the component
// joints, which only outline analysis could find; even spacing is the
// conventional approximation.
func ligCarets(otf *ot.Font, gid ot.GlyphIndex, compCount int) []int16 {
	if compCount < 2 {
		return nil
	}
	adv := int(otquery.GlyphMetrics(otf, gid).Advance)
	if adv <= 0 {
		return nil
	}
	pos := make([]int16, 0, compCount-1)
	for i := 1; i < compCount; i++ {
		x := i * adv / compCount
		if x > 0x7fff {
			x = 0x7fff
		}
		pos = append(pos, int16(x))
	}
	return pos
}
