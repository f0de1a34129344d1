package otedit

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otlayout"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// Glyph inventory of the scaffold font used throughout these tests:
//
//	0 .notdef   1 f   2 i   3 l   4 f_i   5 f_l
//	6 A         7 A.ss01    8 V   9 T     10 f_i_l
func testFontSpec() FontSpec {
	return FontSpec{
		FamilyName: "Otedit Test",
		Glyphs: []string{
			".notdef", "f", "i", "l", "f_i", "f_l", "A", "A.ss01", "V", "T", "f_i_l",
		},
		CMap: map[rune]ot.GlyphIndex{
			'f': 1, 'i': 2, 'l': 3, 'A': 6, 'V': 8, 'T': 9,
		},
	}
}

func buildAndParse(t *testing.T, spec FontSpec) *ot.Font {
	t.Helper()
	data, err := BuildFont(spec)
	if err != nil {
		t.Fatalf("cannot build scaffold font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot parse scaffold font: %v", err)
	}
	return otf
}

// --- Scaffold fonts --------------------------------------------------------

func TestBuildFontParses(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	otf := buildAndParse(t, testFontSpec())
	maxp := otf.Table(ot.T("maxp")).Self().AsMaxP()
	if maxp.NumGlyphs != 11 {
		t.Errorf("expected scaffold font to have 11 glyphs, maxp says %d", maxp.NumGlyphs)
	}
	if gid := otf.CMap.GlyphIndexMap.Lookup('A'); gid != 6 {
		t.Errorf("expected cmap to map 'A' to glyph 6, got %d", gid)
	}
	if gid := otf.CMap.GlyphIndexMap.Lookup('x'); gid != 0 {
		t.Errorf("expected unmapped 'x' to yield glyph 0, got %d", gid)
	}
	if r := otf.CMap.GlyphIndexMap.ReverseLookup(8); r != 'V' {
		t.Errorf("expected glyph 8 to map back to 'V', got %#U", r)
	}
	head := otf.Table(ot.T("head")).Self().AsHead()
	if head.UnitsPerEm != 1000 {
		t.Errorf("expected 1000 units per em, got %d", head.UnitsPerEm)
	}
}

func TestBuildFontGlyphNames(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	otf := buildAndParse(t, testFontSpec())
	post := otf.Table(ot.T("post")).Self().AsPost()
	if post == nil {
		t.Fatalf("scaffold font has no post table")
	}
	if name := post.GlyphName(4); name != "f_i" {
		t.Errorf("expected glyph 4 to be named 'f_i', got %q", name)
	}
	if gid, ok := post.GlyphIndexOf("A.ss01"); !ok || gid != 7 {
		t.Errorf("expected glyph 'A.ss01' at index 7, got %d/%v", gid, ok)
	}
	if _, ok := post.GlyphIndexOf("A.ss02"); ok {
		t.Errorf("glyph 'A.ss02' should not exist in the scaffold font")
	}
}

func TestBuildFontNameEntries(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	otf := buildAndParse(t, testFontSpec())
	name := otf.Table(ot.T("name")).Self().AsName()
	if fam := name.Get(1); fam != "Otedit Test" {
		t.Errorf("expected family name 'Otedit Test', got %q", fam)
	}
	if sub := name.Get(2); sub != "Regular" {
		t.Errorf("expected subfamily 'Regular', got %q", sub)
	}
	if ps := name.Get(6); ps != "OteditTest-Regular" {
		t.Errorf("expected PostScript name 'OteditTest-Regular', got %q", ps)
	}
}

func TestBuildFontRejectsEmptyScaffold(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	if _, err := BuildFont(FontSpec{}); err == nil {
		t.Errorf("expected an error for a scaffold without glyphs")
	} else if core.Code(err) != core.EINVALID {
		t.Errorf("expected error code EINVALID, got %d", core.Code(err))
	}
}

func TestAssembleCMapSkipsNonBMP(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	spec := testFontSpec()
	spec.CMap[0x1F600] = 5 // outside the BMP, format 4 cannot carry it
	otf := buildAndParse(t, spec)
	if gid := otf.CMap.GlyphIndexMap.Lookup(0x1F600); gid != 0 {
		t.Errorf("expected non-BMP code point to stay unmapped, got glyph %d", gid)
	}
	if gid := otf.CMap.GlyphIndexMap.Lookup('f'); gid != 1 {
		t.Errorf("expected 'f' to map to glyph 1, got %d", gid)
	}
}

// --- Name table editing ----------------------------------------------------

func TestNameEditLabels(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	name := EditName(nil)
	if name.Modified() {
		t.Errorf("fresh name edit should not be modified")
	}
	if _, ok := name.FindLabel("Fancy Swashes"); ok {
		t.Errorf("empty name table should not contain a label")
	}
	id, err := name.NextFreeNameID()
	if err != nil {
		t.Fatalf("NextFreeNameID failed: %v", err)
	}
	if id != 256 {
		t.Errorf("expected first free name ID to be 256, got %d", id)
	}
	name.SetName(id, "Fancy Swashes")
	if !name.Modified() {
		t.Errorf("name edit should be modified after SetName")
	}
	if got, ok := name.FindLabel("Fancy Swashes"); !ok || got != id {
		t.Errorf("expected to find label at ID %d, got %d/%v", id, got, ok)
	}
	if id2, _ := name.NextFreeNameID(); id2 != 257 {
		t.Errorf("expected next free name ID to be 257, got %d", id2)
	}
}

func TestNameEditOnParsedFont(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	otf := buildAndParse(t, testFontSpec())
	name := EditName(otf.Table(ot.T("name")).Self().AsName())
	id, err := name.NextFreeNameID()
	if err != nil {
		t.Fatalf("NextFreeNameID failed: %v", err)
	}
	name.SetName(id, "Discretionary Ligatures")
	nb, err := name.Encode()
	if err != nil {
		t.Fatalf("cannot encode edited name table: %v", err)
	}
	out, err := Serialize(otf, map[ot.Tag][]byte{ot.T("name"): nb})
	if err != nil {
		t.Fatalf("cannot serialize font with edited name table: %v", err)
	}
	otf2, err := ot.Parse(out)
	if err != nil {
		t.Fatalf("cannot parse serialized font: %v", err)
	}
	name2 := otf2.Table(ot.T("name")).Self().AsName()
	if label := name2.Get(id); label != "Discretionary Ligatures" {
		t.Errorf("expected label %q at name ID %d, got %q", "Discretionary Ligatures", id, label)
	}
	if fam := name2.Get(1); fam != "Otedit Test" {
		t.Errorf("family name not preserved, got %q", fam)
	}
}

// --- GSUB assembly ---------------------------------------------------------

func TestAssembleGSubSingleSubstitutions(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	gsub, err := AssembleGSub([]FeatureSpec{{
		Tag:          ot.T("ss01"),
		ParamsNameID: 256,
		Singles:      []SingleSubst{{From: 6, To: 7}},
	}})
	if err != nil {
		t.Fatalf("cannot assemble GSUB: %v", err)
	}
	spec := testFontSpec()
	spec.GSub = gsub
	otf := buildAndParse(t, spec)
	if otf.Layout.GSub == nil {
		t.Fatalf("font has no GSUB table after assembly")
	}
	recs := otlayout.GSubFeatureRecords(otf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 feature record, got %d", len(recs))
	}
	if recs[0].Tag() != ot.T("ss01") {
		t.Errorf("expected feature 'ss01', got '%s'", recs[0].Tag())
	}
	version, nameID, ok := otlayout.StylisticSetParams(recs[0])
	if !ok {
		t.Fatalf("feature 'ss01' should carry feature parameters")
	}
	if version != 0 || nameID != 256 {
		t.Errorf("expected params version 0 and name ID 256, got %d/%d", version, nameID)
	}
	buf := []ot.GlyphIndex{6, 9}
	pos, applied, buf := otlayout.ApplyFeature(otf, recs[0], buf, 0, 0)
	if !applied || pos != 1 {
		t.Fatalf("expected substitution at position 0, applied=%v pos=%d", applied, pos)
	}
	if buf[0] != 7 || buf[1] != 9 {
		t.Errorf("expected buffer [7 9], got %v", buf)
	}
	buf = []ot.GlyphIndex{9}
	pos, applied, _ = otlayout.ApplyFeature(otf, recs[0], buf, 0, 0)
	if applied || pos != 0 {
		t.Errorf("glyph 9 is not covered, expected no substitution")
	}
}

func TestAssembleGSubLigatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	gsub, err := AssembleGSub([]FeatureSpec{{
		Tag: ot.T("liga"),
		Ligatures: []LigatureSubst{
			{Components: []ot.GlyphIndex{1, 2}, Ligature: 4},
			{Components: []ot.GlyphIndex{1, 3}, Ligature: 5},
			{Components: []ot.GlyphIndex{1, 2, 3}, Ligature: 10},
		},
	}})
	if err != nil {
		t.Fatalf("cannot assemble GSUB: %v", err)
	}
	spec := testFontSpec()
	spec.GSub = gsub
	otf := buildAndParse(t, spec)
	recs := otlayout.GSubFeatureRecords(otf)
	if len(recs) != 1 {
		t.Fatalf("expected 1 feature record, got %d", len(recs))
	}
	liga := recs[0]
	if _, _, ok := otlayout.StylisticSetParams(liga); ok {
		t.Errorf("'liga' should not carry stylistic-set parameters")
	}

	buf := []ot.GlyphIndex{1, 2, 3} // f i l, the longest match must win
	pos, applied, buf := otlayout.ApplyFeature(otf, liga, buf, 0, 0)
	if !applied || pos != 1 {
		t.Fatalf("expected ligature at position 0, applied=%v pos=%d", applied, pos)
	}
	if len(buf) != 1 || buf[0] != 10 {
		t.Errorf("expected buffer [10] = f_i_l, got %v", buf)
	}

	buf = []ot.GlyphIndex{1, 2, 9} // f i T
	_, applied, buf = otlayout.ApplyFeature(otf, liga, buf, 0, 0)
	if !applied || len(buf) != 2 || buf[0] != 4 || buf[1] != 9 {
		t.Errorf("expected buffer [4 9] = f_i T, got %v (applied=%v)", buf, applied)
	}

	buf = []ot.GlyphIndex{2, 1} // i f, no ligature starts with i
	_, applied, _ = otlayout.ApplyFeature(otf, liga, buf, 0, 0)
	if applied {
		t.Errorf("no ligature should apply to buffer [2 1]")
	}
}

func TestAssembleGSubFeatureLookupViaFontFeatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	gsub, err := AssembleGSub([]FeatureSpec{{
		Tag:     ot.T("liga"),
		Singles: []SingleSubst{{From: 1, To: 1}}, // coverage only, keeps the lookup non-empty
	}})
	if err != nil {
		t.Fatalf("cannot assemble GSUB: %v", err)
	}
	spec := testFontSpec()
	spec.GSub = gsub
	otf := buildAndParse(t, spec)
	for _, script := range []ot.Tag{0, ot.T("DFLT"), ot.T("latn")} {
		gsubFeats, gposFeats, err := otlayout.FontFeatures(otf, script, 0)
		if err != nil {
			t.Fatalf("FontFeatures failed for script %v: %v", script, err)
		}
		if len(gposFeats) != 0 {
			t.Errorf("font has no GPOS table, got %d GPOS features", len(gposFeats))
		}
		if len(gsubFeats) != 1 || gsubFeats[0].Tag() != ot.T("liga") {
			t.Errorf("expected feature 'liga' for script %v, got %v", script, gsubFeats)
		}
	}
}

func TestAssembleGSubRejectsBadInput(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	_, err := AssembleGSub([]FeatureSpec{{
		Tag:     ot.T("ss01"),
		Singles: []SingleSubst{{From: 6, To: 7}, {From: 6, To: 8}},
	}})
	if err == nil || core.Code(err) != core.EINVALID {
		t.Errorf("conflicting substitutions should be rejected with EINVALID, got %v", err)
	}
	_, err = AssembleGSub([]FeatureSpec{
		{Tag: ot.T("liga"), Singles: []SingleSubst{{From: 1, To: 4}}},
		{Tag: ot.T("liga"), Singles: []SingleSubst{{From: 1, To: 5}}},
	})
	if err == nil || core.Code(err) != core.EINVALID {
		t.Errorf("duplicate feature tags should be rejected with EINVALID, got %v", err)
	}
	_, err = AssembleGSub([]FeatureSpec{{
		Tag:       ot.T("liga"),
		Ligatures: []LigatureSubst{{Components: []ot.GlyphIndex{1}, Ligature: 4}},
	}})
	if err == nil || core.Code(err) != core.EINVALID {
		t.Errorf("single-component ligatures should be rejected with EINVALID, got %v", err)
	}
}

// --- GSUB merging ----------------------------------------------------------

func TestMergeGSubPreservesOriginalLookups(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	orig, err := AssembleGSub([]FeatureSpec{{
		Tag: ot.T("liga"),
		Ligatures: []LigatureSubst{
			{Components: []ot.GlyphIndex{1, 2}, Ligature: 4},
			{Components: []ot.GlyphIndex{1, 3}, Ligature: 5},
		},
	}})
	if err != nil {
		t.Fatalf("cannot assemble original GSUB: %v", err)
	}
	spec := testFontSpec()
	spec.GSub = orig
	otf := buildAndParse(t, spec)

	merged, warnings, err := MergeGSub(otf.Layout.GSub, []FeatureSpec{{
		Tag:          ot.T("ss01"),
		ParamsNameID: 256,
		Singles:      []SingleSubst{{From: 6, To: 7}},
	}})
	if err != nil {
		t.Fatalf("cannot merge GSUB: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no merge warnings, got %v", warnings)
	}
	spec2 := testFontSpec()
	spec2.GSub = merged
	otf2 := buildAndParse(t, spec2)

	recs := otlayout.GSubFeatureRecords(otf2)
	if len(recs) != 2 {
		t.Fatalf("expected 2 feature records after merge, got %d", len(recs))
	}
	if recs[0].Tag() != ot.T("liga") || recs[1].Tag() != ot.T("ss01") {
		t.Fatalf("expected tag-sorted features liga, ss01; got '%s', '%s'",
			recs[0].Tag(), recs[1].Tag())
	}

	// The original lookup is now wrapped in an extension lookup, at an
	// unchanged index. Application must still work through the wrapper.
	lookup := otf2.Layout.GSub.LookupList.Navigate(0)
	if lookup.Type != ot.GSubLookupTypeExtensionSubs {
		t.Errorf("expected lookup 0 to be an extension lookup, got type %d", lookup.Type)
	}
	sub := lookup.Subtable(0)
	if sub == nil || sub.LookupType != ot.GSubLookupTypeLigature {
		t.Errorf("extension subtable should resolve to a ligature lookup, got %v", sub)
	}
	buf := []ot.GlyphIndex{1, 2}
	_, applied, buf := otlayout.ApplyFeature(otf2, recs[0], buf, 0, 0)
	if !applied || len(buf) != 1 || buf[0] != 4 {
		t.Errorf("ligature no longer applies after merge, buf=%v applied=%v", buf, applied)
	}
	buf = []ot.GlyphIndex{6}
	_, applied, buf = otlayout.ApplyFeature(otf2, recs[1], buf, 0, 0)
	if !applied || buf[0] != 7 {
		t.Errorf("merged substitution does not apply, buf=%v applied=%v", buf, applied)
	}
	if _, nameID, ok := otlayout.StylisticSetParams(recs[1]); !ok || nameID != 256 {
		t.Errorf("merged feature should carry params with name ID 256, got %d/%v", nameID, ok)
	}
}

func TestMergeGSubAddsParamsToExistingFeature(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	orig, err := AssembleGSub([]FeatureSpec{{
		Tag:     ot.T("ss01"), // deliberately without a UI label
		Singles: []SingleSubst{{From: 6, To: 7}},
	}})
	if err != nil {
		t.Fatalf("cannot assemble original GSUB: %v", err)
	}
	spec := testFontSpec()
	spec.GSub = orig
	otf := buildAndParse(t, spec)
	if _, _, ok := otlayout.StylisticSetParams(otlayout.GSubFeatureRecords(otf)[0]); ok {
		t.Fatalf("original feature should not carry parameters yet")
	}

	merged, _, err := MergeGSub(otf.Layout.GSub, []FeatureSpec{{
		Tag:          ot.T("ss01"),
		ParamsNameID: 258, // label repair: no substitutions, just the params
	}})
	if err != nil {
		t.Fatalf("cannot merge GSUB: %v", err)
	}
	spec2 := testFontSpec()
	spec2.GSub = merged
	otf2 := buildAndParse(t, spec2)
	recs := otlayout.GSubFeatureRecords(otf2)
	if len(recs) != 1 {
		t.Fatalf("expected 1 feature record after label repair, got %d", len(recs))
	}
	version, nameID, ok := otlayout.StylisticSetParams(recs[0])
	if !ok || version != 0 || nameID != 258 {
		t.Errorf("expected repaired params 0/258, got %d/%d/%v", version, nameID, ok)
	}
	buf := []ot.GlyphIndex{6}
	_, applied, buf := otlayout.ApplyFeature(otf2, recs[0], buf, 0, 0)
	if !applied || buf[0] != 7 {
		t.Errorf("original substitution lost during label repair, buf=%v", buf)
	}
}

func TestMergeGSubWithoutTable(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	merged, warnings, err := MergeGSub(nil, []FeatureSpec{{
		Tag:     ot.T("ss02"),
		Singles: []SingleSubst{{From: 6, To: 7}},
	}})
	if err != nil {
		t.Fatalf("merging into a missing GSUB should build a fresh table: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	spec := testFontSpec()
	spec.GSub = merged
	otf := buildAndParse(t, spec)
	recs := otlayout.GSubFeatureRecords(otf)
	if len(recs) != 1 || recs[0].Tag() != ot.T("ss02") {
		t.Errorf("expected a fresh GSUB with feature 'ss02', got %v", recs)
	}
}

func TestMergeGSubRejectsFeatureVariations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	// A hand-built version 1.1 GSUB: empty script, feature and lookup lists,
	// but with a feature-variations table present.
	b := make([]byte, 28)
	binary.BigEndian.PutUint16(b[0:], 1)   // major
	binary.BigEndian.PutUint16(b[2:], 1)   // minor
	binary.BigEndian.PutUint16(b[4:], 14)  // script list
	binary.BigEndian.PutUint16(b[6:], 16)  // feature list
	binary.BigEndian.PutUint16(b[8:], 18)  // lookup list
	binary.BigEndian.PutUint32(b[10:], 20) // feature variations
	binary.BigEndian.PutUint16(b[20:], 1)  // feature variations: major version
	spec := testFontSpec()
	spec.GSub = b
	otf := buildAndParse(t, spec)
	_, _, err := MergeGSub(otf.Layout.GSub, []FeatureSpec{{
		Tag:     ot.T("ss01"),
		Singles: []SingleSubst{{From: 6, To: 7}},
	}})
	if err == nil || core.Code(err) != core.EINVALID {
		t.Errorf("GSUB with feature variations should be rejected with EINVALID, got %v", err)
	}
}

// --- GPOS assembly and kern migration --------------------------------------

func TestAssembleGPosKernFeature(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	pairs := []KernPair{
		{Left: 8, Right: 6, Value: -120}, // V A
		{Left: 9, Right: 2, Value: -60},  // T i
	}
	gpos, err := AssembleGPos(pairs)
	if err != nil {
		t.Fatalf("cannot assemble GPOS: %v", err)
	}
	spec := testFontSpec()
	spec.GPos = gpos
	otf := buildAndParse(t, spec)
	gp := otf.Layout.GPos
	if gp == nil {
		t.Fatalf("font has no GPOS table after assembly")
	}
	recs := otlayout.FeatureRecords(&gp.LayoutTable, otlayout.GPosFeatureType)
	if len(recs) != 1 || recs[0].Tag() != ot.T("kern") {
		t.Fatalf("expected a single 'kern' feature, got %v", recs)
	}
	lookup := gp.LookupList.Navigate(0)
	if lookup.Type != ot.MaskGPosLookupType(ot.GPosLookupTypePair) {
		t.Fatalf("expected a pair-adjustment lookup, got type %d", lookup.Type)
	}
	sub := lookup.Subtable(0)
	if sub == nil || sub.LookupType != ot.GPosLookupTypePair || sub.Format != 1 {
		t.Fatalf("expected PairPos format 1, got %v", sub)
	}
	if vf, ok := sub.Support.([2]uint16); !ok || vf[0] != 0x0004 || vf[1] != 0 {
		t.Errorf("expected value formats [0x0004 0], got %v", sub.Support)
	}
	for _, pair := range pairs {
		inx, ok := sub.Coverage.GlyphRange.Match(pair.Left)
		if !ok {
			t.Fatalf("glyph %d missing from pair-positioning coverage", pair.Left)
		}
		ps, err := sub.Index.Get(inx, false)
		if err != nil {
			t.Fatalf("cannot navigate to pair set of glyph %d: %v", pair.Left, err)
		}
		if n := ps.U16(0); n != 1 {
			t.Fatalf("expected 1 pair record for glyph %d, got %d", pair.Left, n)
		}
		if second := ot.GlyphIndex(ps.U16(2)); second != pair.Right {
			t.Errorf("expected second glyph %d, got %d", pair.Right, second)
		}
		if value := int16(ps.U16(4)); value != pair.Value {
			t.Errorf("expected kern value %d, got %d", pair.Value, value)
		}
	}
}

func TestAssembleGPosSplitsLargeLookups(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	// Enough pairs to overflow a single subtable's 16-bit offset budget.
	var pairs []KernPair
	for left := ot.GlyphIndex(100); left <= 160; left++ {
		for right := ot.GlyphIndex(100); right < 400; right++ {
			pairs = append(pairs, KernPair{Left: left, Right: right, Value: -10})
		}
	}
	gpos, err := AssembleGPos(pairs)
	if err != nil {
		t.Fatalf("cannot assemble GPOS: %v", err)
	}
	otf, err := ot.Parse(mustBuild(t, FontSpec{
		FamilyName: "Big Kern",
		Glyphs:     manyGlyphNames(500),
		CMap:       map[rune]ot.GlyphIndex{'a': 100},
		GPos:       gpos,
	}))
	if err != nil {
		t.Fatalf("cannot parse font with large GPOS: %v", err)
	}
	lookup := otf.Layout.GPos.LookupList.Navigate(0)
	if lookup.SubTableCount < 2 {
		t.Fatalf("expected the pair lookup to be split, got %d subtable(s)", lookup.SubTableCount)
	}
	first := lookup.Subtable(0)
	if _, ok := first.Coverage.GlyphRange.Match(100); !ok {
		t.Errorf("first subtable should cover glyph 100")
	}
	last := lookup.Subtable(int(lookup.SubTableCount) - 1)
	if _, ok := last.Coverage.GlyphRange.Match(160); !ok {
		t.Errorf("last subtable should cover glyph 160")
	}
}

func mustBuild(t *testing.T, spec FontSpec) []byte {
	t.Helper()
	data, err := BuildFont(spec)
	if err != nil {
		t.Fatalf("cannot build scaffold font: %v", err)
	}
	return data
}

func manyGlyphNames(n int) []string {
	names := make([]string, n)
	names[0] = ".notdef"
	for i := 1; i < n; i++ {
		names[i] = "g" + string(rune('A'+i%26)) + string(rune('a'+(i/26)%26)) +
			string(rune('a'+(i/676)%26))
	}
	return names
}

func TestReadKernPairs(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	spec := testFontSpec()
	spec.Kern = []KernPair{
		{Left: 9, Right: 2, Value: -60},
		{Left: 8, Right: 6, Value: -120},
		{Left: 8, Right: 6, Value: -40}, // later entry wins
	}
	otf := buildAndParse(t, spec)
	kern := otf.Table(ot.T("kern")).Self().AsKern()
	if kern == nil {
		t.Fatalf("font has no kern table")
	}
	pairs := ReadKernPairs(kern)
	want := []KernPair{
		{Left: 8, Right: 6, Value: -40},
		{Left: 9, Right: 2, Value: -60},
	}
	if len(pairs) != len(want) {
		t.Fatalf("expected %d kern pairs, got %d: %v", len(want), len(pairs), pairs)
	}
	for i, p := range want {
		if pairs[i] != p {
			t.Errorf("kern pair %d: expected %v, got %v", i, p, pairs[i])
		}
	}
	if got := ReadKernPairs(nil); len(got) != 0 {
		t.Errorf("expected no pairs from a nil kern table, got %v", got)
	}
}

// --- GDEF assembly ---------------------------------------------------------

func TestAssembleGDefGlyphClasses(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	classes := map[ot.GlyphIndex]uint16{
		1:  GlyphClassBase,
		4:  GlyphClassLigature,
		5:  GlyphClassLigature,
		10: GlyphClassLigature,
	}
	gdef, err := AssembleGDef(classes, nil)
	if err != nil {
		t.Fatalf("cannot assemble GDEF: %v", err)
	}
	spec := testFontSpec()
	spec.GDef = gdef
	otf := buildAndParse(t, spec)
	gd := otf.Layout.GDef
	if gd == nil {
		t.Fatalf("font has no GDEF table after assembly")
	}
	if cls := gd.GlyphClassDef.Lookup(4); cls != int(GlyphClassLigature) {
		t.Errorf("expected glyph 4 in class ligature, got %d", cls)
	}
	if cls := gd.GlyphClassDef.Lookup(1); cls != int(GlyphClassBase) {
		t.Errorf("expected glyph 1 in class base, got %d", cls)
	}
	if cls := gd.GlyphClassDef.Lookup(9); cls != 0 {
		t.Errorf("expected glyph 9 unclassified, got %d", cls)
	}
	if off := gd.Header().LigCaretListOffset; off != 0 {
		t.Errorf("GDEF without carets should have no ligature-caret list, offset %d", off)
	}
}

func TestAssembleGDefLigatureCarets(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	carets := map[ot.GlyphIndex][]int16{
		4:  {250},
		10: {166, 333},
	}
	gdef, err := AssembleGDef(nil, carets)
	if err != nil {
		t.Fatalf("cannot assemble GDEF: %v", err)
	}
	spec := testFontSpec()
	spec.GDef = gdef
	otf := buildAndParse(t, spec)
	gd := otf.Layout.GDef
	if gd == nil {
		t.Fatalf("font has no GDEF table after assembly")
	}
	lc := int(gd.Header().LigCaretListOffset)
	if lc == 0 {
		t.Fatalf("GDEF should carry a ligature-caret list")
	}
	// The ot layer does not interpret caret lists, so check the encoding on
	// the raw table data: LigCaretList -> LigGlyph -> CaretValue format 1.
	b := gd.Binary()
	u16 := func(at int) int { return int(binary.BigEndian.Uint16(b[at:])) }
	if count := u16(lc + 2); count != 2 {
		t.Fatalf("expected 2 ligature glyphs with carets, got %d", count)
	}
	lg0 := lc + u16(lc+4) // glyph 4, in coverage order
	if count := u16(lg0); count != 1 {
		t.Errorf("expected 1 caret for glyph 4, got %d", count)
	}
	cv := lg0 + u16(lg0+2)
	if format := u16(cv); format != 1 {
		t.Errorf("expected caret value format 1, got %d", format)
	}
	if x := int16(u16(cv + 2)); x != 250 {
		t.Errorf("expected caret at x=250, got %d", x)
	}
	lg1 := lc + u16(lc+6) // glyph 10
	if count := u16(lg1); count != 2 {
		t.Errorf("expected 2 carets for glyph 10, got %d", count)
	}
	cv1 := lg1 + u16(lg1+4)
	if x := int16(u16(cv1 + 2)); x != 333 {
		t.Errorf("expected second caret at x=333, got %d", x)
	}
}

// --- SFNT serialization ----------------------------------------------------

func TestSerializeRoundTrip(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	gsub, err := AssembleGSub([]FeatureSpec{{
		Tag:       ot.T("liga"),
		Ligatures: []LigatureSubst{{Components: []ot.GlyphIndex{1, 2}, Ligature: 4}},
	}})
	if err != nil {
		t.Fatalf("cannot assemble GSUB: %v", err)
	}
	spec := testFontSpec()
	spec.GSub = gsub
	spec.Kern = []KernPair{{Left: 8, Right: 6, Value: -120}}
	data := mustBuild(t, spec)
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot parse scaffold font: %v", err)
	}
	out, err := Serialize(otf, nil)
	if err != nil {
		t.Fatalf("cannot serialize font: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("serializing an unmodified font should reproduce it byte for byte")
	}
	if _, err := ot.Parse(out); err != nil {
		t.Errorf("cannot re-parse serialized font: %v", err)
	}
}

func TestSerializeReplaceAndDelete(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	spec := testFontSpec()
	spec.Kern = []KernPair{{Left: 8, Right: 6, Value: -120}}
	otf := buildAndParse(t, spec)
	gpos, err := AssembleGPos(ReadKernPairs(otf.Table(ot.T("kern")).Self().AsKern()))
	if err != nil {
		t.Fatalf("cannot assemble GPOS from kern pairs: %v", err)
	}
	out, err := Serialize(otf, map[ot.Tag][]byte{
		ot.T("GPOS"): gpos,
		ot.T("kern"): nil, // migrated away
	})
	if err != nil {
		t.Fatalf("cannot serialize font: %v", err)
	}
	otf2, err := ot.Parse(out)
	if err != nil {
		t.Fatalf("cannot parse rewritten font: %v", err)
	}
	if otf2.Table(ot.T("kern")) != nil {
		t.Errorf("kern table should have been deleted")
	}
	if otf2.Layout.GPos == nil {
		t.Fatalf("rewritten font should have a GPOS table")
	}
	recs := otlayout.FeatureRecords(&otf2.Layout.GPos.LayoutTable, otlayout.GPosFeatureType)
	if len(recs) != 1 || recs[0].Tag() != ot.T("kern") {
		t.Errorf("expected the migrated 'kern' feature, got %v", recs)
	}
}

func TestSaveFont(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	data := mustBuild(t, testFontSpec())
	dir := t.TempDir()
	path := filepath.Join(dir, "scaffold.ttf")
	if err := SaveFont(data, path); err != nil {
		t.Fatalf("cannot save font: %v", err)
	}
	rd, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read saved font: %v", err)
	}
	if !bytes.Equal(rd, data) {
		t.Errorf("saved font differs from serialized data")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cannot list directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly the saved font in %s, found %d entries", dir, len(entries))
	}
}
