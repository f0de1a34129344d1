package otlayout

import (
	"testing"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestTagRegistry(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	typ, err := identifyFeatureTag(ot.T("liga"))
	if err != nil {
		t.Fatal(err)
	}
	if typ != GSubFeatureType {
		t.Errorf("expected 'liga' to be a GSUB feature tag, isn't")
	}
	typ, err = identifyFeatureTag(ot.T("kern"))
	if err != nil {
		t.Fatal(err)
	}
	if typ != GPosFeatureType {
		t.Errorf("expected 'kern' to be a GPOS feature tag, isn't")
	}
	// stylistic sets and character variants are not in the registry table
	typ, err = identifyFeatureTag(ot.T("ss17"))
	if err != nil || typ != GSubFeatureType {
		t.Errorf("expected 'ss17' to be recognized as a GSUB feature tag, isn't")
	}
	typ, err = identifyFeatureTag(ot.T("cv42"))
	if err != nil || typ != GSubFeatureType {
		t.Errorf("expected 'cv42' to be recognized as a GSUB feature tag, isn't")
	}
	if _, err = identifyFeatureTag(ot.T("zzzz")); err == nil {
		t.Errorf("expected unregistered tag 'zzzz' to be refused, wasn't")
	}
}

func TestStylisticSetTags(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	tag, err := MakeStylisticSetTag(7)
	if err != nil {
		t.Fatal(err)
	}
	if tag.String() != "ss07" {
		t.Errorf("expected tag for stylistic set 7 to be 'ss07', is %s", tag)
	}
	if _, err = MakeStylisticSetTag(21); err == nil {
		t.Errorf("expected set number 21 to be refused, wasn't")
	}
	n, ok := ParseStylisticSetTag(tag)
	if !ok || n != 7 {
		t.Errorf("expected 'ss07' to parse as set number 7, have %d", n)
	}
	if _, ok = ParseStylisticSetTag(ot.T("liga")); ok {
		t.Errorf("expected 'liga' not to parse as a stylistic set tag")
	}
}

func TestFontFeatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	otf := parseScaffoldFont(t)
	gsubFeats, gposFeats, err := FontFeatures(otf, ot.T("latn"), 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("found %d GSUB features and %d GPOS features", len(gsubFeats), len(gposFeats))
	if len(gsubFeats) != 3 { // mandatory feature slot + liga + ss01
		t.Fatalf("expected 3 GSUB feature entries, have %d", len(gsubFeats))
	}
	if gsubFeats[0] != nil {
		t.Errorf("expected mandatory GSUB feature slot to be unused, isn't")
	}
	liga := gsubFeats[1]
	if liga.Tag() != ot.T("liga") {
		t.Errorf("expected first GSUB feature to be 'liga', is %s", liga.Tag())
	}
	if liga.Type() != GSubFeatureType {
		t.Errorf("feature 'liga' should be of GSUB type, isn't")
	}
	if liga.LookupCount() != 1 || liga.LookupIndex(0) != 0 {
		t.Errorf("expected 'liga' to activate exactly lookup 0, doesn't")
	}
	if gsubFeats[2].Tag() != ot.T("ss01") {
		t.Errorf("expected second GSUB feature to be 'ss01', is %s", gsubFeats[2].Tag())
	}
	if len(gposFeats) != 2 { // mandatory feature slot + kern
		t.Fatalf("expected 2 GPOS feature entries, have %d", len(gposFeats))
	}
	if gposFeats[1].Tag() != ot.T("kern") || gposFeats[1].Type() != GPosFeatureType {
		t.Errorf("expected GPOS feature to be 'kern', is %s", gposFeats[1].Tag())
	}
	// script 0 is a stand-in for DFLT
	gsubFeats, _, err = FontFeatures(otf, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(gsubFeats) != 3 {
		t.Errorf("expected DFLT script to carry the same features, has %d", len(gsubFeats))
	}
}

func TestFeatureRecords(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	otf := parseScaffoldFont(t)
	recs := GSubFeatureRecords(otf)
	if len(recs) != 2 {
		t.Fatalf("expected 2 GSUB feature records, have %d", len(recs))
	}
	for _, rec := range recs {
		t.Logf("feature record %d = %s", rec.Index, rec.Tag())
	}
	if recs[0].Index != 0 || recs[0].Tag() != ot.T("liga") {
		t.Errorf("expected record 0 to be 'liga', is %s", recs[0].Tag())
	}
	if _, present := FeatureParams(recs[0]); present {
		t.Errorf("expected 'liga' to carry no feature parameters, does")
	}
	version, nameID, ok := StylisticSetParams(recs[1])
	if !ok {
		t.Fatalf("expected 'ss01' to carry stylistic set parameters, hasn't")
	}
	t.Logf("ss01 parameters: version = %d, UI label = name entry %d", version, nameID)
	if version != 0 || nameID != 256 {
		t.Errorf("expected ss01 UI label in name entry 256, have %d", nameID)
	}
}

func TestApplyLigature(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	otf := parseScaffoldFont(t)
	gsubFeats, _, err := FontFeatures(otf, ot.T("latn"), 0)
	if err != nil {
		t.Fatal(err)
	}
	liga := gsubFeats[1]
	buf := prepareGlyphBuffer("fi", otf, t)
	pos, applied, buf := ApplyFeature(otf, liga, buf, 0, 0)
	t.Logf("buffer after 'liga' = %v", buf)
	if !applied {
		t.Fatalf("expected ligature substitution for f+i to apply, didn't")
	}
	if len(buf) != 1 || buf[0] != 3 || pos != 1 {
		t.Errorf("expected buffer [3] with position 1, have %v with %d", buf, pos)
	}
	// f alone is covered, but the i component is missing
	buf = prepareGlyphBuffer("fA", otf, t)
	_, applied, buf = ApplyFeature(otf, liga, buf, 0, 0)
	if applied || len(buf) != 2 {
		t.Errorf("expected incomplete ligature sequence to stay untouched, have %v", buf)
	}
}

func TestApplySingleSubst(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	otf := parseScaffoldFont(t)
	gsubFeats, _, err := FontFeatures(otf, ot.T("latn"), 0)
	if err != nil {
		t.Fatal(err)
	}
	ss01 := gsubFeats[2]
	buf := prepareGlyphBuffer("A", otf, t)
	pos, applied, buf := ApplyFeature(otf, ss01, buf, 0, 0)
	t.Logf("buffer after 'ss01' = %v", buf)
	if !applied || buf[0] != 5 || pos != 1 {
		t.Errorf("expected 'ss01' to substitute glyph 5 for 'A', have %v", buf)
	}
	buf = prepareGlyphBuffer("B", otf, t) // 'B' is not covered by ss01
	_, applied, buf = ApplyFeature(otf, ss01, buf, 0, 0)
	if applied || buf[0] != 5 {
		t.Errorf("expected 'ss01' to leave 'B' alone, have %v", buf)
	}
	if _, applied, _ = ApplyFeature(otf, gsubFeats[0], buf, 0, 0); applied {
		t.Errorf("unused mandatory feature slot must never apply")
	}
}

// ---------------------------------------------------------------------------

// parseScaffoldFont assembles a small font with a GSUB table (a liga feature
// for f+i and an ss01 feature mapping A to B) and a GPOS kern feature.
func parseScaffoldFont(t *testing.T) *ot.Font {
	gsub, err := otedit.AssembleGSub([]otedit.FeatureSpec{
		{Tag: ot.T("liga"), Ligatures: []otedit.LigatureSubst{
			{Components: []ot.GlyphIndex{1, 2}, Ligature: 3},
		}},
		{Tag: ot.T("ss01"), ParamsNameID: 256,
			Singles: []otedit.SingleSubst{{From: 4, To: 5}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	gpos, err := otedit.AssembleGPos([]otedit.KernPair{{Left: 4, Right: 5, Value: -30}})
	if err != nil {
		t.Fatal(err)
	}
	data, err := otedit.BuildFont(otedit.FontSpec{
		FamilyName: "Layout Scaffold",
		Glyphs:     []string{".notdef", "f", "i", "f_i", "A", "B"},
		CMap:       map[rune]ot.GlyphIndex{'f': 1, 'i': 2, 'A': 4, 'B': 5},
		GSub:       gsub,
		GPos:       gpos,
	})
	if err != nil {
		t.Fatal(err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		core.UserError(err)
		t.Fatal(err)
	}
	t.Logf("--- font parsed ---")
	return otf
}

func prepareGlyphBuffer(s string, otf *ot.Font, t *testing.T) []ot.GlyphIndex {
	table := otf.Table(ot.T("cmap"))
	if table == nil {
		t.Fatal("expected font to have a cmap table, hasn't")
	}
	cmap := table.Self().AsCMap().GlyphIndexMap
	buf := make([]ot.GlyphIndex, 0, len(s))
	for _, r := range s {
		buf = append(buf, cmap.Lookup(r))
	}
	t.Logf("glyph buffer for %q = %v", s, buf)
	return buf
}
