package feature

import (
	"reflect"
	"testing"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// Glyph inventory of the detection test font:
//
//	 0 .notdef    1 f         2 i         3 l         4 t
//	 5 c          6 s         7 A         8 B         9 a
//	10 one       11 f_i      12 f_l      13 f_i_l    14 c_t
//	15 st        16 fi       17 A.ss01   18 B.ss01   19 X.ss02
//	20 a.sc      21 one.tnum 22 A.swash  23 n        24 n.calt1
//	25 acutecomb 26 uni0301  27 f_i.dlig
//
// The cmap maps "fi" from U+FB01, marking it as a precomposed ligature.
func detectionFontSpec() otedit.FontSpec {
	return otedit.FontSpec{
		FamilyName: "Feature Test",
		Glyphs: []string{
			".notdef", "f", "i", "l", "t", "c", "s", "A", "B", "a",
			"one", "f_i", "f_l", "f_i_l", "c_t", "st", "fi", "A.ss01",
			"B.ss01", "X.ss02", "a.sc", "one.tnum", "A.swash", "n",
			"n.calt1", "acutecomb", "uni0301", "f_i.dlig",
		},
		CMap: map[rune]ot.GlyphIndex{
			'f': 1, 'i': 2, 'l': 3, 't': 4, 'c': 5, 's': 6,
			'A': 7, 'B': 8, 'a': 9, '1': 10, 'n': 23,
			0x0301: 26, 0xFB01: 16,
		},
	}
}

func buildInventory(t *testing.T, spec otedit.FontSpec) *Inventory {
	t.Helper()
	data, err := otedit.BuildFont(spec)
	if err != nil {
		t.Fatalf("cannot build scaffold font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot parse scaffold font: %v", err)
	}
	inv, err := NewInventory(otf)
	if err != nil {
		t.Fatalf("cannot build inventory: %v", err)
	}
	return inv
}

func TestInventoryAccess(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	if inv.NumGlyphs() != 28 {
		t.Errorf("expected 28 glyphs, got %d", inv.NumGlyphs())
	}
	if gid, ok := inv.Glyph("f_i_l"); !ok || gid != 13 {
		t.Errorf("expected glyph 'f_i_l' at index 13, got %d/%v", gid, ok)
	}
	if name := inv.GlyphName(15); name != "st" {
		t.Errorf("expected glyph 15 to be named 'st', got %q", name)
	}
	if name := inv.GlyphName(100); name != "" {
		t.Errorf("out-of-range glyph ID yields name %q", name)
	}
	if !inv.Mapped(1) {
		t.Errorf("glyph 'f' should be cmap-reachable")
	}
	if inv.Mapped(11) {
		t.Errorf("glyph 'f_i' should not be cmap-reachable")
	}
	if runes := inv.Runes(26); len(runes) != 1 || runes[0] != 0x0301 {
		t.Errorf("expected glyph 26 to map from U+0301, got %v", runes)
	}
}

func TestInventoryPrefixSearch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	names := inv.NamesWithPrefix("f_")
	want := []string{"f_i", "f_i.dlig", "f_i_l", "f_l"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names with prefix 'f_' are %v, expected %v", names, want)
	}
	if names = inv.NamesWithPrefix("zz"); names != nil {
		t.Errorf("expected no names with prefix 'zz', got %v", names)
	}
}

func TestInventoryRequiresGlyphNames(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	data, err := otedit.BuildFont(detectionFontSpec())
	if err != nil {
		t.Fatalf("cannot build scaffold font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot parse scaffold font: %v", err)
	}
	stripped, err := otedit.Serialize(otf, map[ot.Tag][]byte{ot.T("post"): nil})
	if err != nil {
		t.Fatalf("cannot strip post table: %v", err)
	}
	otf, err = ot.Parse(stripped)
	if err != nil {
		t.Fatalf("cannot parse stripped font: %v", err)
	}
	if _, err = NewInventory(otf); err == nil {
		t.Errorf("expected an error for a font without glyph names")
	} else if core.Code(err) != core.EMISSING {
		t.Errorf("expected error code EMISSING, got %d", core.Code(err))
	}
}

func TestBuildDetectsFeatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	fs, warnings := Build(inv, DefaultConfig())
	want := []string{"calt", "dlig", "liga", "smcp", "ss01", "ss02", "swsh", "tnum"}
	if !reflect.DeepEqual(fs.Tags(), want) {
		t.Errorf("detected tags %v, expected %v", fs.Tags(), want)
	}
	if len(warnings) != 1 {
		t.Errorf("expected a single warning, got %v", warnings)
	} else if warnings[0] != `variant "X.ss02" has no base glyph "X" in this font` {
		t.Errorf("unexpected warning %q", warnings[0])
	}
}

func TestBuildLigatureGroups(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	fs, _ := Build(inv, DefaultConfig())
	liga := fs.Groups("liga")
	if len(liga) != 3 {
		t.Fatalf("expected 3 liga groups, got %d", len(liga))
	}
	// longest component sequence first, then alphabetically
	keys := []string{liga[0].Key, liga[1].Key, liga[2].Key}
	if !reflect.DeepEqual(keys, []string{"f_i_l", "f_i", "f_l"}) {
		t.Errorf("liga group order is %v", keys)
	}
	rule := liga[1].Ligatures[0]
	if !reflect.DeepEqual(rule.Components, []ot.GlyphIndex{1, 2}) || rule.Ligature != 11 {
		t.Errorf("unexpected f_i rule %+v", rule)
	}
	if rule = liga[0].Ligatures[0]; len(rule.Components) != 3 || rule.Ligature != 13 {
		t.Errorf("unexpected f_i_l rule %+v", rule)
	}
	dlig := fs.Groups("dlig")
	if len(dlig) != 3 {
		t.Fatalf("expected 3 dlig groups, got %d", len(dlig))
	}
	keys = []string{dlig[0].Key, dlig[1].Key, dlig[2].Key}
	if !reflect.DeepEqual(keys, []string{"c_t", "f_i", "s_t"}) {
		t.Errorf("dlig group order is %v", keys)
	}
	// "st" resolves through the two-letter split and the discretionary table
	if rule = dlig[2].Ligatures[0]; rule.Ligature != 15 || rule.Components[0] != 6 || rule.Components[1] != 4 {
		t.Errorf("unexpected s_t rule %+v", rule)
	}
	// "f_i.dlig" lands in dlig, separate from the liga rule for the same sequence
	if rule = dlig[1].Ligatures[0]; rule.Ligature != 27 {
		t.Errorf("unexpected dlig f_i rule %+v", rule)
	}
}

func TestBuildExcludesPrecomposedLigature(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	fs, warnings := Build(inv, DefaultConfig())
	// "fi" is mapped from U+FB01 and must not yield a second f_i rule
	for _, g := range fs.Groups("liga") {
		for _, l := range g.Ligatures {
			if l.LigatureName == "fi" {
				t.Errorf("precomposed ligature 'fi' produced a rule")
			}
		}
	}
	for _, w := range warnings {
		if w == `ligature "fi": components [f i] do not resolve in this font` {
			t.Errorf("precomposed ligature 'fi' should be dropped silently")
		}
	}
}

func TestBuildVariantPairs(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	fs, _ := Build(inv, DefaultConfig())
	ss01 := fs.Groups("ss01")
	if len(ss01) != 1 || ss01[0].Index != 1 {
		t.Fatalf("unexpected ss01 groups %+v", ss01)
	}
	pairs := ss01[0].Pairs
	if len(pairs) != 2 || pairs[0].BaseName != "A" || pairs[1].BaseName != "B" {
		t.Errorf("ss01 pairs are %+v", pairs)
	}
	if pairs[0].Base != 7 || pairs[0].Variant != 17 {
		t.Errorf("ss01 pair for 'A' is %+v", pairs[0])
	}
	ss02 := fs.Groups("ss02")
	if len(ss02) != 1 || ss02[0].Index != 2 {
		t.Fatalf("unexpected ss02 groups %+v", ss02)
	}
	if !ss02[0].IsEmpty() || !reflect.DeepEqual(ss02[0].Orphans, []string{"X.ss02"}) {
		t.Errorf("expected ss02 to carry only the orphan X.ss02, got %+v", ss02[0])
	}
	if smcp := fs.Groups("smcp"); len(smcp) != 1 || len(smcp[0].Pairs) != 1 || smcp[0].Pairs[0].Variant != 20 {
		t.Errorf("unexpected smcp groups %+v", smcp)
	}
	if tnum := fs.Groups("tnum"); len(tnum) != 1 || tnum[0].Pairs[0].Base != 10 {
		t.Errorf("unexpected tnum groups %+v", tnum)
	}
	calt := fs.Groups("calt")
	if len(calt) != 1 || calt[0].Key != "calt1" || calt[0].Pairs[0].Variant != 24 {
		t.Errorf("unexpected calt groups %+v", calt)
	}
	if fs.RuleCount() != 12 {
		t.Errorf("expected 12 rules in total, got %d", fs.RuleCount())
	}
}

func TestBuildDedupesConflictingVariants(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, otedit.FontSpec{
		FamilyName: "Conflict Test",
		Glyphs:     []string{".notdef", "a", "a.sc", "a.smallcap"},
		CMap:       map[rune]ot.GlyphIndex{'a': 1},
	})
	fs, warnings := Build(inv, DefaultConfig())
	smcp := fs.Groups("smcp")
	if len(smcp) != 1 || len(smcp[0].Pairs) != 1 {
		t.Fatalf("unexpected smcp groups %+v", smcp)
	}
	if smcp[0].Pairs[0].VariantName != "a.sc" {
		t.Errorf("expected the alphabetically first variant to win, got %q", smcp[0].Pairs[0].VariantName)
	}
	if len(warnings) != 1 || warnings[0] != `feature smcp: conflicting variants for "a", keeping "a.sc"` {
		t.Errorf("unexpected warnings %v", warnings)
	}
}

func TestBuildDedupesConflictingLigatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, otedit.FontSpec{
		FamilyName: "Conflict Test",
		Glyphs:     []string{".notdef", "f", "i", "f_i", "fi"},
		CMap:       map[rune]ot.GlyphIndex{'f': 1, 'i': 2},
	})
	fs, warnings := Build(inv, DefaultConfig())
	liga := fs.Groups("liga")
	if len(liga) != 1 || len(liga[0].Ligatures) != 1 {
		t.Fatalf("unexpected liga groups %+v", liga)
	}
	if liga[0].Ligatures[0].LigatureName != "f_i" {
		t.Errorf("expected 'f_i' to win over 'fi', got %q", liga[0].Ligatures[0].LigatureName)
	}
	if len(warnings) != 1 || warnings[0] != `feature liga: both "f_i" and "fi" ligate f i, keeping "f_i"` {
		t.Errorf("unexpected warnings %v", warnings)
	}
}

func TestBuildSegmentsAliasOverInventory(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	// no glyph "f": the canonical decomposition of "ffi" fails and the name
	// is re-segmented into the glyphs the font actually has
	inv := buildInventory(t, otedit.FontSpec{
		FamilyName: "Segment Test",
		Glyphs:     []string{".notdef", "ff", "i", "ffi"},
		CMap:       map[rune]ot.GlyphIndex{'i': 2},
	})
	fs, warnings := Build(inv, DefaultConfig())
	liga := fs.Groups("liga")
	if len(liga) != 1 {
		t.Fatalf("expected one liga group, got %+v", liga)
	}
	if liga[0].Key != "ff_i" {
		t.Errorf("expected group key 'ff_i' from re-segmentation, got %q", liga[0].Key)
	}
	rule := liga[0].Ligatures[0]
	if !reflect.DeepEqual(rule.Components, []ot.GlyphIndex{1, 2}) || rule.Ligature != 3 {
		t.Errorf("unexpected ffi rule %+v", rule)
	}
	// "ff" cannot be segmented into anything shorter
	if len(warnings) != 1 || warnings[0] != `ligature "ff": components [f f] do not resolve in this font` {
		t.Errorf("unexpected warnings %v", warnings)
	}
}

func TestBuildResolvesUnicodeComponents(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, otedit.FontSpec{
		FamilyName: "Unicode Test",
		Glyphs:     []string{".notdef", "c", "t", "c_uni0074"},
		CMap:       map[rune]ot.GlyphIndex{'c': 1, 't': 2},
	})
	fs, warnings := Build(inv, DefaultConfig())
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings %v", warnings)
	}
	liga := fs.Groups("liga")
	if len(liga) != 1 {
		t.Fatalf("expected one liga group, got %+v", liga)
	}
	// "uni0074" resolves through the cmap to the glyph named "t"
	if liga[0].Key != "c_t" {
		t.Errorf("expected group key 'c_t' from resolved names, got %q", liga[0].Key)
	}
	rule := liga[0].Ligatures[0]
	if !reflect.DeepEqual(rule.Names, []string{"c", "t"}) || rule.Ligature != 3 {
		t.Errorf("unexpected rule %+v", rule)
	}
}

func TestMarks(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	inv := buildInventory(t, detectionFontSpec())
	marks := Marks(inv, DefaultConfig())
	if len(marks) != 2 {
		t.Fatalf("expected 2 marks, got %v", marks)
	}
	if marks[25] != "pattern" {
		t.Errorf("expected 'acutecomb' to be a mark by name pattern, got %q", marks[25])
	}
	if marks[26] != "unicode" {
		t.Errorf("expected 'uni0301' to be a mark by Unicode category, got %q", marks[26])
	}
}
