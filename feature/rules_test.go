package feature

import (
	"strings"
	"testing"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func renderTestSet() *FeatureSet {
	fs := NewFeatureSet()
	fs.Add(&FeatureGroup{Tag: "calt", Key: "calt1", Pairs: []GlyphPair{
		{Base: 1, Variant: 2, BaseName: "n", VariantName: "n.calt1"},
	}})
	fs.Add(&FeatureGroup{Tag: "liga", Key: "f_i", Ligatures: []LigatureRule{
		{Components: []ot.GlyphIndex{3, 4}, Names: []string{"f", "i"}, Ligature: 5, LigatureName: "f_i"},
	}})
	fs.Add(&FeatureGroup{Tag: "smcp"}) // no rules, must not render
	fs.Add(&FeatureGroup{Tag: "ss01", Key: "01", Index: 1, Pairs: []GlyphPair{
		{Base: 6, Variant: 7, BaseName: "A", VariantName: "A.ss01"},
	}})
	return fs
}

func TestRenderFeatureFile(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	labels := map[string]Label{
		"ss01": {Tag: "ss01", Index: 1, Text: `Fancy "A"`},
	}
	text := RenderFeatureFile(renderTestSet(), labels)
	want := `feature calt {
    lookup calt_calt1 {
        sub n by n.calt1;
    } calt_calt1;
} calt;

feature liga {
    sub f i by f_i;
} liga;

feature ss01 {
    featureNames {
        name "Fancy \"A\"";
    };
    sub A by A.ss01;
} ss01;

`
	if text != want {
		t.Errorf("rendered feature file:\n%s\nexpected:\n%s", text, want)
	}
	if strings.Contains(text, "smcp") {
		t.Errorf("rule-less feature should not render")
	}
}

func TestRenderFeatureFileDeterministic(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	labels := map[string]Label{"ss01": {Tag: "ss01", Index: 1, Text: "Alpha"}}
	first := RenderFeatureFile(renderTestSet(), labels)
	second := RenderFeatureFile(renderTestSet(), labels)
	if first != second {
		t.Errorf("two renditions of the same set differ")
	}
}

func TestEncodeSpecsSkipsContextualAlternates(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	labels := map[string]Label{
		"ss01": {Tag: "ss01", Index: 1, Text: "Alpha", NameID: 300},
	}
	specs := EncodeSpecs(renderTestSet(), labels)
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %+v", specs)
	}
	if specs[0].Tag != ot.T("liga") || len(specs[0].Ligatures) != 1 || specs[0].ParamsNameID != 0 {
		t.Errorf("unexpected liga spec %+v", specs[0])
	}
	if specs[1].Tag != ot.T("ss01") || len(specs[1].Singles) != 1 || specs[1].ParamsNameID != 300 {
		t.Errorf("unexpected ss01 spec %+v", specs[1])
	}
}
