package feature

import (
	"reflect"
	"testing"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

// withGSub builds the detection test font with an assembled GSUB table and
// optional extra name records.
func withGSub(t *testing.T, feats []otedit.FeatureSpec, names map[uint16]string) *ot.Font {
	t.Helper()
	spec := detectionFontSpec()
	gsub, err := otedit.AssembleGSub(feats)
	if err != nil {
		t.Fatalf("cannot assemble GSUB: %v", err)
	}
	spec.GSub = gsub
	data, err := otedit.BuildFont(spec)
	if err != nil {
		t.Fatalf("cannot build scaffold font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot parse scaffold font: %v", err)
	}
	if len(names) == 0 {
		return otf
	}
	edit := otedit.EditName(otf.Table(ot.T("name")).Self().AsName())
	for id, text := range names {
		edit.SetName(id, text)
	}
	encoded, err := edit.Encode()
	if err != nil {
		t.Fatalf("cannot encode name table: %v", err)
	}
	data, err = otedit.Serialize(otf, map[ot.Tag][]byte{ot.T("name"): encoded})
	if err != nil {
		t.Fatalf("cannot serialize font: %v", err)
	}
	if otf, err = ot.Parse(data); err != nil {
		t.Fatalf("cannot re-parse font: %v", err)
	}
	return otf
}

func TestExtractWithoutGSub(t *testing.T) {
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
	ex := Extract(otf)
	if len(ex.Features) != 0 || len(ex.Findings) != 0 {
		t.Errorf("expected an empty extraction, got %+v", ex)
	}
	if ex.Feature("liga") != nil {
		t.Errorf("feature lookup on an empty extraction should yield nil")
	}
	if ex.HasRule("liga", []ot.GlyphIndex{1, 2}) {
		t.Errorf("empty extraction should have no rules")
	}
}

func TestExtractSinglesAndLigatures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	otf := withGSub(t, []otedit.FeatureSpec{
		{Tag: ot.T("liga"), Ligatures: []otedit.LigatureSubst{
			{Components: []ot.GlyphIndex{1, 2}, Ligature: 11},
			{Components: []ot.GlyphIndex{1, 2, 3}, Ligature: 13},
		}},
		{Tag: ot.T("smcp"), Singles: []otedit.SingleSubst{{From: 9, To: 20}}},
		{Tag: ot.T("ss01"), ParamsNameID: 256, Singles: []otedit.SingleSubst{{From: 7, To: 17}}},
	}, map[uint16]string{256: "Alternate A"})
	ex := Extract(otf)
	if len(ex.Features) != 3 {
		t.Fatalf("expected 3 extracted features, got %+v", ex.Features)
	}
	if len(ex.Findings) != 0 {
		t.Errorf("unexpected findings %v", ex.Findings)
	}
	liga := ex.Feature("liga")
	if liga == nil || liga.Opaque {
		t.Fatalf("unexpected liga extraction %+v", liga)
	}
	// within a ligature set, longer sequences come first
	want := []otedit.LigatureSubst{
		{Components: []ot.GlyphIndex{1, 2, 3}, Ligature: 13},
		{Components: []ot.GlyphIndex{1, 2}, Ligature: 11},
	}
	if !reflect.DeepEqual(liga.Ligatures, want) {
		t.Errorf("extracted liga rules %+v", liga.Ligatures)
	}
	if liga.Params != ParamsAbsent || liga.NameID != 0 || liga.Index != 0 {
		t.Errorf("liga should carry no stylistic set state, got %+v", liga)
	}
	smcp := ex.Feature("smcp")
	if smcp == nil || !reflect.DeepEqual(smcp.Singles, []otedit.SingleSubst{{From: 9, To: 20}}) {
		t.Errorf("unexpected smcp extraction %+v", smcp)
	}
	ss01 := ex.Feature("ss01")
	if ss01 == nil {
		t.Fatalf("ss01 not extracted")
	}
	if ss01.Index != 1 || ss01.Params != ParamsValid || ss01.NameID != 256 {
		t.Errorf("unexpected ss01 params state %+v", ss01)
	}
	if ss01.Label != "Alternate A" {
		t.Errorf("expected ss01 label 'Alternate A', got %q", ss01.Label)
	}
	if !reflect.DeepEqual(ss01.Singles, []otedit.SingleSubst{{From: 7, To: 17}}) {
		t.Errorf("unexpected ss01 rules %+v", ss01.Singles)
	}
}

func TestExtractRules(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	otf := withGSub(t, []otedit.FeatureSpec{
		{Tag: ot.T("liga"), Ligatures: []otedit.LigatureSubst{
			{Components: []ot.GlyphIndex{1, 2}, Ligature: 11},
		}},
		{Tag: ot.T("smcp"), Singles: []otedit.SingleSubst{{From: 9, To: 20}}},
	}, nil)
	ex := Extract(otf)
	if !ex.HasRule("liga", []ot.GlyphIndex{1, 2}) {
		t.Errorf("liga rule for f+i not found")
	}
	if ex.HasRule("liga", []ot.GlyphIndex{1, 3}) {
		t.Errorf("liga should have no rule for f+l")
	}
	if ex.HasRule("liga", []ot.GlyphIndex{1, 2, 3}) {
		t.Errorf("liga should have no rule for f+i+l")
	}
	if !ex.HasRule("smcp", []ot.GlyphIndex{9}) {
		t.Errorf("smcp rule for a not found")
	}
	if ex.HasRule("smcp", []ot.GlyphIndex{7}) {
		t.Errorf("smcp should have no rule for A")
	}
	if ex.HasRule("dlig", []ot.GlyphIndex{1, 2}) {
		t.Errorf("rules must not leak between tags")
	}
}

func TestExtractParamsStates(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	otf := withGSub(t, []otedit.FeatureSpec{
		{Tag: ot.T("ss01"), Singles: []otedit.SingleSubst{{From: 7, To: 17}}},
		{Tag: ot.T("ss02"), ParamsNameID: 300, Singles: []otedit.SingleSubst{{From: 8, To: 18}}},
	}, nil)
	ex := Extract(otf)
	ss01 := ex.Feature("ss01")
	if ss01 == nil || ss01.Params != ParamsAbsent || ss01.NameID != 0 {
		t.Errorf("expected ss01 without params, got %+v", ss01)
	}
	// the params block is valid even when the name record it points at is missing
	ss02 := ex.Feature("ss02")
	if ss02 == nil || ss02.Params != ParamsValid || ss02.NameID != 300 {
		t.Errorf("expected ss02 with valid params, got %+v", ss02)
	}
	if ss02 != nil && ss02.Label != "" {
		t.Errorf("name ID 300 carries no text, label is %q", ss02.Label)
	}
}

func TestExtractAfterMerge(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	otf := withGSub(t, []otedit.FeatureSpec{
		{Tag: ot.T("liga"), Ligatures: []otedit.LigatureSubst{
			{Components: []ot.GlyphIndex{1, 2}, Ligature: 11},
		}},
	}, nil)
	merged, warnings, err := otedit.MergeGSub(otf.Layout.GSub, []otedit.FeatureSpec{
		{Tag: ot.T("smcp"), Singles: []otedit.SingleSubst{{From: 9, To: 20}}},
	})
	if err != nil {
		t.Fatalf("cannot merge GSUB: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected merge warnings %v", warnings)
	}
	data, err := otedit.Serialize(otf, map[ot.Tag][]byte{ot.T("GSUB"): merged})
	if err != nil {
		t.Fatalf("cannot serialize font: %v", err)
	}
	if otf, err = ot.Parse(data); err != nil {
		t.Fatalf("cannot re-parse font: %v", err)
	}
	ex := Extract(otf)
	if len(ex.Findings) != 0 {
		t.Errorf("unexpected findings %v", ex.Findings)
	}
	// the pre-existing rule survives behind its extension wrapper
	liga := ex.Feature("liga")
	if liga == nil || len(liga.Ligatures) != 1 || liga.Ligatures[0].Ligature != 11 {
		t.Errorf("liga rule lost in merge, got %+v", liga)
	}
	smcp := ex.Feature("smcp")
	if smcp == nil || !reflect.DeepEqual(smcp.Singles, []otedit.SingleSubst{{From: 9, To: 20}}) {
		t.Errorf("unexpected smcp extraction %+v", smcp)
	}
}
