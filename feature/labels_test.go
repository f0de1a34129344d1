package feature

import (
	"testing"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestParseUserLabel(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	n, text, err := ParseUserLabel("1,Swash Capitals")
	if err != nil || n != 1 || text != "Swash Capitals" {
		t.Errorf("ParseUserLabel = (%d, %q, %v)", n, text, err)
	}
	if n, text, err = ParseUserLabel(" 2 , Fancy "); err != nil || n != 2 || text != "Fancy" {
		t.Errorf("ParseUserLabel should trim spaces, got (%d, %q, %v)", n, text, err)
	}
	for _, arg := range []string{"no comma", "x,Text", "0,Text", "-1,Text", "3,   "} {
		if _, _, err = ParseUserLabel(arg); err == nil {
			t.Errorf("ParseUserLabel(%q) should fail", arg)
		} else if core.Code(err) != core.ECONFIG {
			t.Errorf("ParseUserLabel(%q): expected error code ECONFIG, got %d", arg, core.Code(err))
		}
	}
}

func TestLabelManagerRegistration(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	lm := NewLabelManager(DefaultConfig())
	if err := lm.AddUserLabels([]string{"1,Fancy", "7,Swashes"}); err != nil {
		t.Fatalf("cannot register labels: %v", err)
	}
	if !lm.HasUserLabel(1) || !lm.HasUserLabel(7) || lm.HasUserLabel(2) {
		t.Errorf("user label registration lost track of indices")
	}
	if err := lm.AddUserLabel(1, "Other"); err == nil {
		t.Errorf("second label for set 1 should fail")
	} else if core.Code(err) != core.ECONFIG {
		t.Errorf("expected error code ECONFIG, got %d", core.Code(err))
	}
	if err := lm.AddUserLabel(21, "Out of Range"); err == nil {
		t.Errorf("set index 21 should be out of range")
	}
}

func TestLabelPrecedence(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	lm := NewLabelManager(DefaultConfig())
	if err := lm.AddUserLabel(1, "Fancy"); err != nil {
		t.Fatalf("cannot register label: %v", err)
	}
	lbl := lm.Resolve(1, nil)
	if lbl.Source != UserLabel || lbl.Text != "Fancy" || lbl.Tag != "ss01" || lbl.NameID != 0 {
		t.Errorf("unexpected user label %+v", lbl)
	}
	// a user label replaces the existing text but keeps the name ID
	lbl = lm.Resolve(1, &Label{Index: 1, Text: "Old", NameID: 301})
	if lbl.Source != UserLabel || lbl.Text != "Fancy" || lbl.NameID != 301 {
		t.Errorf("unexpected user label over existing %+v", lbl)
	}
	lbl = lm.Resolve(2, &Label{Index: 2, Text: "Old Two", NameID: 302})
	if lbl.Source != ExistingLabel || lbl.Text != "Old Two" || lbl.NameID != 302 || lbl.Tag != "ss02" {
		t.Errorf("unexpected existing label %+v", lbl)
	}
	// an existing record without text does not count as a label
	lbl = lm.Resolve(2, &Label{Index: 2, NameID: 302})
	if lbl.Source != DefaultLabel || lbl.Text != "Stylistic Set 2" {
		t.Errorf("unexpected label for empty existing text %+v", lbl)
	}
	lbl = lm.Resolve(3, nil)
	if lbl.Source != DefaultLabel || lbl.Text != "Stylistic Set 3" || lbl.Tag != "ss03" {
		t.Errorf("unexpected default label %+v", lbl)
	}
}

func nameEditFor(t *testing.T, spec otedit.FontSpec) *otedit.NameEdit {
	t.Helper()
	data, err := otedit.BuildFont(spec)
	if err != nil {
		t.Fatalf("cannot build scaffold font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot parse scaffold font: %v", err)
	}
	return otedit.EditName(otf.Table(ot.T("name")).Self().AsName())
}

func TestAssignLabelIDsAllocates(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	edit := nameEditFor(t, detectionFontSpec())
	labels := map[string]Label{
		"ss01": {Tag: "ss01", Index: 1, Text: "Alpha", Source: DefaultLabel},
		"ss02": {Tag: "ss02", Index: 2, Text: "Beta", Source: DefaultLabel},
	}
	if err := AssignLabelIDs(labels, edit); err != nil {
		t.Fatalf("cannot assign label IDs: %v", err)
	}
	// IDs are handed out in tag order, starting at the first font-specific ID
	if labels["ss01"].NameID != 256 || labels["ss02"].NameID != 257 {
		t.Errorf("unexpected ID assignment %+v", labels)
	}
	if !edit.Modified() {
		t.Errorf("assignment should modify the name table")
	}
	if text := edit.Get(256); text != "Alpha" {
		t.Errorf("name 256 is %q", text)
	}
	// a second assignment with the same text reuses the record
	more := map[string]Label{
		"ss03": {Tag: "ss03", Index: 3, Text: "Alpha", Source: DefaultLabel},
	}
	if err := AssignLabelIDs(more, edit); err != nil {
		t.Fatalf("cannot assign label IDs: %v", err)
	}
	if more["ss03"].NameID != 256 {
		t.Errorf("expected label reuse of ID 256, got %+v", more["ss03"])
	}
}

func TestAssignLabelIDsRewritesUserLabels(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	edit := nameEditFor(t, detectionFontSpec())
	edit.SetName(256, "Old Label")
	labels := map[string]Label{
		"ss01": {Tag: "ss01", Index: 1, Text: "New Label", Source: UserLabel, NameID: 256},
	}
	if err := AssignLabelIDs(labels, edit); err != nil {
		t.Fatalf("cannot assign label IDs: %v", err)
	}
	if labels["ss01"].NameID != 256 {
		t.Errorf("user label should keep its name ID, got %+v", labels["ss01"])
	}
	if text := edit.Get(256); text != "New Label" {
		t.Errorf("record 256 should be rewritten in place, is %q", text)
	}
}

func TestAssignLabelIDsLeavesExistingAlone(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	edit := nameEditFor(t, detectionFontSpec())
	labels := map[string]Label{
		"ss01": {Tag: "ss01", Index: 1, Text: "Feature Test", Source: ExistingLabel, NameID: 1},
	}
	if err := AssignLabelIDs(labels, edit); err != nil {
		t.Fatalf("cannot assign label IDs: %v", err)
	}
	if edit.Modified() {
		t.Errorf("labels already in the font must not cause edits")
	}
}
