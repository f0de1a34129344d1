package ot_test

import (
	"testing"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestNavLink(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	spec := scaffoldSpec()
	spec.GSub = scaffoldGSub(t)
	otf := parseScaffold(t, spec)
	gsub := getTable(otf, "GSUB", t).Self().AsGSub()
	if gsub == nil {
		t.Fatal("cannot convert GSUB table")
	}
	script := gsub.ScriptList.Map().LookupTag(ot.T("latn"))
	recname := script.Navigate().Name()
	t.Logf("walked to %s", recname)
	lang := script.Navigate().Link()
	langlist := lang.Navigate().List()
	t.Logf("list is %s of length %v", lang.Name(), langlist.Len())
	// entry 0 of a LangSys list is the mandatory-feature slot
	if lang.Name() != "LangSys" || langlist.Len() != 3 {
		t.Errorf("expected default LangSys of latn to activate 2 features, has %d", langlist.Len()-1)
	}
	if mandatory := langlist.Get(0).U16(0); mandatory != 0xffff {
		t.Errorf("expected the mandatory-feature slot to be unused, is %d", mandatory)
	}
	inx := langlist.Get(1).U16(0)
	if tag, _ := gsub.FeatureList.Get(int(inx)); tag != ot.T("liga") {
		t.Errorf("expected first feature index to resolve to 'liga', is %s", tag)
	}
}

func TestTableNav(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	otf := parseScaffold(t, scaffoldSpec())
	table := getTable(otf, "name", t)
	name := table.Fields().Name()
	if name != "name" {
		t.Errorf("expected table to have name 'name', have %s", name)
	}
	key := ot.MakeTag([]byte{3, 1, 0, 1}) // Windows 1-encoded field 1 = Font Family Name
	x := table.Fields().Map().AsTagRecordMap().LookupTag(key).Navigate().Name()
	if x != "Scaffold Sans" {
		t.Errorf("expected Windows/1 encoded field 1 to be 'Scaffold Sans', is %s", x)
	}
}

func TestTableNavOS2(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	//
	otf := parseScaffold(t, scaffoldSpec())
	table := getTable(otf, "OS/2", t)
	name := table.Fields().Name()
	if name != "OS/2" {
		t.Errorf("expected navigator name OS/2, have %s", name)
	}
	loc := table.Fields().List().Get(1)
	if loc.U16(0) != 500 {
		t.Errorf("expected xAvgCharWidth (size %d) of the scaffold font to be 500, is %d", loc.Size(), loc.U16(0))
	}
}
