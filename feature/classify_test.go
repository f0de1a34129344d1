package feature

import (
	"reflect"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestClassifyLigatureNames(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	cases := []struct {
		name  string
		tag   string
		comps []string
	}{
		{"f_i", "liga", []string{"f", "i"}},
		{"f_f_i", "liga", []string{"f", "f", "i"}},
		{"fi", "liga", []string{"f", "i"}},
		{"ffl", "liga", []string{"f", "f", "l"}},
		{"c_t", "dlig", []string{"c", "t"}},
		{"T_h", "dlig", []string{"T", "h"}},
		{"st", "dlig", []string{"s", "t"}},
		{"f_i.dlig", "dlig", []string{"f", "i"}},
	}
	for _, c := range cases {
		cls := Classify(c.name, cfg)
		if len(cls) != 1 {
			t.Errorf("%q: expected a single classification, got %v", c.name, cls)
			continue
		}
		got := cls[0]
		if got.Tag != c.tag || got.Role != LigatureRole {
			t.Errorf("%q: classified as %s/%s, expected %s/ligature", c.name, got.Tag, got.Role, c.tag)
		}
		if !reflect.DeepEqual(got.Components, c.comps) {
			t.Errorf("%q: components %v, expected %v", c.name, got.Components, c.comps)
		}
	}
}

func TestClassifySuffixFamilies(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	cases := []struct {
		name string
		tag  string
		base string
	}{
		{"a.sc", "smcp", "a"},
		{"a.smallcap", "smcp", "a"},
		{"three.oldstyle", "onum", "three"},
		{"four.lnum", "lnum", "four"},
		{"one.tnum", "tnum", "one"},
		{"two.pnum", "pnum", "two"},
		{"Q.swsh", "swsh", "Q"},
		{"Q.swash", "swsh", "Q"},
	}
	for _, c := range cases {
		cls := Classify(c.name, cfg)
		if len(cls) != 1 {
			t.Errorf("%q: expected a single classification, got %v", c.name, cls)
			continue
		}
		got := cls[0]
		if got.Tag != c.tag || got.Role != VariantRole || got.Base != c.base {
			t.Errorf("%q: got %s/%s base %q, expected %s/variant base %q",
				c.name, got.Tag, got.Role, got.Base, c.tag, c.base)
		}
	}
}

func TestClassifyStylisticSets(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	cls := Classify("A.ss01", cfg)
	if len(cls) != 1 {
		t.Fatalf("A.ss01: expected a single classification, got %v", cls)
	}
	want := Classification{Tag: "ss01", Role: StylisticRole, Base: "A", Index: 1, GroupKey: "01"}
	if !reflect.DeepEqual(cls[0], want) {
		t.Errorf("A.ss01 classified as %+v", cls[0])
	}
	if cls = Classify("germandbls.ss14", cfg); len(cls) != 1 || cls[0].Index != 14 {
		t.Errorf("germandbls.ss14: expected set index 14, got %v", cls)
	}
	// index 0 and indices beyond the registered range are not stylistic sets
	if cls = Classify("A.ss00", cfg); cls != nil {
		t.Errorf("A.ss00 should not classify, got %v", cls)
	}
	if cls = Classify("A.ss21", cfg); cls != nil {
		t.Errorf("A.ss21 should not classify, got %v", cls)
	}
}

func TestClassifyContextualAlternates(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	cases := []struct {
		name string
		base string
		key  string
	}{
		{"n.calt1", "n", "calt1"},
		{"n.calt2", "n", "calt2"},
		{"r.alt", "r", "alt"},
		{"r.calt", "r", "calt"},
	}
	for _, c := range cases {
		cls := Classify(c.name, cfg)
		if len(cls) != 1 {
			t.Errorf("%q: expected a single classification, got %v", c.name, cls)
			continue
		}
		got := cls[0]
		if got.Tag != "calt" || got.Role != ContextualRole || got.Base != c.base || got.GroupKey != c.key {
			t.Errorf("%q classified as %+v", c.name, got)
		}
	}
}

func TestClassifyMultipleCandidacies(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	cls := Classify("fi.sc", cfg) // ligature alias base with a small-caps suffix
	if len(cls) != 2 {
		t.Fatalf("fi.sc: expected two classifications, got %v", cls)
	}
	if cls[0].Tag != "liga" || cls[1].Tag != "smcp" {
		t.Errorf("fi.sc classified as %s + %s", cls[0].Tag, cls[1].Tag)
	}
	if cls[1].Base != "fi" {
		t.Errorf("fi.sc small-caps base is %q", cls[1].Base)
	}
	cls = Classify("f_i.ss01", cfg)
	if len(cls) != 2 {
		t.Fatalf("f_i.ss01: expected two classifications, got %v", cls)
	}
	if cls[0].Tag != "liga" || cls[1].Tag != "ss01" {
		t.Errorf("f_i.ss01 classified as %s + %s", cls[0].Tag, cls[1].Tag)
	}
}

func TestClassifyRejectsUnconventionalNames(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	for _, name := range []string{"", "x", "A", "uni0301", "f_", "_i", "f__i", ".notdef", "one"} {
		if cls := Classify(name, cfg); cls != nil {
			t.Errorf("%q should not classify, got %v", name, cls)
		}
	}
	if cls := Classify("f_i", nil); cls != nil {
		t.Errorf("nil config should classify nothing, got %v", cls)
	}
}

func TestIsMark(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.engine")
	defer teardown()
	cfg := DefaultConfig()
	cases := []struct {
		name  string
		runes []rune
		mark  bool
		tier  string
	}{
		{"uni0301", []rune{0x0301}, true, "unicode"}, // cmap evidence beats the name
		{"uni0301", nil, true, "pattern"},
		{"acutecomb", nil, true, "pattern"},
		{"Gravecmb", nil, true, "pattern"}, // names are lowercased before matching
		{"acute", nil, true, "pattern"},
		{"acutecomb.case", nil, false, ""},
		{"A", []rune{'A'}, false, ""},
		{"f_i", nil, false, ""},
	}
	for _, c := range cases {
		mark, tier := IsMark(c.name, c.runes, cfg)
		if mark != c.mark || tier != c.tier {
			t.Errorf("IsMark(%q, %v) = (%v, %q), expected (%v, %q)",
				c.name, c.runes, mark, tier, c.mark, c.tier)
		}
	}
}
