package otquery

import (
	"testing"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/stretchr/testify/suite"
	"golang.org/x/image/font/sfnt"
)

// --- Test Suite Preparation ------------------------------------------------

type MetricsTestEnviron struct {
	suite.Suite
	otf *ot.Font
}

// listen for 'go test' command --> run test methods
func TestMetricsFunctions(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "otfeat.fonts")
	defer teardown()
	suite.Run(t, new(MetricsTestEnviron))
}

// run once, before test suite methods
func (env *MetricsTestEnviron) SetupSuite() {
	env.T().Log("Setting up test suite")
	tracing.Select("otfeat.fonts").SetTraceLevel(tracing.LevelError)
	env.otf = buildQueryTestFont(env.T())
	tracing.Select("otfeat.fonts").SetTraceLevel(tracing.LevelInfo)
}

// run once, after test suite methods
func (env *MetricsTestEnviron) TearDownSuite() {
	env.T().Log("Tearing down test suite")
}

// --- Tests -----------------------------------------------------------------

func (env *MetricsTestEnviron) TestGlyphIndex() {
	gid := GlyphIndex(env.otf, 'A')
	env.Equal(ot.GlyphIndex(1), gid, "expected glyph index of 'A' in test font to be 1")
}

func (env *MetricsTestEnviron) TestFontMetrics() {
	m := FontMetrics(env.otf)
	env.T().Logf("font metrics = %v", m)
	env.Equal(sfnt.Units(800), m.Ascent, "expected ascender of 800 units")
	env.Equal(sfnt.Units(-200), m.Descent, "expected descender of -200 units")
	env.Equal(sfnt.Units(560), m.MaxAdvance, "expected max advance width of 560 units")
	env.Equal(sfnt.Units(1000), m.UnitsPerEm, "expected 1000 units per em")
}

func (env *MetricsTestEnviron) TestGlyphMetrics() {
	gid := GlyphIndex(env.otf, 'A')
	m := GlyphMetrics(env.otf, gid)
	env.T().Logf("metrics = %v", m)
	env.Equal(sfnt.Units(560), m.Advance, "expected advance for 'A' to be 560 units")
	env.True(m.BBox.Empty(), "expected empty bounding box for outline-less glyph")
}

func (env *MetricsTestEnviron) TestLanguageMatch() {
	script, lang := FontSupportsScript(env.otf, ot.T("latn"), ot.T("TRK"))
	env.Equal("latn", script.String(), "expected Latin script in test font")
	env.Equal(ot.DFLT, lang, "expected fallback to default language system")
}

func (env *MetricsTestEnviron) TestScriptFallback() {
	script, lang := FontSupportsScript(env.otf, ot.T("grek"), ot.T("ELL"))
	env.Equal(ot.DFLT, script, "expected DFLT for script missing from test font")
	env.Equal(ot.DFLT, lang)
}

// --- Helpers ---------------------------------------------------------------

// buildQueryTestFont scaffolds a small font with known glyph names, metrics,
// layout tables and a character map.
//
// Glyph IDs: .notdef=0, A=1, B=2, f=3, i=4, f_i=5, acutecomb=6
func buildQueryTestFont(t *testing.T) *ot.Font {
	gsub, err := otedit.AssembleGSub([]otedit.FeatureSpec{
		{
			Tag: ot.T("liga"),
			Ligatures: []otedit.LigatureSubst{
				{Components: []ot.GlyphIndex{3, 4}, Ligature: 5},
			},
		},
	})
	if err != nil {
		t.Fatalf("cannot assemble GSUB for test font: %s", err)
	}
	gdef, err := otedit.AssembleGDef(map[ot.GlyphIndex]uint16{
		1: otedit.GlyphClassBase,
		2: otedit.GlyphClassBase,
		3: otedit.GlyphClassBase,
		4: otedit.GlyphClassBase,
		5: otedit.GlyphClassLigature,
		6: otedit.GlyphClassMark,
	}, nil)
	if err != nil {
		t.Fatalf("cannot assemble GDEF for test font: %s", err)
	}
	data, err := otedit.BuildFont(otedit.FontSpec{
		FamilyName: "Otquery Test",
		Glyphs:     []string{".notdef", "A", "B", "f", "i", "f_i", "acutecomb"},
		CMap: map[rune]ot.GlyphIndex{
			'A':    1,
			'B':    2,
			'f':    3,
			'i':    4,
			0x0301: 6, // combining acute
		},
		Advances: []uint16{500, 560, 550, 300, 250, 520, 0},
		GSub:     gsub,
		GDef:     gdef,
	})
	if err != nil {
		t.Fatalf("cannot scaffold test font: %s", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		t.Fatalf("cannot decode test font: %s", err)
	}
	t.Logf("parsed scaffolded OpenType font")
	return otf
}
