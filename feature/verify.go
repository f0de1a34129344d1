package feature

import (
	"bytes"
	"encoding/binary"
	"unicode"

	hbtt "github.com/benoitkugler/textlayout/fonts/truetype"
	hb "github.com/benoitkugler/textlayout/harfbuzz"
	hblang "github.com/benoitkugler/textlayout/language"
	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"golang.org/x/text/language"
)

// Probe is one shaping check: Text, shaped with the feature Tag switched
// on, is expected to produce the Want glyph.
type Probe struct {
	Tag  string
	Text string
	Want ot.GlyphIndex
}

// VerifyResult reports one probe: the glyph sequence that came out of the
// shaper and whether the expected substitution fired.
type VerifyResult struct {
	Probe
	Glyphs []ot.GlyphIndex
	Fired  bool
}

// Verify shapes each probe's text with HarfBuzz, the probed feature
// switched on over the whole text, and checks that the expected glyph
// appears in the output. data is the rewritten font, so a fired probe
// confirms the merged GSUB actually drives a shaper, not just our own
// reading of it.
//
// Probes carry no script of their own; shaping assumes a left-to-right
// Latin repertoire, which is where glyph-name conventions live anyway.
func Verify(data []byte, probes []Probe) ([]VerifyResult, error) {
	face, err := hbtt.Parse(bytes.NewReader(data), true)
	if err != nil {
		return nil, core.Error(core.EINVALID, "shaper cannot read rewritten font: %v", err)
	}
	font := hb.NewFont(face)
	results := make([]VerifyResult, 0, len(probes))
	for _, p := range probes {
		runes := []rune(p.Text)
		buf := hb.NewBuffer()
		buf.Props = hb.SegmentProperties{
			Direction: hb.LeftToRight,
			Script:    script4HB(language.MustParseScript("Latn")),
			Language:  hblang.NewLanguage("en"),
		}
		buf.AddRunes(runes, 0, len(runes))
		buf.Shape(font, []hb.Feature{{
			Tag:   hbtt.Tag(ot.T(p.Tag)),
			Value: 1,
			Start: 0,
			End:   len(runes),
		}})
		r := VerifyResult{Probe: p}
		for _, info := range buf.Info {
			g := ot.GlyphIndex(info.Glyph)
			r.Glyphs = append(r.Glyphs, g)
			if g == p.Want {
				r.Fired = true
			}
		}
		tracer().Debugf("probe %q with %s on: %v, fired=%v", p.Text, p.Tag, r.Glyphs, r.Fired)
		results = append(results, r)
	}
	return results, nil
}

// script4HB converts an ISO 15924 script to a HarfBuzz script, which wants
// the first letter lowered.
func script4HB(s language.Script) hblang.Script {
	b := []byte(s.String())
	b[0] = byte(unicode.ToLower(rune(b[0])))
	return hblang.Script(binary.BigEndian.Uint32(b))
}
