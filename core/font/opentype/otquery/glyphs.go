package otquery

import (
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// NumGlyphs returns the number of glyphs in a font, as recorded in table `maxp`.
func NumGlyphs(otf *ot.Font) int {
	t := otf.Table(ot.T("maxp"))
	if t == nil {
		return 0
	}
	maxp := t.Self().AsMaxP()
	if maxp == nil {
		return 0
	}
	return maxp.NumGlyphs
}

// GlyphName returns the name of a glyph, as recorded in the font's `post` table.
// Fonts without glyph names (post table version 3.0) yield "".
func GlyphName(otf *ot.Font, gid ot.GlyphIndex) string {
	post := postTable(otf)
	if post == nil {
		return ""
	}
	return post.GlyphName(gid)
}

// GlyphNames returns all glyph names of a font, in glyph-ID order. Returns nil
// if the font carries no glyph names; feature detection is impossible for such
// fonts. Clients should treat the returned slice as read-only.
func GlyphNames(otf *ot.Font) []string {
	post := postTable(otf)
	if post == nil {
		return nil
	}
	return post.GlyphNames()
}

// GlyphForName returns the glyph ID for a glyph name. The second return value
// is false if the font has no glyph with this name.
func GlyphForName(otf *ot.Font, name string) (ot.GlyphIndex, bool) {
	post := postTable(otf)
	if post == nil {
		return 0, false
	}
	return post.GlyphIndexOf(name)
}

// ReverseCMap inverts the character map of a font, mapping glyph indices to the
// code-points which produce them. Glyphs not reachable from any code-point do
// not appear in the returned map. A glyph may be the target of more than one
// code-point.
func ReverseCMap(otf *ot.Font) map[ot.GlyphIndex][]rune {
	inv := make(map[ot.GlyphIndex][]rune)
	if otf == nil || otf.CMap == nil {
		return inv
	}
	otf.CMap.GlyphIndexMap.Each(func(r rune, gid ot.GlyphIndex) {
		inv[gid] = append(inv[gid], r)
	})
	return inv
}

func postTable(otf *ot.Font) *ot.PostTable {
	if otf == nil {
		return nil
	}
	t := otf.Table(ot.T("post"))
	if t == nil {
		return nil
	}
	return t.Self().AsPost()
}
