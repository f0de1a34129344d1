package otquery

import (
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"golang.org/x/text/language"
)

// FontType returns the font type, encoded in the font header, as a string.
func FontType(otf *ot.Font) string {
	if otf.Header == nil {
		return "<empty>"
	}
	typ := otf.Header.FontType
	switch typ {
	case 0x4f54544f: // OTTO
		return "OpenType (outlines)"
	case 0x00010000: // TrueType
		return "TrueType"
	case 0x74727565: // true
		return "TrueType (Mac legacy)"
	}
	return "<unknown>"
}

// NameInfo returns a map with selected fields from OpenType table `name`.
// Will include (if available in the font) "family", "subfamily", "fullname"
// and "version".
//
// Parameter `lang` is currently unused; name records are resolved with a
// preference for Windows/Unicode-BMP entries in US English, falling back to
// Macintosh/Roman entries.
func NameInfo(otf *ot.Font, lang language.Tag) map[string]string {
	names := make(map[string]string)
	table := otf.Table(ot.T("name"))
	if table == nil {
		tracer().Debugf("no name table found in font")
		return names
	}
	name := table.Self().AsName()
	if name == nil {
		return names
	}
	fields := []struct {
		key string
		id  uint16
	}{
		{"family", 1},
		{"subfamily", 2},
		{"fullname", 4},
		{"version", 5},
	}
	for _, field := range fields {
		if val := name.Get(field.id); val != "" {
			names[field.key] = val
		}
	}
	return names
}

// LayoutTables returns a list of tag strings, one for each layout-table a font includes.
//
// From the spec:
// OpenType Layout makes use of five tables: GSUB, GPOS, BASE, JSTF, and GDEF.
func LayoutTables(otf *ot.Font) []string {
	var lt []string
	tags := otf.TableTags()
	for _, tag := range tags {
		switch tag.String() {
		case "GSUB", "GPOS", "BASE", "JSTF", "GDEF":
			lt = append(lt, tag.String())
		}
	}
	return lt
}

// GlyphClass collects glyph class information for a glyph index.
type GlyphClass struct {
	Class           int
	MarkAttachClass int
	MarkGlyphSet    int
}

// GlyphClasses retrieves glyph class information for a given glyph index.
func GlyphClasses(otf *ot.Font, gid ot.GlyphIndex) GlyphClass {
	t := otf.Table(ot.T("GDEF"))
	if t == nil {
		return GlyphClass{}
	}
	gdef := t.Self().AsGDef()
	clz := GlyphClass{
		Class:           gdef.GlyphClassDef.Lookup(gid),
		MarkAttachClass: gdef.MarkAttachmentClassDef.Lookup(gid),
	}
	for i, set := range gdef.MarkGlyphSets {
		if _, ok := set.Match(gid); ok {
			clz.MarkGlyphSet = i
		}
	}
	return clz
}
