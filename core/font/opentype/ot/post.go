package ot

import "fmt"

// PostTable contains additional information needed to use TrueType or OpenType fonts
// on PostScript printers. For our purposes its value lies elsewhere: versions 1.0 and
// 2.0 of the table carry the glyph names of the font, in glyph-ID order. Glyph names
// are the raw material for feature detection.
//
// See https://docs.microsoft.com/en-us/typography/opentype/spec/post
type PostTable struct {
	tableBase
	Version   uint32
	NumGlyphs int
	names     []string
	nameInx   map[string]GlyphIndex
}

func newPostTable(tag Tag, b binarySegm, offset, size uint32) *PostTable {
	t := &PostTable{}
	base := tableBase{
		data:   b,
		name:   tag,
		offset: offset,
		length: size,
	}
	t.tableBase = base
	t.self = t
	return t
}

// GlyphName returns the name of glyph gid, or "" if the font carries no names
// (post table version 3.0) or gid is out of range.
func (t *PostTable) GlyphName(gid GlyphIndex) string {
	if int(gid) >= len(t.names) {
		return ""
	}
	return t.names[gid]
}

// GlyphNames returns all glyph names in glyph-ID order. Clients should treat the
// returned slice as read-only.
func (t *PostTable) GlyphNames() []string {
	return t.names
}

// GlyphIndexOf returns the glyph ID for a glyph name. The second return value
// is false if no glyph of the font has this name.
func (t *PostTable) GlyphIndexOf(name string) (GlyphIndex, bool) {
	gid, ok := t.nameInx[name]
	return gid, ok
}

// AsPost returns this table as a post table, or nil.
func (tself TableSelf) AsPost() *PostTable {
	if k, ok := safeSelf(tself).(*PostTable); ok {
		return k
	}
	return nil
}

// post table version numbers, stored as 16.16 fixed numbers.
const (
	postVersion1 uint32 = 0x00010000 // glyph names = standard Macintosh set
	postVersion2 uint32 = 0x00020000 // glyph names stored in the table
	postVersion3 uint32 = 0x00030000 // no glyph names
)

func parsePost(tag Tag, b binarySegm, offset, size uint32) (Table, error) {
	if size < 32 {
		return nil, errFontFormat("size of post table")
	}
	t := newPostTable(tag, b, offset, size)
	t.Version = b.U32(0)
	switch t.Version {
	case postVersion1:
		t.names = macGlyphNames[:]
		t.NumGlyphs = len(t.names)
	case postVersion2:
		if err := parsePostNames(t, b); err != nil {
			return nil, err
		}
	case postVersion3:
		// no glyph name information in this font
	default:
		tracer().Infof("post table version %x not supported, glyph names unavailable", t.Version)
	}
	t.nameInx = make(map[string]GlyphIndex, len(t.names))
	for gid, name := range t.names {
		if name == "" {
			continue
		}
		if _, ok := t.nameInx[name]; !ok { // fonts have been seen with duplicate names
			t.nameInx[name] = GlyphIndex(gid)
		}
	}
	return t, nil
}

// Version 2.0 layout: the 32-byte header is followed by
//
//	uint16  | numGlyphs                 | number of glyphs
//	uint16  | glyphNameIndex[numGlyphs] | index into the string data, or < 258 for a
//	                                      standard Macintosh glyph name
//	uint8   | stringData[variable]      | storage for names: Pascal strings
func parsePostNames(t *PostTable, b binarySegm) error {
	if b.Size() < 34 {
		return errFontFormat("post table version 2.0 header")
	}
	n := int(b.U16(32))
	t.NumGlyphs = n
	if b.Size() < 34+2*n {
		return errFontFormat("post table glyph name index")
	}
	var strings []string
	for p := 34 + 2*n; p < b.Size(); {
		l := int(b.Bytes()[p])
		if p+1+l > b.Size() {
			return errFontFormat("post table string data")
		}
		strings = append(strings, string(b.Bytes()[p+1:p+1+l]))
		p += 1 + l
	}
	t.names = make([]string, n)
	for gid := 0; gid < n; gid++ {
		inx := int(b.U16(34 + 2*gid))
		switch {
		case inx < len(macGlyphNames):
			t.names[gid] = macGlyphNames[inx]
		case inx-len(macGlyphNames) < len(strings):
			t.names[gid] = strings[inx-len(macGlyphNames)]
		default:
			tracer().Debugf("glyph #%d has dangling name index %d", gid, inx)
			t.names[gid] = fmt.Sprintf("glyph%05d", gid)
		}
	}
	return nil
}

// The 258 standard Macintosh glyph names, referenced by post table versions 1.0
// and 2.0. Order matters.
var macGlyphNames = [258]string{
	".notdef", ".null", "nonmarkingreturn", "space", "exclam", "quotedbl",
	"numbersign", "dollar", "percent", "ampersand", "quotesingle", "parenleft",
	"parenright", "asterisk", "plus", "comma", "hyphen", "period", "slash",
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "colon", "semicolon", "less", "equal", "greater", "question", "at",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M", "N", "O",
	"P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z", "bracketleft",
	"backslash", "bracketright", "asciicircum", "underscore", "grave", "a",
	"b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m", "n", "o", "p",
	"q", "r", "s", "t", "u", "v", "w", "x", "y", "z", "braceleft", "bar",
	"braceright", "asciitilde", "Adieresis", "Aring", "Ccedilla", "Eacute",
	"Ntilde", "Odieresis", "Udieresis", "aacute", "agrave", "acircumflex",
	"adieresis", "atilde", "aring", "ccedilla", "eacute", "egrave",
	"ecircumflex", "edieresis", "iacute", "igrave", "icircumflex", "idieresis",
	"ntilde", "oacute", "ograve", "ocircumflex", "odieresis", "otilde",
	"uacute", "ugrave", "ucircumflex", "udieresis", "dagger", "degree", "cent",
	"sterling", "section", "bullet", "paragraph", "germandbls", "registered",
	"copyright", "trademark", "acute", "dieresis", "notequal", "AE", "Oslash",
	"infinity", "plusminus", "lessequal", "greaterequal", "yen", "mu",
	"partialdiff", "summation", "product", "pi", "integral", "ordfeminine",
	"ordmasculine", "Omega", "ae", "oslash", "questiondown", "exclamdown",
	"logicalnot", "radical", "florin", "approxequal", "Delta", "guillemotleft",
	"guillemotright", "ellipsis", "nonbreakingspace", "Agrave", "Atilde",
	"Otilde", "OE", "oe", "endash", "emdash", "quotedblleft", "quotedblright",
	"quoteleft", "quoteright", "divide", "lozenge", "ydieresis", "Ydieresis",
	"fraction", "currency", "guilsinglleft", "guilsinglright", "fi", "fl",
	"daggerdbl", "periodcentered", "quotesinglbase", "quotedblbase",
	"perthousand", "Acircumflex", "Ecircumflex", "Aacute", "Edieresis",
	"Egrave", "Iacute", "Icircumflex", "Idieresis", "Igrave", "Oacute",
	"Ocircumflex", "apple", "Ograve", "Uacute", "Ucircumflex", "Ugrave",
	"dotlessi", "circumflex", "tilde", "macron", "breve", "dotaccent", "ring",
	"cedilla", "hungarumlaut", "ogonek", "caron", "Lslash", "lslash", "Scaron",
	"scaron", "Zcaron", "zcaron", "brokenbar", "Eth", "eth", "Yacute",
	"yacute", "Thorn", "thorn", "minus", "multiply", "onesuperior",
	"twosuperior", "threesuperior", "onehalf", "onequarter", "threequarters",
	"franc", "Gbreve", "gbreve", "Idotaccent", "Scedilla", "scedilla",
	"Cacute", "cacute", "Ccaron", "ccaron", "dcroat",
}
