package feature

import (
	"regexp"
)

// Naming conventions with structural content (an embedded index or marker)
// are fixed patterns; the plain suffix families live in Config and may be
// extended by clients.
var (
	ssPattern   = regexp.MustCompile(`^(.+)\.ss(\d{2})$`)
	caltPattern = regexp.MustCompile(`^(.+)\.(calt|alt)(\d+)?$`)
	dligPattern = regexp.MustCompile(`^(.+)\.dlig$`)
)

// SuffixRule associates glyph name suffixes with a feature tag: a glyph
// "A.sc" is the 'smcp' variant of glyph "A". Suffixes are given without the
// leading dot.
type SuffixRule struct {
	Tag      string
	Suffixes []string
}

// Config tunes the naming conventions the classifier recognizes. The zero
// value recognizes nothing; clients start from DefaultConfig and modify it.
//
// Config is read-only during processing and may be shared between
// goroutines.
type Config struct {
	// SuffixRules are evaluated in order; the first matching suffix of a
	// family wins for that family's tag.
	SuffixRules []SuffixRule
	// LigatureAliases maps conventional ligature glyph names without
	// underscores to their component sequences.
	LigatureAliases map[string][]string
	// Discretionary lists component sequences (joined by underscores) whose
	// ligatures belong into 'dlig' rather than 'liga'.
	Discretionary map[string]bool
	// MarkPatterns classify glyphs as combining marks by name. Patterns are
	// matched against the lowercased glyph name and carry their own anchors.
	MarkPatterns []*regexp.Regexp
	// LabelTemplate is the default UI label for stylistic sets, with the set
	// index as printf argument.
	LabelTemplate string
	// MaxStylisticSets bounds the ssNN indices the classifier accepts.
	// OpenType registers ss01 through ss20.
	MaxStylisticSets int
}

// DefaultConfig returns the conventions in widespread use: the suffix
// families of the Adobe naming recommendations, the standard f-ligature
// names, and mark names from the combining diacritics block.
func DefaultConfig() *Config {
	return &Config{
		SuffixRules: []SuffixRule{
			{Tag: "smcp", Suffixes: []string{"sc", "smallcap"}},
			{Tag: "onum", Suffixes: []string{"oldstyle", "onum"}},
			{Tag: "lnum", Suffixes: []string{"lining", "lnum"}},
			{Tag: "tnum", Suffixes: []string{"tabular", "tnum"}},
			{Tag: "pnum", Suffixes: []string{"proportional", "pnum"}},
			{Tag: "swsh", Suffixes: []string{"swsh", "swash"}},
		},
		LigatureAliases: map[string][]string{
			"fi":  {"f", "i"},
			"fl":  {"f", "l"},
			"ff":  {"f", "f"},
			"ffi": {"f", "f", "i"},
			"ffl": {"f", "f", "l"},
		},
		Discretionary: map[string]bool{
			"c_t": true,
			"s_t": true,
			"T_h": true,
		},
		MarkPatterns: []*regexp.Regexp{
			regexp.MustCompile(`^.*comb$`),
			regexp.MustCompile(`^.*cmb$`),
			regexp.MustCompile(`^(grave|acute|circumflex|tilde|macron|breve|dotaccent|dieresis|ring|cedilla|hungarumlaut|ogonek|caron)$`),
			regexp.MustCompile(`^uni03[0-6][0-9a-f]$`),
		},
		LabelTemplate:    "Stylistic Set %d",
		MaxStylisticSets: 20,
	}
}
