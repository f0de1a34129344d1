package feature

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Classify maps a glyph name to its feature candidacies, using nothing but
// the name and the conventions in cfg. A name may classify several ways at
// once ("fi.sc" is a ligature candidate and a small-caps variant); every
// matching convention contributes a Classification, none suppresses
// another. Unconventional names yield nil.
//
// Classifications are candidacies, not decisions: base and component names
// are reported as found in the name, whether or not the font has such
// glyphs. Validation against a font's inventory is the Builder's job.
func Classify(name string, cfg *Config) []Classification {
	var cls []Classification
	if name == "" || cfg == nil {
		return nil
	}
	if comps, ok := ligatureCandidate(name, cfg); ok {
		key := strings.Join(comps, "_")
		tag := "liga"
		if dligPattern.MatchString(name) || cfg.Discretionary[key] {
			tag = "dlig"
		}
		cls = append(cls, Classification{
			Tag:        tag,
			Role:       LigatureRole,
			Components: comps,
			GroupKey:   key,
		})
	}
	if m := ssPattern.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[2])
		if n >= 1 && n <= cfg.MaxStylisticSets {
			cls = append(cls, Classification{
				Tag:      fmt.Sprintf("ss%02d", n),
				Role:     StylisticRole,
				Base:     m[1],
				Index:    n,
				GroupKey: m[2],
			})
		}
	}
	for _, rule := range cfg.SuffixRules {
		for _, sfx := range rule.Suffixes {
			if base, ok := strings.CutSuffix(name, "."+sfx); ok && base != "" {
				cls = append(cls, Classification{
					Tag:  rule.Tag,
					Role: VariantRole,
					Base: base,
				})
				break
			}
		}
	}
	if m := caltPattern.FindStringSubmatch(name); m != nil {
		cls = append(cls, Classification{
			Tag:      "calt",
			Role:     ContextualRole,
			Base:     m[1],
			GroupKey: m[2] + m[3],
		})
	}
	return cls
}

// ligatureCandidate derives a component name sequence from a glyph name:
// from the underscore-joined base of names like "f_f_i.dlig", from the
// alias table for conventional names like "ffi", or by splitting a
// two-letter alphabetic base. The sequence is a candidate only; components
// may not exist in any given font.
func ligatureCandidate(name string, cfg *Config) ([]string, bool) {
	base := nameBase(name)
	if base == "" {
		return nil, false
	}
	if strings.ContainsRune(base, '_') {
		parts := strings.Split(base, "_")
		for _, p := range parts {
			if p == "" {
				return nil, false
			}
		}
		return parts, true
	}
	if comps, ok := cfg.LigatureAliases[base]; ok {
		return append([]string{}, comps...), true
	}
	if len(base) == 2 && isAlpha(base) {
		return []string{base[:1], base[1:]}, true
	}
	return nil, false
}

// nameBase returns the glyph name up to the first dot.
func nameBase(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// IsMark decides whether a glyph is a combining mark, for GDEF glyph class
// assignment. The decision is two-tiered: a glyph mapped from a code-point
// of Unicode category Mn, Mc or Me is a mark ("unicode"); otherwise the
// lowercased name is matched against the configured mark name patterns
// ("pattern"). The runes argument holds the code-points the font's cmap
// maps to the glyph; it may be empty.
func IsMark(name string, runes []rune, cfg *Config) (bool, string) {
	for _, r := range runes {
		if unicode.In(r, unicode.Mn, unicode.Mc, unicode.Me) {
			return true, "unicode"
		}
	}
	if cfg == nil {
		return false, ""
	}
	lower := strings.ToLower(name)
	for _, p := range cfg.MarkPatterns {
		if p.MatchString(lower) {
			return true, "pattern"
		}
	}
	return false, ""
}
