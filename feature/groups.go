package feature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/derekparker/trie"
	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otquery"
	"golang.org/x/text/unicode/runenames"
)

// Inventory is a font's glyph repertoire, prepared for name-driven feature
// building: glyph names in glyph order, a name index, and the reverse
// character map. An Inventory is immutable after creation and may be shared
// between goroutines.
type Inventory struct {
	names   []string // glyph names in glyph ID order
	byName  map[string]ot.GlyphIndex
	index   *trie.Trie // prefix trie over all glyph names
	revCMap map[ot.GlyphIndex][]rune
	cmap    ot.CMapGlyphIndex // may be nil for fonts without usable cmap
}

// NewInventory prepares the glyph inventory of a font. Fonts without glyph
// names (post table format 3, or no post table at all) cannot be processed
// by name-driven detection; NewInventory rejects them with an error of
// category EMISSING.
func NewInventory(otf *ot.Font) (*Inventory, error) {
	names := otquery.GlyphNames(otf)
	if len(names) == 0 {
		return nil, core.Error(core.EMISSING, "font carries no glyph names; name-driven feature detection is impossible")
	}
	inv := &Inventory{
		names:   names,
		byName:  make(map[string]ot.GlyphIndex, len(names)),
		index:   trie.New(),
		revCMap: otquery.ReverseCMap(otf),
	}
	if otf.CMap != nil {
		inv.cmap = otf.CMap.GlyphIndexMap
	}
	for gid, name := range names {
		if name == "" {
			continue
		}
		if _, dup := inv.byName[name]; dup {
			tracer().Infof("glyph name %q occurs twice, keeping glyph %d", name, inv.byName[name])
			continue
		}
		inv.byName[name] = ot.GlyphIndex(gid)
		inv.index.Add(name, ot.GlyphIndex(gid))
	}
	tracer().Debugf("inventory of %d glyphs, %d cmap-reachable", len(names), len(inv.revCMap))
	return inv, nil
}

// NumGlyphs returns the number of glyphs in the font.
func (inv *Inventory) NumGlyphs() int {
	return len(inv.names)
}

// GlyphName returns the name of a glyph, or "" for out-of-range IDs.
func (inv *Inventory) GlyphName(gid ot.GlyphIndex) string {
	if int(gid) >= len(inv.names) {
		return ""
	}
	return inv.names[gid]
}

// Glyph looks up a glyph by name.
func (inv *Inventory) Glyph(name string) (ot.GlyphIndex, bool) {
	gid, ok := inv.byName[name]
	return gid, ok
}

// Names returns all glyph names in glyph ID order. Callers must not modify
// the returned slice.
func (inv *Inventory) Names() []string {
	return inv.names
}

// NamesWithPrefix returns all glyph names starting with prefix, in
// lexicographic order.
func (inv *Inventory) NamesWithPrefix(prefix string) []string {
	if !inv.index.HasKeysWithPrefix(prefix) {
		return nil
	}
	names := inv.index.PrefixSearch(prefix)
	sort.Strings(names)
	return names
}

// Runes returns the code-points the font's cmap maps to a glyph.
func (inv *Inventory) Runes(gid ot.GlyphIndex) []rune {
	return inv.revCMap[gid]
}

// Mapped is true when the glyph is reachable through the cmap.
func (inv *Inventory) Mapped(gid ot.GlyphIndex) bool {
	return len(inv.revCMap[gid]) > 0
}

func (inv *Inventory) lookupRune(r rune) ot.GlyphIndex {
	if inv.cmap == nil {
		return 0
	}
	return inv.cmap.Lookup(r)
}

// --- Component resolution --------------------------------------------------

// resolveComponent resolves a single component name to a glyph. Names of
// the form "uniXXXX" and "uXXXX(XX)" denote code-points and resolve through
// the cmap to whatever glyph the font maps them to; all other names must
// exist verbatim in the glyph inventory.
func (inv *Inventory) resolveComponent(part string) (ot.GlyphIndex, string, bool) {
	if strings.HasPrefix(part, "uni") && len(part) >= 7 {
		cp, err := strconv.ParseUint(part[3:7], 16, 32)
		if err != nil {
			return 0, "", false
		}
		return inv.resolveRune(rune(cp))
	}
	if len(part) >= 5 && len(part) <= 7 && strings.HasPrefix(part, "u") {
		if cp, err := strconv.ParseUint(part[1:], 16, 32); err == nil {
			return inv.resolveRune(rune(cp))
		}
	}
	if gid, ok := inv.byName[part]; ok {
		return gid, part, true
	}
	return 0, "", false
}

func (inv *Inventory) resolveRune(r rune) (ot.GlyphIndex, string, bool) {
	gid := inv.lookupRune(r)
	if gid == 0 {
		return 0, "", false
	}
	return gid, inv.GlyphName(gid), true
}

// resolveComponents resolves a candidate component sequence against the
// inventory. The sequence is rejected when a component stays unresolved,
// when fewer than two components remain, or when less than half of them are
// reachable through the cmap.
func (inv *Inventory) resolveComponents(parts []string) ([]ot.GlyphIndex, []string, bool) {
	glyphs := make([]ot.GlyphIndex, 0, len(parts))
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		gid, name, ok := inv.resolveComponent(part)
		if !ok {
			return nil, nil, false
		}
		glyphs = append(glyphs, gid)
		names = append(names, name)
	}
	if len(glyphs) < 2 {
		return nil, nil, false
	}
	mapped := 0
	for _, gid := range glyphs {
		if inv.Mapped(gid) {
			mapped++
		}
	}
	if 2*mapped < len(glyphs) {
		return nil, nil, false
	}
	return glyphs, names, true
}

// segment splits a name into a sequence of existing glyph names, trying
// longer prefixes first and backtracking on dead ends. It is the fallback
// for alias names whose canonical decomposition does not resolve, e.g.
// "ffi" in a font that carries "ff" and "i" but no single "f". The name
// itself is in the inventory, so the whole-name split is not a candidate.
func (inv *Inventory) segment(name string) ([]string, bool) {
	var parts []string
	for end := len(name) - 1; end >= 1; end-- {
		prefix := name[:end]
		if _, ok := inv.index.Find(prefix); !ok {
			continue
		}
		parts = append(parts, prefix)
		if inv.segmentFrom(name[end:], &parts) {
			return parts, true
		}
		parts = parts[:0]
	}
	return nil, false
}

func (inv *Inventory) segmentFrom(rest string, parts *[]string) bool {
	if rest == "" {
		return true
	}
	if !inv.index.HasKeysWithPrefix(rest[:1]) {
		return false
	}
	for end := len(rest); end >= 1; end-- {
		prefix := rest[:end]
		if _, ok := inv.index.Find(prefix); !ok {
			continue
		}
		*parts = append(*parts, prefix)
		if inv.segmentFrom(rest[end:], parts) {
			return true
		}
		*parts = (*parts)[:len(*parts)-1]
	}
	return false
}

// precomposed reports whether a glyph is mapped from a precomposed Unicode
// ligature character, such as U+FB01 LATIN SMALL LIGATURE FI. Inventing a
// ligature rule from the bare name of such a glyph would be redundant with
// its encoding.
func (inv *Inventory) precomposed(gid ot.GlyphIndex) bool {
	for _, r := range inv.revCMap[gid] {
		if strings.Contains(runenames.Name(r), "LIGATURE") {
			return true
		}
	}
	return false
}

// --- Building feature groups -----------------------------------------------

// Build classifies every glyph name of the inventory and aggregates the
// candidacies that hold up into ordered feature groups. Candidacies fail
// when a variant's base glyph or a ligature's components are not in the
// font; failures are reported as warnings, they never abort the build.
//
// Group and rule order is fully determined by the glyph names: ligature
// groups by descending component count, then alphabetically; pairs
// alphabetically by base name. Two runs over the same glyph set produce
// identical feature sets.
func Build(inv *Inventory, cfg *Config) (*FeatureSet, []string) {
	b := &builder{
		inv:    inv,
		cfg:    cfg,
		groups: make(map[string]map[string]*FeatureGroup),
	}
	for gid, name := range inv.names {
		if name == "" {
			continue
		}
		if ot.GlyphIndex(gid) != inv.byName[name] {
			continue // duplicate name, already reported by NewInventory
		}
		for _, c := range Classify(name, cfg) {
			b.dispatch(ot.GlyphIndex(gid), name, c)
		}
	}
	return b.finish()
}

type builder struct {
	inv      *Inventory
	cfg      *Config
	groups   map[string]map[string]*FeatureGroup // tag → key → group
	warnings []string
}

func (b *builder) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	tracer().Infof(msg)
	b.warnings = append(b.warnings, msg)
}

func (b *builder) group(tag, key string, index int) *FeatureGroup {
	byKey := b.groups[tag]
	if byKey == nil {
		byKey = make(map[string]*FeatureGroup)
		b.groups[tag] = byKey
	}
	g := byKey[key]
	if g == nil {
		g = &FeatureGroup{Tag: tag, Key: key, Index: index}
		byKey[key] = g
	}
	return g
}

func (b *builder) dispatch(gid ot.GlyphIndex, name string, c Classification) {
	switch c.Role {
	case LigatureRole:
		b.addLigature(gid, name, c)
	case VariantRole, StylisticRole, ContextualRole:
		b.addVariant(gid, name, c)
	}
}

// addVariant pairs a variant glyph with its base glyph. A variant without
// its base still joins the group as an orphan, so that the audit can report
// it, but it yields no substitution rule.
func (b *builder) addVariant(gid ot.GlyphIndex, name string, c Classification) {
	key := ""
	if c.Role == StylisticRole || c.Role == ContextualRole {
		key = c.GroupKey
	}
	g := b.group(c.Tag, key, c.Index)
	base, ok := b.inv.Glyph(c.Base)
	if !ok {
		b.warn("variant %q has no base glyph %q in this font", name, c.Base)
		g.Orphans = append(g.Orphans, name)
		return
	}
	g.Pairs = append(g.Pairs, GlyphPair{
		Base: base, Variant: gid,
		BaseName: c.Base, VariantName: name,
	})
}

// addLigature validates a ligature candidacy. Candidates without
// underscores in their name (aliases, two-letter names) are dropped when
// the glyph is a precomposed Unicode ligature character; when their
// canonical decomposition fails, the name is re-segmented over the real
// glyph inventory before giving up.
func (b *builder) addLigature(gid ot.GlyphIndex, name string, c Classification) {
	aliased := !strings.ContainsRune(nameBase(name), '_')
	if aliased && b.inv.precomposed(gid) {
		tracer().Debugf("glyph %q is a precomposed ligature character, no rule generated", name)
		return
	}
	glyphs, names, ok := b.inv.resolveComponents(c.Components)
	if !ok && aliased {
		if parts, segmented := b.inv.segment(nameBase(name)); segmented {
			glyphs, names, ok = b.inv.resolveComponents(parts)
		}
	}
	if !ok {
		b.warn("ligature %q: components %v do not resolve in this font", name, c.Components)
		return
	}
	key := strings.Join(names, "_")
	g := b.group(c.Tag, key, 0)
	g.Ligatures = append(g.Ligatures, LigatureRule{
		Components:   glyphs,
		Names:        names,
		Ligature:     gid,
		LigatureName: name,
	})
}

// finish sorts groups and rules into their canonical order and drops
// duplicates: within a group, each base glyph substitutes at most once,
// each component sequence forms at most one ligature.
func (b *builder) finish() (*FeatureSet, []string) {
	fs := NewFeatureSet()
	tags := make([]string, 0, len(b.groups))
	for tag := range b.groups {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		byKey := b.groups[tag]
		keys := make([]string, 0, len(byKey))
		for key := range byKey {
			keys = append(keys, key)
		}
		ligTag := tag == "liga" || tag == "dlig"
		sort.Slice(keys, func(i, j int) bool {
			if ligTag {
				if ci, cj := componentCount(keys[i]), componentCount(keys[j]); ci != cj {
					return ci > cj // longer sequences first
				}
			}
			return keys[i] < keys[j]
		})
		for _, key := range keys {
			g := byKey[key]
			b.sortAndDedup(g)
			if g.IsEmpty() && len(g.Orphans) == 0 {
				continue
			}
			fs.Add(g)
		}
	}
	return fs, b.warnings
}

func (b *builder) sortAndDedup(g *FeatureGroup) {
	sort.Slice(g.Pairs, func(i, j int) bool {
		if g.Pairs[i].BaseName != g.Pairs[j].BaseName {
			return g.Pairs[i].BaseName < g.Pairs[j].BaseName
		}
		return g.Pairs[i].VariantName < g.Pairs[j].VariantName
	})
	seenBase := make(map[ot.GlyphIndex]bool, len(g.Pairs))
	pairs := g.Pairs[:0]
	for _, p := range g.Pairs {
		if seenBase[p.Base] {
			b.warn("feature %s: conflicting variants for %q, keeping %q", g.Tag, p.BaseName, pairs[len(pairs)-1].VariantName)
			continue
		}
		seenBase[p.Base] = true
		pairs = append(pairs, p)
	}
	g.Pairs = pairs
	sort.Slice(g.Ligatures, func(i, j int) bool {
		return g.Ligatures[i].LigatureName < g.Ligatures[j].LigatureName
	})
	if len(g.Ligatures) > 1 {
		for _, l := range g.Ligatures[1:] {
			b.warn("feature %s: both %q and %q ligate %s, keeping %q",
				g.Tag, g.Ligatures[0].LigatureName, l.LigatureName,
				strings.Join(l.Names, " "), g.Ligatures[0].LigatureName)
		}
		g.Ligatures = g.Ligatures[:1]
	}
	sort.Strings(g.Orphans)
}

func componentCount(key string) int {
	if key == "" {
		return 0
	}
	return strings.Count(key, "_") + 1
}

// --- Marks -----------------------------------------------------------------

// Marks returns the combining-mark glyphs of a font, with the detection
// tier ("unicode" or "pattern") per glyph. The result feeds GDEF glyph
// class assignment.
func Marks(inv *Inventory, cfg *Config) map[ot.GlyphIndex]string {
	marks := make(map[ot.GlyphIndex]string)
	for gid, name := range inv.names {
		if name == "" {
			continue
		}
		if ok, tier := IsMark(name, inv.revCMap[ot.GlyphIndex(gid)], cfg); ok {
			marks[ot.GlyphIndex(gid)] = tier
		}
	}
	return marks
}
