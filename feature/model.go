package feature

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
)

// Role tells how a glyph participates in a feature: as a variant replacing
// its base glyph, as a ligature replacing a component sequence, and so on.
type Role uint8

const (
	VariantRole   Role = iota // named variant substituting a base glyph
	LigatureRole              // glyph substituting a component sequence
	StylisticRole             // variant within a numbered stylistic set
	ContextualRole
)

func (r Role) String() string {
	switch r {
	case VariantRole:
		return "variant"
	case LigatureRole:
		return "ligature"
	case StylisticRole:
		return "stylistic"
	case ContextualRole:
		return "contextual"
	}
	return fmt.Sprintf("role(%d)", r)
}

// Classification is a single feature candidacy of a glyph name, as found by
// Classify. A name may classify more than one way; each way is one
// Classification.
//
// Base and Components are glyph names, untouched by any font inventory; the
// Builder resolves them to glyphs and discards candidacies that do not hold
// up.
type Classification struct {
	Tag        string // OpenType feature tag ("smcp", "liga", "ss01", …)
	Role       Role
	Base       string   // base glyph name for variants
	Components []string // component names for ligature candidates
	Index      int      // stylistic set index, 1-based; 0 otherwise
	GroupKey   string   // groups rules within a tag
}

// GlyphPair is a resolved single substitution: the variant glyph stands in
// for its base glyph when the feature is active.
type GlyphPair struct {
	Base, Variant         ot.GlyphIndex
	BaseName, VariantName string
}

// LigatureRule is a resolved ligature substitution. Components holds the
// full sequence, including the first glyph.
type LigatureRule struct {
	Components   []ot.GlyphIndex
	Names        []string
	Ligature     ot.GlyphIndex
	LigatureName string
}

// FeatureGroup collects the substitution rules of one feature tag, or of
// one sub-group within a tag: ligature features carry one group per
// component sequence, contextual alternates one per context marker, plain
// suffix families a single group.
type FeatureGroup struct {
	Tag       string
	Key       string // sub-group discriminator within the tag
	Index     int    // stylistic set index; 0 for other features
	Pairs     []GlyphPair
	Ligatures []LigatureRule
	Orphans   []string // variant glyphs whose base glyph is missing
}

// IsEmpty is true when the group carries no substitution rule.
func (g *FeatureGroup) IsEmpty() bool {
	return g == nil || (len(g.Pairs) == 0 && len(g.Ligatures) == 0)
}

// RuleCount returns the number of substitution rules in the group.
func (g *FeatureGroup) RuleCount() int {
	if g == nil {
		return 0
	}
	return len(g.Pairs) + len(g.Ligatures)
}

// FeatureSet is an ordered collection of feature groups, keyed by feature
// tag. Iteration order is the lexicographic tag order, which is also the
// order the OpenType feature list requires.
type FeatureSet struct {
	groups *treemap.Map // tag → []*FeatureGroup
}

// NewFeatureSet creates an empty feature set.
func NewFeatureSet() *FeatureSet {
	return &FeatureSet{groups: treemap.NewWithStringComparator()}
}

// Add appends group g to the groups of its tag.
func (fs *FeatureSet) Add(g *FeatureGroup) {
	if g == nil {
		return
	}
	var list []*FeatureGroup
	if v, ok := fs.groups.Get(g.Tag); ok {
		list = v.([]*FeatureGroup)
	}
	fs.groups.Put(g.Tag, append(list, g))
}

// Groups returns the groups registered for a feature tag, in insertion
// order. It returns nil for tags not in the set.
func (fs *FeatureSet) Groups(tag string) []*FeatureGroup {
	if fs == nil {
		return nil
	}
	if v, ok := fs.groups.Get(tag); ok {
		return v.([]*FeatureGroup)
	}
	return nil
}

// Tags returns all feature tags of the set in lexicographic order.
func (fs *FeatureSet) Tags() []string {
	if fs == nil {
		return nil
	}
	keys := fs.groups.Keys()
	tags := make([]string, len(keys))
	for i, k := range keys {
		tags[i] = k.(string)
	}
	return tags
}

// Each visits every tag of the set in lexicographic order.
func (fs *FeatureSet) Each(visit func(tag string, groups []*FeatureGroup)) {
	if fs == nil {
		return
	}
	fs.groups.Each(func(k, v interface{}) {
		visit(k.(string), v.([]*FeatureGroup))
	})
}

// Len returns the number of feature tags in the set.
func (fs *FeatureSet) Len() int {
	if fs == nil {
		return 0
	}
	return fs.groups.Size()
}

// RuleCount returns the total number of substitution rules over all tags.
func (fs *FeatureSet) RuleCount() int {
	n := 0
	fs.Each(func(tag string, groups []*FeatureGroup) {
		for _, g := range groups {
			n += g.RuleCount()
		}
	})
	return n
}

// --- Labels ----------------------------------------------------------------

// LabelSource tells where a stylistic set label came from. Higher values
// take precedence when labels compete.
type LabelSource uint8

const (
	DefaultLabel  LabelSource = iota // generated from the label template
	ExistingLabel                    // read from the font's name table
	UserLabel                        // supplied on the command line
)

func (src LabelSource) String() string {
	switch src {
	case DefaultLabel:
		return "default"
	case ExistingLabel:
		return "existing"
	case UserLabel:
		return "user"
	}
	return fmt.Sprintf("source(%d)", src)
}

// Label is the UI name of a stylistic set, to be referenced from the
// feature's FeatureParams block. NameID is 0 until the label has been
// written to (or found in) a name table.
type Label struct {
	Tag    string
	Index  int
	Text   string
	Source LabelSource
	NameID uint16
}

// --- Audit findings --------------------------------------------------------

// FindingKind classifies audit findings.
type FindingKind uint8

const (
	NoFinding         FindingKind = iota
	MissingLabel                  // stylistic set without a FeatureParams block
	OrphanLabel                   // FeatureParams points at a missing name record
	MismatchedParams              // FeatureParams block malformed
	DuplicateIndex                // two labels claim the same (tag, index)
	EmptyGroup                    // feature without an effective substitution
	StructuralAnomaly             // GSUB structure unreadable in part
)

func (k FindingKind) String() string {
	switch k {
	case NoFinding:
		return "ok"
	case MissingLabel:
		return "missing-label"
	case OrphanLabel:
		return "orphan-label"
	case MismatchedParams:
		return "mismatched-params"
	case DuplicateIndex:
		return "duplicate-index"
	case EmptyGroup:
		return "empty-group"
	case StructuralAnomaly:
		return "structural-anomaly"
	}
	return fmt.Sprintf("finding(%d)", k)
}

// RepairAction is the modification an audit finding proposes. Repairs are
// opt-in: the audit only ever proposes, clients decide (see Options).
type RepairAction uint8

const (
	NoRepair     RepairAction = iota
	AddParams                 // write the missing FeatureParams block
	RewriteLabel              // replace the label text
)

func (r RepairAction) String() string {
	switch r {
	case NoRepair:
		return "none"
	case AddParams:
		return "add-params"
	case RewriteLabel:
		return "rewrite-label"
	}
	return fmt.Sprintf("repair(%d)", r)
}

// AuditFinding is a single audit observation about a font's feature
// declarations. Findings are reports, never errors: a font with findings
// still processes to completion.
type AuditFinding struct {
	Kind    FindingKind
	Tag     string
	Index   int // stylistic set index when applicable
	Message string
	Repair  RepairAction
}

func (f AuditFinding) String() string {
	if f.Tag == "" {
		return fmt.Sprintf("[%s] %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Kind, f.Tag, f.Message)
}

// ParamsState is the audit state of a feature's FeatureParams block.
type ParamsState uint8

const (
	ParamsAbsent ParamsState = iota
	ParamsValid
	ParamsInvalid
)

func (ps ParamsState) String() string {
	switch ps {
	case ParamsAbsent:
		return "absent"
	case ParamsValid:
		return "valid"
	case ParamsInvalid:
		return "invalid"
	}
	return fmt.Sprintf("params(%d)", ps)
}
