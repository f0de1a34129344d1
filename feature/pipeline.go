package feature

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
)

// Options select the work a pipeline run performs. The zero value detects
// features and reports on them, without producing output bytes.
type Options struct {
	Audit            bool     // restrict writes to repairs, never add new rules
	Apply            bool     // write the merged font back to its file
	DryRun           bool     // full pipeline, including serialization, minus the write
	AddMissingParams bool     // authorize the add-params repair for bare stylistic sets
	Verify           bool     // shape probe text against the rewritten font
	UserLabels       []string // stylistic set labels as given on the command line, "N,Text"
	Config           *Config  // nil selects DefaultConfig
}

// Result is the outcome of one pipeline run over one font.
type Result struct {
	Path        string      // font file path, set by ProcessFont
	Proposed    *FeatureSet // every substitution detected from glyph names
	Delta       *FeatureSet // proposed rules the font does not carry yet
	Existing    *Extraction // decoded GSUB state of the input font
	Findings    []AuditFinding
	Labels      map[string]Label // stylistic set labels by tag, all sources resolved
	Warnings    []string
	FeatureText string         // feature file rendition of the full proposal
	RulesAdded  int            // substitution rules encoded into the output
	UpToDate    bool           // nothing to write, the font already has it all
	Applied     bool           // output is meant to be written back
	Output      []byte         // rewritten font, also produced in dry-run
	Checks      []VerifyResult // probe shaping results when verification ran
}

// Process runs the feature pipeline over raw font data: detect candidate
// substitutions from glyph names, extract what the font already carries,
// audit the existing declarations, and merge the difference. Without Apply
// or DryRun the run stops after the report; otherwise the rewritten font
// lands in Result.Output, ready to be saved.
//
// Rules the font already has are never duplicated, so running the pipeline
// over its own output proposes nothing and reports the font as up to date.
func Process(data []byte, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	lm := NewLabelManager(cfg)
	if err := lm.AddUserLabels(opts.UserLabels); err != nil {
		return nil, err
	}
	otf, err := ot.Parse(data)
	if err != nil {
		return nil, core.Error(core.EINVALID, "unreadable font: %v", err)
	}
	inv, err := NewInventory(otf)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	res.Proposed, res.Warnings = Build(inv, cfg)
	res.Existing = Extract(otf)
	var notes []string
	res.Delta, notes = diff(res.Proposed, res.Existing)
	res.Warnings = append(res.Warnings, notes...)
	res.Findings = Audit(res.Existing, AuditOptions{
		AddMissingParams: opts.AddMissingParams,
		Labels:           lm,
	})
	var write map[string]Label
	res.Labels, write, notes = resolveLabels(res, lm, opts.Audit)
	res.Warnings = append(res.Warnings, notes...)
	res.FeatureText = RenderFeatureFile(res.Proposed, res.Labels)
	tracer().Infof("detected %d rule(s) over %d feature(s), %d not yet in the font",
		res.Proposed.RuleCount(), res.Proposed.Len(), res.Delta.RuleCount())
	if !opts.Apply && !opts.DryRun {
		return res, nil
	}
	if err := encode(otf, res, write, opts); err != nil {
		return res, err
	}
	if opts.Verify && !opts.Audit && res.Output != nil {
		if err := verifyResult(res, inv); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ProcessFont runs the pipeline over a font file. With Apply set the
// rewritten font replaces the file; the write is atomic, an interrupted run
// leaves the original untouched.
func ProcessFont(path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Error(core.EMISSING, "cannot read font: %v", err)
	}
	res, err := Process(data, opts)
	if res != nil {
		res.Path = path
	}
	if err != nil {
		return res, err
	}
	if res.Applied && res.Output != nil {
		if err := otedit.SaveFont(res.Output, path); err != nil {
			return res, core.Error(core.EWRITE, "cannot save font: %v", err)
		}
		tracer().Infof("font written to %s", path)
	}
	return res, nil
}

// diff returns the proposed rules the font does not already carry. A rule
// whose input is already substituted, but to a different output glyph, is
// dropped with a warning rather than stacked on top.
func diff(proposed *FeatureSet, ex *Extraction) (*FeatureSet, []string) {
	delta := NewFeatureSet()
	var notes []string
	proposed.Each(func(tag string, groups []*FeatureGroup) {
		for _, g := range groups {
			ng := &FeatureGroup{Tag: g.Tag, Key: g.Key, Index: g.Index}
			for _, p := range g.Pairs {
				to, present := ex.singleTarget(tag, p.Base)
				switch {
				case !present:
					ng.Pairs = append(ng.Pairs, p)
				case to != p.Variant:
					notes = append(notes, fmt.Sprintf("%s already has a rule for %s, skipping %s -> %s",
						tag, p.BaseName, p.BaseName, p.VariantName))
				}
			}
			for _, l := range g.Ligatures {
				lig, present := ex.ligatureTarget(tag, l.Components)
				switch {
				case !present:
					ng.Ligatures = append(ng.Ligatures, l)
				case lig != l.Ligature:
					notes = append(notes, fmt.Sprintf("%s already has a ligature for %s, skipping %s",
						tag, strings.Join(l.Names, " "), l.LigatureName))
				}
			}
			if !ng.IsEmpty() {
				delta.Add(ng)
			}
		}
	})
	return delta, notes
}

// resolveLabels determines the label of every stylistic set in sight, and
// the subset of labels the encode step may write. The write scope is
// deliberately narrow: params blocks are only created for sets that receive
// new rules or an authorized repair, and existing label records are only
// rewritten on explicit user request. In audit mode new rules are off the
// table, so their labels stay out of the write scope as well.
func resolveLabels(res *Result, lm *LabelManager, auditOnly bool) (all, write map[string]Label, notes []string) {
	all = make(map[string]Label)
	write = make(map[string]Label)
	indices := make(map[int]bool)
	res.Proposed.Each(func(tag string, groups []*FeatureGroup) {
		for _, g := range groups {
			if g.Index > 0 {
				indices[g.Index] = true
			}
		}
	})
	for i := range res.Existing.Features {
		if n := res.Existing.Features[i].Index; n > 0 {
			indices[n] = true
		}
	}
	order := make([]int, 0, len(indices))
	for n := range indices {
		order = append(order, n)
	}
	sort.Ints(order)
	for _, n := range order {
		tag := fmt.Sprintf("ss%02d", n)
		exf := res.Existing.Feature(tag)
		lbl := lm.Resolve(n, existingLabelOf(res.Existing, tag))
		all[tag] = lbl
		hasDelta := !auditOnly && deltaHasRules(res.Delta, tag)
		paramsWritable := exf == nil || exf.Params == ParamsAbsent
		switch {
		case hasDelta && paramsWritable:
			write[tag] = lbl
		case repairFor(res.Findings, tag) != NoRepair:
			write[tag] = lbl
		case lm.HasUserLabel(n) && exf != nil && exf.NameID != 0:
			write[tag] = lbl // rewrite the record in place
		case lm.HasUserLabel(n):
			switch {
			case exf == nil && !hasDelta:
				notes = append(notes, fmt.Sprintf("user label for stylistic set %d matches no feature of this font", n))
			case exf != nil && exf.Params == ParamsAbsent:
				notes = append(notes, fmt.Sprintf("stylistic set %d carries no params block, label not written; rerun with -add-missing-params", n))
			case exf != nil:
				notes = append(notes, fmt.Sprintf("params of stylistic set %d cannot be relabeled", n))
			}
		}
	}
	var extra []int
	for n := range lm.user {
		if !indices[n] {
			extra = append(extra, n)
		}
	}
	sort.Ints(extra)
	for _, n := range extra {
		notes = append(notes, fmt.Sprintf("user label for stylistic set %d matches no feature of this font", n))
	}
	return all, write, notes
}

// existingLabelOf reads the label state of a stylistic set feature, as far
// as the font has one referencing a name record. Nil otherwise.
func existingLabelOf(ex *Extraction, tag string) *Label {
	f := ex.Feature(tag)
	if f == nil || f.NameID == 0 {
		return nil
	}
	return &Label{Tag: tag, Index: f.Index, Text: f.Label, Source: ExistingLabel, NameID: f.NameID}
}

func deltaHasRules(delta *FeatureSet, tag string) bool {
	for _, g := range delta.Groups(tag) {
		if !g.IsEmpty() {
			return true
		}
	}
	return false
}

func repairFor(findings []AuditFinding, tag string) RepairAction {
	for _, f := range findings {
		if f.Tag == tag && f.Repair != NoRepair {
			return f.Repair
		}
	}
	return NoRepair
}

// encode merges the delta into the font's tables and serializes the result
// into res.Output, or marks the result up to date when there is nothing to
// write. Name IDs for labels in the write scope are assigned here.
func encode(otf *ot.Font, res *Result, write map[string]Label, opts Options) error {
	edit := otedit.EditName(nameTable(otf))
	if err := AssignLabelIDs(write, edit); err != nil {
		return err
	}
	for tag, lbl := range write {
		res.Labels[tag] = lbl
	}
	var specs []otedit.FeatureSpec
	if !opts.Audit {
		specs = EncodeSpecs(res.Delta, write)
	}
	specs = appendParamsRepairs(specs, res, write)
	added := 0
	for _, sp := range specs {
		added += len(sp.Singles) + len(sp.Ligatures)
	}
	replace := make(map[ot.Tag][]byte)
	if len(specs) > 0 {
		gsubBytes, warns, err := otedit.MergeGSub(otf.Layout.GSub, specs)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			return err
		}
		replace[ot.T("GSUB")] = gsubBytes
	}
	if edit.Modified() {
		nameBytes, err := edit.Encode()
		if err != nil {
			return err
		}
		replace[ot.T("name")] = nameBytes
	}
	if len(replace) == 0 {
		res.UpToDate = true
		tracer().Infof("font already carries every proposed rule")
		return nil
	}
	out, err := otedit.Serialize(otf, replace)
	if err != nil {
		return err
	}
	res.Output = out
	res.RulesAdded = added
	res.Applied = opts.Apply
	return nil
}

// appendParamsRepairs adds params-only specs for authorized add-params
// repairs whose tag is not already covered by a rule-bearing spec.
func appendParamsRepairs(specs []otedit.FeatureSpec, res *Result, write map[string]Label) []otedit.FeatureSpec {
	have := make(map[string]bool, len(specs))
	for _, sp := range specs {
		have[sp.Tag.String()] = true
	}
	for _, f := range res.Findings {
		if f.Repair != AddParams || have[f.Tag] {
			continue
		}
		lbl, ok := write[f.Tag]
		if !ok || lbl.NameID == 0 {
			continue
		}
		specs = append(specs, otedit.FeatureSpec{Tag: ot.T(f.Tag), ParamsNameID: lbl.NameID})
		have[f.Tag] = true
	}
	return specs
}

// verifyResult shapes probe text against the rewritten font and demands
// that every probed substitution fired. A failing probe blocks the write.
func verifyResult(res *Result, inv *Inventory) error {
	probes := buildProbes(res.Delta, inv)
	if len(probes) == 0 {
		res.Warnings = append(res.Warnings, "nothing to verify, no new rule is reachable from the character map")
		return nil
	}
	checks, err := Verify(res.Output, probes)
	res.Checks = checks
	if err != nil {
		return err
	}
	var failed []string
	for _, c := range checks {
		if !c.Fired {
			failed = append(failed, c.Tag)
		}
	}
	if len(failed) > 0 {
		return core.Error(core.EINTERNAL, "shaping verification failed for %s", strings.Join(failed, ", "))
	}
	tracer().Infof("verified %d feature(s) by shaping", len(checks))
	return nil
}

// buildProbes picks one new substitution per feature tag whose input glyphs
// are all reachable from the character map, and renders that input as text.
func buildProbes(delta *FeatureSet, inv *Inventory) []Probe {
	var probes []Probe
	delta.Each(func(tag string, groups []*FeatureGroup) {
		if tag == "calt" { // not encoded, nothing to probe
			return
		}
		for _, g := range groups {
			if p, ok := probeFromGroup(tag, g, inv); ok {
				probes = append(probes, p)
				return
			}
		}
	})
	return probes
}

func probeFromGroup(tag string, g *FeatureGroup, inv *Inventory) (Probe, bool) {
	for _, l := range g.Ligatures {
		if text, ok := runesFor(inv, l.Components); ok {
			return Probe{Tag: tag, Text: text, Want: l.Ligature}, true
		}
	}
	for _, p := range g.Pairs {
		if text, ok := runesFor(inv, []ot.GlyphIndex{p.Base}); ok {
			return Probe{Tag: tag, Text: text, Want: p.Variant}, true
		}
	}
	return Probe{}, false
}

func runesFor(inv *Inventory, gids []ot.GlyphIndex) (string, bool) {
	var sb strings.Builder
	for _, gid := range gids {
		rs := inv.Runes(gid)
		if len(rs) == 0 {
			return "", false
		}
		sb.WriteRune(rs[0])
	}
	return sb.String(), true
}
