package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/feature"
	"github.com/pterm/pterm"
)

// labelList collects repeated -ss arguments.
type labelList []string

func (ll *labelList) String() string {
	return strings.Join(*ll, " ")
}

func (ll *labelList) Set(arg string) error {
	*ll = append(*ll, arg)
	return nil
}

// runGenerate is the default mode: detect features from glyph names, audit
// the declarations the fonts already carry, and report or apply the
// difference.
func runGenerate(args []string) int {
	fset := flag.NewFlagSet("otfeat", flag.ContinueOnError)
	audit := fset.Bool("audit", false, "Report and repair existing features, propose no new rules")
	apply := fset.Bool("apply", false, "Write changed fonts back to their files")
	dryRun := fset.Bool("dry-run", false, "Full pipeline, including serialization, without writing")
	addParams := fset.Bool("add-missing-params", false, "Repair stylistic sets lacking a params block")
	verify := fset.Bool("verify", false, "Shape probe text against the rewritten font")
	feaFile := fset.String("fea", "", "Write the proposed rules to a feature `file`")
	tlevel := fset.String("trace", "Error", "Trace level [Debug|Info|Error]")
	var recurse bool
	fset.BoolVar(&recurse, "R", false, "Descend into subdirectories")
	fset.BoolVar(&recurse, "recursive", false, "Descend into subdirectories")
	var labels labelList
	fset.Var(&labels, "ss", "Stylistic set label \"N,Text\", repeatable")
	if err := fset.Parse(args); err != nil {
		return core.ECONFIG
	}
	setTraceLevels(*tlevel)

	// configuration errors fail the invocation before any font is touched
	if *apply && *dryRun {
		pterm.Error.Println("-apply and -dry-run exclude each other")
		return core.ECONFIG
	}
	for _, arg := range labels {
		if _, _, err := feature.ParseUserLabel(arg); err != nil {
			pterm.Error.Println(core.UserMessage(err))
			return core.ECONFIG
		}
	}
	if fset.NArg() == 0 {
		pterm.Error.Println("no fonts given")
		return core.ECONFIG
	}
	fonts := expandFontArgs(fset.Args(), recurse)
	if *feaFile != "" && len(fonts) != 1 {
		pterm.Error.Printfln("-fea needs exactly one input font, got %d", len(fonts))
		return core.ECONFIG
	}

	opts := feature.Options{
		Audit:            *audit,
		Apply:            *apply,
		DryRun:           *dryRun || (*verify && !*apply),
		AddMissingParams: *addParams,
		Verify:           *verify,
		UserLabels:       labels,
	}
	results := processAll(fonts, opts)
	for i := range results {
		reportFont(&results[i], *audit)
	}
	var feaErr error
	if *feaFile != "" && results[0].Err == nil {
		feaErr = writeFeaFile(*feaFile, results[0].Result)
	}
	summarize(results)
	if err := feature.FirstError(results); err != nil {
		return core.Code(err)
	}
	return core.Code(feaErr)
}

// fontInput is one font file to process, or the reason an argument did not
// resolve to one.
type fontInput struct {
	path string
	err  error
}

// expandFontArgs resolves command line arguments to font file paths.
// Directory arguments contribute their font files, with -R recursively.
// Resolution failures stay in the list and are reported with the per-font
// results, so one bad argument never stops the batch.
func expandFontArgs(args []string, recurse bool) []fontInput {
	var fonts []fontInput
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			if path, rerr := resolveFontArg(arg); rerr != nil {
				fonts = append(fonts, fontInput{path: arg, err: rerr})
			} else {
				fonts = append(fonts, fontInput{path: path})
			}
			continue
		}
		if !info.IsDir() {
			fonts = append(fonts, fontInput{path: arg})
			continue
		}
		n := len(fonts)
		fonts = append(fonts, dirFonts(arg, recurse)...)
		if len(fonts) == n {
			pterm.Warning.Printfln("no font files in %s", arg)
		}
	}
	return fonts
}

// dirFonts collects the font files of a directory, in lexical order.
func dirFonts(dir string, recurse bool) []fontInput {
	var fonts []fontInput
	if recurse {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				tracer().Infof("skipping %s: %v", path, err)
				return nil
			}
			if !d.IsDir() && isFontFile(d.Name()) {
				fonts = append(fonts, fontInput{path: path})
			}
			return nil
		})
		return fonts
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []fontInput{{path: dir, err: core.Error(core.EMISSING, "cannot read directory: %v", err)}}
	}
	for _, e := range entries {
		if !e.IsDir() && isFontFile(e.Name()) {
			fonts = append(fonts, fontInput{path: filepath.Join(dir, e.Name())})
		}
	}
	return fonts
}

// processAll feeds the resolvable fonts through the pipeline and merges
// argument resolution failures back in, preserving input order.
func processAll(fonts []fontInput, opts feature.Options) []feature.FontResult {
	paths := make([]string, 0, len(fonts))
	for _, f := range fonts {
		if f.err == nil {
			paths = append(paths, f.path)
		}
	}
	processed := feature.BatchProcess(context.Background(), paths, opts)
	results := make([]feature.FontResult, 0, len(fonts))
	next := 0
	for _, f := range fonts {
		if f.err != nil {
			results = append(results, feature.FontResult{Path: f.path, Err: f.err})
			continue
		}
		results = append(results, processed[next])
		next++
	}
	return results
}

// reportFont renders one font's pipeline outcome.
func reportFont(r *feature.FontResult, auditMode bool) {
	pterm.DefaultSection.Println(r.Path)
	if r.Result == nil {
		pterm.Error.Println(core.UserMessage(r.Err))
		return
	}
	res := r.Result
	for _, w := range res.Warnings {
		pterm.Warning.Println(w)
	}
	if !auditMode {
		printProposals(res)
	}
	if auditMode && len(res.Findings) == 0 {
		pterm.Info.Println("feature declarations are consistent, no findings")
	}
	printFindings(res.Findings)
	printLabels(res.Labels)
	for _, c := range res.Checks {
		if c.Fired {
			pterm.Info.Printfln("verified %s: %q shapes to glyph %d", c.Tag, c.Text, c.Glyphs[len(c.Glyphs)-1])
		} else {
			pterm.Error.Printfln("probe for %s did not fire: %q shaped to %v", c.Tag, c.Text, c.Glyphs)
		}
	}
	switch {
	case r.Err != nil:
		pterm.Error.Println(core.UserMessage(r.Err))
	case res.Applied:
		pterm.Info.Printfln("%d rule(s) written to %s", res.RulesAdded, res.Path)
	case res.UpToDate:
		pterm.Info.Println("font is up to date, nothing to write")
	case res.Output != nil:
		pterm.Info.Printfln("dry run, %d rule(s) encoded but not written", res.RulesAdded)
	case !auditMode && res.Delta.RuleCount() > 0:
		pterm.Info.Printfln("%d rule(s) proposed, rerun with -apply to write them", res.Delta.RuleCount())
	}
}

// printProposals tabulates detected substitution rules per feature tag.
func printProposals(res *feature.Result) {
	if res.Proposed.Len() == 0 {
		pterm.Info.Println("glyph names imply no features")
		return
	}
	data := pterm.TableData{{"Feature", "Rules", "New"}}
	res.Proposed.Each(func(tag string, groups []*feature.FeatureGroup) {
		rules, fresh := 0, 0
		for _, g := range groups {
			rules += g.RuleCount()
		}
		for _, g := range res.Delta.Groups(tag) {
			fresh += g.RuleCount()
		}
		data = append(data, []string{tag, fmt.Sprintf("%d", rules), fmt.Sprintf("%d", fresh)})
	})
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// printFindings lists audit findings with their suggested repairs.
func printFindings(findings []feature.AuditFinding) {
	for _, f := range findings {
		if f.Repair != feature.NoRepair {
			pterm.Printfln("%s (repair: %s)", f.String(), f.Repair)
		} else {
			pterm.Println(f.String())
		}
	}
}

// printLabels lists the resolved stylistic set labels, by tag.
func printLabels(labels map[string]feature.Label) {
	if len(labels) == 0 {
		return
	}
	tags := make([]string, 0, len(labels))
	for tag := range labels {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		lbl := labels[tag]
		pterm.Printfln("%s label %q (%s)", tag, lbl.Text, lbl.Source)
	}
}

// writeFeaFile saves the proposed rules as a feature file.
func writeFeaFile(path string, res *feature.Result) error {
	if res.FeatureText == "" {
		pterm.Info.Println("no rules to write to a feature file")
		return nil
	}
	if err := os.WriteFile(path, []byte(res.FeatureText), 0644); err != nil {
		err = core.Error(core.EWRITE, "cannot write feature file: %v", err)
		pterm.Error.Println(core.UserMessage(err))
		return err
	}
	pterm.Info.Printfln("feature rules written to %s", path)
	return nil
}

// summarize prints the aggregated outcome of a batch run.
func summarize(results []feature.FontResult) {
	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	if len(results) < 2 && failed == 0 {
		return
	}
	pterm.DefaultSection.Println("Summary")
	data := pterm.TableData{{"Font", "Outcome"}}
	for i := range results {
		data = append(data, []string{results[i].Path, outcome(&results[i])})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if failed > 0 {
		pterm.Error.Printfln("%d of %d font(s) failed", failed, len(results))
	}
}

func outcome(r *feature.FontResult) string {
	if r.Err != nil {
		return fmt.Sprintf("failed: %s", core.UserMessage(r.Err))
	}
	res := r.Result
	switch {
	case res.Applied:
		return fmt.Sprintf("applied, %d rule(s) added", res.RulesAdded)
	case res.UpToDate:
		return "up to date"
	case res.Output != nil:
		return fmt.Sprintf("dry run, %d rule(s) encoded", res.RulesAdded)
	default:
		return fmt.Sprintf("%d rule(s) proposed", res.Delta.RuleCount())
	}
}
