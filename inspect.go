package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otquery"
	"github.com/npillmayer/otfeat/feature"
	"github.com/pterm/pterm"
	"golang.org/x/text/language"
)

// runInspect opens an interactive prompt on a single font.
func runInspect(args []string) int {
	fset := flag.NewFlagSet("otfeat inspect", flag.ContinueOnError)
	tlevel := fset.String("trace", "Error", "Trace level [Debug|Info|Error]")
	if err := fset.Parse(args); err != nil {
		return core.ECONFIG
	}
	setTraceLevels(*tlevel)
	if fset.NArg() != 1 {
		pterm.Error.Println("inspect needs exactly one font")
		return core.ECONFIG
	}
	insp, err := newInspector(fset.Arg(0))
	if err != nil {
		pterm.Error.Println(core.UserMessage(err))
		return core.Code(err)
	}
	defer insp.repl.Close()
	pterm.Info.Printfln("inspecting %s", insp.path)
	pterm.Info.Println("Quit with <ctrl>D")
	insp.REPL()
	return 0
}

// inspector is the interpreter behind the inspect prompt. Detection results
// and the glyph inventory are computed on first use, so that commands which
// need neither still work on fonts without glyph names.
type inspector struct {
	path string
	data []byte
	otf  *ot.Font
	repl *readline.Instance
	res  *feature.Result
	inv  *feature.Inventory
}

func newInspector(arg string) (*inspector, error) {
	path, err := resolveFontArg(arg)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Error(core.EMISSING, "cannot read font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		return nil, core.Error(core.EINVALID, "unreadable font: %v", err)
	}
	repl, err := readline.New("otfeat > ")
	if err != nil {
		return nil, core.WrapError(err, core.EINTERNAL, "cannot start the prompt")
	}
	return &inspector{path: path, data: data, otf: otf, repl: repl}, nil
}

// REPL starts interactive mode.
func (insp *inspector) REPL() {
	for {
		line, err := insp.repl.Readline()
		if err != nil { // io.EOF
			break
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		err, quit := insp.execute(line)
		if err != nil {
			pterm.Error.Println(core.UserMessage(err))
			continue
		}
		if quit {
			break
		}
	}
	pterm.Info.Println("Good bye!")
}

func (insp *inspector) execute(line string) (error, bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "quit", "exit":
		return nil, true
	case "tables":
		insp.showTables()
	case "features":
		return insp.showFeatures(), false
	case "rules":
		return insp.showRules(arg), false
	case "labels":
		return insp.showLabels(), false
	case "glyphs":
		return insp.showGlyphs(arg), false
	case "audit":
		return insp.showAudit(), false
	case "help":
		help()
	default:
		pterm.Error.Printfln("unknown command %q, try 'help'", cmd)
	}
	return nil, false
}

// result runs the detection pipeline over the font, once.
func (insp *inspector) result() (*feature.Result, error) {
	if insp.res != nil {
		return insp.res, nil
	}
	res, err := feature.Process(insp.data, feature.Options{})
	if err != nil {
		return nil, err
	}
	insp.res = res
	return res, nil
}

// inventory prepares the glyph inventory of the font, once.
func (insp *inspector) inventory() (*feature.Inventory, error) {
	if insp.inv != nil {
		return insp.inv, nil
	}
	inv, err := feature.NewInventory(insp.otf)
	if err != nil {
		return nil, err
	}
	insp.inv = inv
	return inv, nil
}

func (insp *inspector) showTables() {
	names := otquery.NameInfo(insp.otf, language.AmericanEnglish)
	if names["fullname"] != "" {
		pterm.Printfln("%s, %s", names["fullname"], otquery.FontType(insp.otf))
	} else {
		pterm.Println(otquery.FontType(insp.otf))
	}
	if names["version"] != "" {
		pterm.Printfln("version: %s", names["version"])
	}
	entries := make([]string, 0, len(insp.otf.TableTags()))
	for _, tag := range insp.otf.TableTags() {
		_, size := insp.otf.Table(tag).Extent()
		entries = append(entries, fmt.Sprintf("%s (%d)", tag, size))
	}
	pterm.Printfln("font tables: %s", strings.Join(entries, ", "))
	pterm.Printfln("layout tables: %v", otquery.LayoutTables(insp.otf))
	if table := insp.otf.Table(ot.T("name")); table != nil {
		if name := table.Self().AsName(); name != nil {
			pterm.Printfln("name records: %v", name.NameIDs())
		}
	}
}

func (insp *inspector) showFeatures() error {
	res, err := insp.result()
	if err != nil {
		return err
	}
	if len(res.Existing.Features) > 0 {
		data := pterm.TableData{{"Feature", "Set", "Rules", "Params", "Label"}}
		for i := range res.Existing.Features {
			f := &res.Existing.Features[i]
			rules := fmt.Sprintf("%d", len(f.Singles)+len(f.Ligatures))
			if f.Opaque {
				rules = "opaque"
			}
			set := ""
			if f.Index > 0 {
				set = fmt.Sprintf("%d", f.Index)
			}
			data = append(data, []string{f.Tag, set, rules, f.Params.String(), f.Label})
		}
		pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	} else {
		pterm.Println("the font declares no substitution features")
	}
	var absent []string
	res.Delta.Each(func(tag string, groups []*feature.FeatureGroup) {
		rules := 0
		for _, g := range groups {
			rules += g.RuleCount()
		}
		if rules > 0 {
			absent = append(absent, fmt.Sprintf("%s (%d rule(s))", tag, rules))
		}
	})
	if len(absent) > 0 {
		pterm.Printfln("detected but not declared: %s", strings.Join(absent, ", "))
	}
	return nil
}

func (insp *inspector) showRules(tag string) error {
	res, err := insp.result()
	if err != nil {
		return err
	}
	if tag == "" {
		pterm.Println(res.FeatureText)
		return nil
	}
	groups := res.Proposed.Groups(tag)
	if groups == nil {
		pterm.Printfln("no rules detected for '%s'", tag)
		return nil
	}
	sub := feature.NewFeatureSet()
	for _, g := range groups {
		sub.Add(g)
	}
	pterm.Println(feature.RenderFeatureFile(sub, res.Labels))
	return nil
}

func (insp *inspector) showLabels() error {
	res, err := insp.result()
	if err != nil {
		return err
	}
	if len(res.Labels) == 0 {
		pterm.Println("the font involves no stylistic set labels")
		return nil
	}
	tags := make([]string, 0, len(res.Labels))
	for tag := range res.Labels {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	data := pterm.TableData{{"Feature", "Label", "Source", "Name ID"}}
	for _, tag := range tags {
		lbl := res.Labels[tag]
		id := ""
		if lbl.NameID != 0 {
			id = fmt.Sprintf("%d", lbl.NameID)
		}
		data = append(data, []string{tag, lbl.Text, lbl.Source.String(), id})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	return nil
}

func (insp *inspector) showGlyphs(prefix string) error {
	if prefix == "" {
		pterm.Println("usage: glyphs <prefix>")
		return nil
	}
	inv, err := insp.inventory()
	if err != nil {
		return err
	}
	names := inv.NamesWithPrefix(prefix)
	if len(names) == 0 {
		pterm.Printfln("no glyph names starting with %q", prefix)
		return nil
	}
	for _, name := range names {
		gid, _ := inv.Glyph(name)
		if runes := inv.Runes(gid); len(runes) > 0 {
			pterm.Printfln("%5d  %-24s %U", gid, name, runes)
		} else {
			pterm.Printfln("%5d  %s", gid, name)
		}
	}
	return nil
}

func (insp *inspector) showAudit() error {
	res, err := insp.result()
	if err != nil {
		return err
	}
	if len(res.Findings) == 0 {
		pterm.Info.Println("feature declarations are consistent, no findings")
		return nil
	}
	printFindings(res.Findings)
	return nil
}

func help() {
	pterm.Info.Println("Commands")
	pterm.Println(`
	tables           font type and table directory
	features         declared features, and detected ones the font lacks
	rules [tag]      proposed rules as feature file text
	labels           stylistic set labels with their sources
	glyphs <prefix>  glyph names starting with prefix
	audit            consistency findings for the declared features
	quit             leave the prompt
	`)
}
