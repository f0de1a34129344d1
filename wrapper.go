package main

import (
	"flag"
	"os"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otwrap"
	"github.com/pterm/pterm"
)

// runWrapper drives wrapper mode: scaffold the layout tables a bare font is
// missing. Without -apply the plan is only reported.
func runWrapper(args []string) int {
	fset := flag.NewFlagSet("otfeat wrapper", flag.ContinueOnError)
	enrich := fset.Bool("enrich", false, "Write a GDEF table with glyph classes and ligature carets")
	dropKern := fset.Bool("drop-kern", false, "Drop the legacy kern table once GPOS covers its pairs")
	apply := fset.Bool("apply", false, "Write wrapped fonts back to their files")
	tlevel := fset.String("trace", "Error", "Trace level [Debug|Info|Error]")
	if err := fset.Parse(args); err != nil {
		return core.ECONFIG
	}
	setTraceLevels(*tlevel)
	if fset.NArg() == 0 {
		pterm.Error.Println("no fonts given")
		return core.ECONFIG
	}
	prefs := otwrap.Prefs{Enrich: *enrich, DropKern: *dropKern}
	code := 0
	for _, arg := range fset.Args() {
		path, err := resolveFontArg(arg)
		if err == nil {
			err = wrapFont(path, prefs, *apply)
		}
		if err != nil {
			pterm.Error.Println(core.UserMessage(err))
			if code == 0 {
				code = core.Code(err)
			}
		}
	}
	return code
}

// wrapFont plans the wrap of one font and, with apply, executes it.
func wrapFont(path string, prefs otwrap.Prefs, apply bool) error {
	pterm.DefaultSection.Println(path)
	var plan *otwrap.Plan
	var err error
	if apply {
		plan, err = otwrap.ExecuteFont(path, prefs)
	} else {
		plan, err = planOnly(path, prefs)
	}
	if err != nil {
		return err
	}
	for _, line := range plan.Summary() {
		pterm.Printfln("  %s", line)
	}
	for _, w := range plan.Warnings {
		pterm.Warning.Println(w)
	}
	switch {
	case !plan.HasWork():
	case apply:
		pterm.Info.Printfln("wrapped font written to %s", path)
	default:
		pterm.Info.Println("rerun with -apply to write the wrapped font")
	}
	return nil
}

func planOnly(path string, prefs otwrap.Prefs) (*otwrap.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Error(core.EMISSING, "cannot read font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		return nil, core.Error(core.EINVALID, "unreadable font: %v", err)
	}
	return otwrap.CreatePlan(otf, prefs)
}
