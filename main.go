/*
otfeat detects OpenType features implied by a font's glyph names,
generates the missing substitution rules, and audits the feature
metadata a font already carries.

Usage:

	otfeat [options] fontfile|dir ...          detect, audit, apply
	otfeat wrapper [options] fontfile ...      scaffold missing layout tables
	otfeat inspect [options] fontfile          interactive prompt

Fonts may be given as file paths, directories (option -R descends into
subdirectories) or names of installed system fonts. Every font is
processed independently; the exit code is 0 when all of them went
through, the error code of the first failing font otherwise.

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © Norbert Pillmayer <norbert@pillmayer.com>
*/
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/schuko/tracing/gologadapter"
	"github.com/npillmayer/schuko/tracing/trace2go"
	"github.com/pterm/pterm"
)

// tracer traces with key 'otfeat.engine'
func tracer() tracing.Trace {
	return tracing.Select("otfeat.engine")
}

func main() {
	initDisplay()

	// set up logging
	tracing.RegisterTraceAdapter("go", gologadapter.GetAdapter(), false)
	conf := testconfig.Conf{
		"tracing.adapter":     "go",
		"trace.otfeat.engine": "Error",
		"trace.otfeat.fonts":  "Error",
	}
	if err := trace2go.ConfigureRoot(conf, "trace", trace2go.ReplaceTracers(true)); err != nil {
		fmt.Println("error configuring tracing")
		os.Exit(core.EINTERNAL)
	}
	tracing.SetTraceSelector(trace2go.Selector())

	args := os.Args[1:]
	var code int
	switch {
	case len(args) > 0 && args[0] == "wrapper":
		code = runWrapper(args[1:])
	case len(args) > 0 && args[0] == "inspect":
		code = runInspect(args[1:])
	default:
		code = runGenerate(args)
	}
	os.Exit(code)
}

// We use pterm for moderately fancy output.
func initDisplay() {
	pterm.EnableDebugMessages()
	pterm.Info.Prefix = pterm.Prefix{
		Text:  " !  ",
		Style: pterm.NewStyle(pterm.BgCyan, pterm.FgBlack),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " Error",
		Style: pterm.NewStyle(pterm.BgRed, pterm.FgBlack),
	}
}

// setTraceLevels applies the -trace flag to both tracing keys.
func setTraceLevels(level string) {
	l := tracing.LevelError
	switch strings.ToLower(level) {
	case "debug":
		l = tracing.LevelDebug
	case "info":
		l = tracing.LevelInfo
	case "error":
		l = tracing.LevelError
	default:
		pterm.Error.Printfln("unknown trace level %q, tracing errors only", level)
	}
	tracing.Select("otfeat.engine").SetTraceLevel(l)
	tracing.Select("otfeat.fonts").SetTraceLevel(l)
}

// resolveFontArg turns a font argument into a file path. An argument naming
// no existing file is looked up among the installed system fonts.
func resolveFontArg(arg string) (string, error) {
	fpath, err := font.LocateFont(arg)
	if err != nil || fpath == "" {
		return "", core.Error(core.EMISSING, "neither a file nor an installed font: %q", arg)
	}
	if fpath != arg {
		tracer().Infof("%q resolved to system font %s", arg, fpath)
	}
	return fpath, nil
}

func isFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}
