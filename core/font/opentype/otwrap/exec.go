package otwrap

import (
	"os"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
)

// Execute carries out a wrapping plan and returns the rewritten font file.
// The font must be the one the plan was created from. A plan without work
// yields (nil, nil).
func Execute(otf *ot.Font, plan *Plan) ([]byte, error) {
	if otf == nil || plan == nil {
		return nil, core.Error(core.EINVALID, "nothing to execute")
	}
	if !plan.HasWork() {
		return nil, nil
	}
	replace := make(map[ot.Tag][]byte)
	if plan.CanRebuildCMap {
		b, err := otedit.AssembleCMap(plan.remap)
		if err != nil {
			return nil, err
		}
		replace[ot.T("cmap")] = b
		tracer().Infof("rebuilt character map with %d code points", plan.RemapCount)
	}
	if plan.CanInferLiga {
		b, err := otedit.AssembleGSub(plan.ligatures)
		if err != nil {
			return nil, err
		}
		replace[ot.T("GSUB")] = b
		tracer().Infof("scaffolded GSUB table with %d ligature rules", plan.LigatureCount)
	}
	if plan.CanMigrateKern {
		b, err := otedit.AssembleGPos(plan.kernPairs)
		if err != nil {
			return nil, err
		}
		replace[ot.T("GPOS")] = b
		tracer().Infof("migrated %d kerning pairs to GPOS", plan.KernPairCount)
	}
	if plan.CanEnrichGDef {
		b, err := otedit.AssembleGDef(plan.classes, plan.carets)
		if err != nil {
			return nil, err
		}
		replace[ot.T("GDEF")] = b
		tracer().Infof("wrote GDEF table with %d glyph classes", len(plan.classes))
	}
	if plan.dropKern {
		replace[ot.T("kern")] = nil
		tracer().Infof("dropping legacy kern table")
	}
	return otedit.Serialize(otf, replace)
}

// ExecuteFont wraps the font file at path in place: read, plan, execute,
// save. The returned plan tells what was done; a plan without work leaves
// the file untouched.
func ExecuteFont(path string, prefs Prefs) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Error(core.EMISSING, "cannot read font: %v", err)
	}
	otf, err := ot.Parse(data)
	if err != nil {
		return nil, core.Error(core.EINVALID, "unreadable font: %v", err)
	}
	plan, err := CreatePlan(otf, prefs)
	if err != nil {
		return nil, err
	}
	if !plan.HasWork() {
		return plan, nil
	}
	out, err := Execute(otf, plan)
	if err != nil {
		return plan, err
	}
	if err := otedit.SaveFont(out, path); err != nil {
		return plan, err
	}
	tracer().Infof("font written to %s", path)
	return plan, nil
}
