package feature

import "fmt"

// AuditOptions controls which repairs an audit may propose. Findings are
// always reported; a repair action is attached only when the corresponding
// option authorizes it. Nothing is ever deleted from a font.
type AuditOptions struct {
	AddMissingParams bool          // authorize adding params blocks to bare ssNN features
	Labels           *LabelManager // user labels authorize rewriting existing label text
}

// Audit derives findings from an extraction: structural anomalies met
// during the read, stylistic sets without a menu name, labels pointing into
// the void, malformed params blocks, duplicate set indices, and features
// that resolve to no substitution at all.
//
// The returned findings are ordered by feature record, structural findings
// first. An empty slice means the font's feature inventory is clean.
func Audit(ex *Extraction, opts AuditOptions) []AuditFinding {
	findings := append([]AuditFinding{}, ex.Findings...)
	seen := make(map[int]bool)
	for i := range ex.Features {
		f := &ex.Features[i]
		if f.Index > 0 {
			if seen[f.Index] {
				findings = append(findings, AuditFinding{
					Kind:  DuplicateIndex,
					Tag:   f.Tag,
					Index: f.Index,
					Message: fmt.Sprintf("stylistic set %d is declared by more than one feature record",
						f.Index),
				})
			} else {
				seen[f.Index] = true
				findings = append(findings, auditParams(f, opts)...)
			}
		}
		if !f.Opaque && len(f.Singles) == 0 && len(f.Ligatures) == 0 {
			findings = append(findings, AuditFinding{
				Kind:    EmptyGroup,
				Tag:     f.Tag,
				Index:   f.Index,
				Message: "feature resolves to no substitution rule",
			})
		}
	}
	tracer().Debugf("audit: %d finding(s)", len(findings))
	return findings
}

// auditParams judges the FeatureParams state of one stylistic set.
func auditParams(f *ExistingFeature, opts AuditOptions) []AuditFinding {
	switch f.Params {
	case ParamsAbsent:
		fd := AuditFinding{
			Kind:    MissingLabel,
			Tag:     f.Tag,
			Index:   f.Index,
			Message: "no feature params, applications cannot show a menu name",
		}
		if opts.AddMissingParams {
			fd.Repair = AddParams
		}
		return []AuditFinding{fd}
	case ParamsInvalid:
		return []AuditFinding{{
			Kind:    MismatchedParams,
			Tag:     f.Tag,
			Index:   f.Index,
			Message: "feature params block is malformed",
		}}
	}
	// params are valid; the name reference may still dangle
	if f.NameID != 0 && f.Label == "" {
		fd := AuditFinding{
			Kind:    OrphanLabel,
			Tag:     f.Tag,
			Index:   f.Index,
			Message: fmt.Sprintf("params reference name ID %d, which carries no text", f.NameID),
		}
		if opts.Labels != nil && opts.Labels.HasUserLabel(f.Index) {
			fd.Repair = RewriteLabel
		}
		return []AuditFinding{fd}
	}
	return nil
}

// Repairable filters an audit report down to the findings that carry a
// repair action. The pipeline applies them in a single per-font pass.
func Repairable(findings []AuditFinding) []AuditFinding {
	var out []AuditFinding
	for _, f := range findings {
		if f.Repair != NoRepair {
			out = append(out, f)
		}
	}
	return out
}
