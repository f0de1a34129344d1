package feature

import (
	"fmt"
	"strings"

	"github.com/npillmayer/otfeat/core/font/opentype/ot"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
)

// RenderFeatureFile synthesizes feature definitions in AFDKO syntax from a
// feature set. Stylistic sets emit a featureNames block with their label;
// contextual alternates emit one lookup per context marker. Tags without
// any substitution rule are omitted. The output is deterministic: the same
// feature set and labels always render to the same text.
//
// labels maps feature tags ("ss01") to their UI labels; tags without an
// entry render without a featureNames block.
func RenderFeatureFile(fs *FeatureSet, labels map[string]Label) string {
	var sb strings.Builder
	fs.Each(func(tag string, groups []*FeatureGroup) {
		rules := renderGroups(tag, groups, labels)
		if rules == "" {
			return
		}
		fmt.Fprintf(&sb, "feature %s {\n", tag)
		sb.WriteString(rules)
		fmt.Fprintf(&sb, "} %s;\n\n", tag)
	})
	return sb.String()
}

func renderGroups(tag string, groups []*FeatureGroup, labels map[string]Label) string {
	rules := 0
	for _, g := range groups {
		rules += g.RuleCount()
	}
	if rules == 0 {
		return ""
	}
	var sb strings.Builder
	if label, ok := labels[tag]; ok && label.Text != "" {
		sb.WriteString("    featureNames {\n")
		fmt.Fprintf(&sb, "        name \"%s\";\n", escapeFeaString(label.Text))
		sb.WriteString("    };\n")
	}
	for _, g := range groups {
		if g.IsEmpty() {
			continue
		}
		if tag == "calt" {
			// Plain substitutions under calt are context-free stand-ins; one
			// lookup per context marker keeps the rule targets unique.
			name := "calt_" + g.Key
			fmt.Fprintf(&sb, "    lookup %s {\n", name)
			renderRules(&sb, g, "        ")
			fmt.Fprintf(&sb, "    } %s;\n", name)
			continue
		}
		renderRules(&sb, g, "    ")
	}
	return sb.String()
}

func renderRules(sb *strings.Builder, g *FeatureGroup, indent string) {
	for _, l := range g.Ligatures {
		fmt.Fprintf(sb, "%ssub %s by %s;\n", indent, strings.Join(l.Names, " "), l.LigatureName)
	}
	for _, p := range g.Pairs {
		fmt.Fprintf(sb, "%ssub %s by %s;\n", indent, p.BaseName, p.VariantName)
	}
}

func escapeFeaString(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// EncodeSpecs turns a feature set into the substitution specs the GSUB
// assembler consumes. Contextual alternates are excluded: without their
// context they would fire unconditionally, so 'calt' groups stay report
// and feature-file material only. For stylistic sets the label's name ID
// is carried into the FeatureParams block; labels must have their IDs
// assigned before encoding.
func EncodeSpecs(fs *FeatureSet, labels map[string]Label) []otedit.FeatureSpec {
	var specs []otedit.FeatureSpec
	fs.Each(func(tag string, groups []*FeatureGroup) {
		if tag == "calt" {
			tracer().Infof("contextual alternates are not encoded, %d group(s) skipped", len(groups))
			return
		}
		spec := otedit.FeatureSpec{Tag: ot.T(tag)}
		for _, g := range groups {
			for _, p := range g.Pairs {
				spec.Singles = append(spec.Singles, otedit.SingleSubst{From: p.Base, To: p.Variant})
			}
			for _, l := range g.Ligatures {
				spec.Ligatures = append(spec.Ligatures, otedit.LigatureSubst{
					Components: l.Components,
					Ligature:   l.Ligature,
				})
			}
		}
		if label, ok := labels[tag]; ok {
			spec.ParamsNameID = label.NameID
		}
		if len(spec.Singles) == 0 && len(spec.Ligatures) == 0 {
			return
		}
		specs = append(specs, spec)
	})
	return specs
}
