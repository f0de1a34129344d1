package feature

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/npillmayer/otfeat/core"
	"github.com/npillmayer/otfeat/core/font/opentype/otedit"
)

// ParseUserLabel parses a stylistic set label argument of the form
// "N,Text", as given with the -ss command line option. Errors are
// configuration errors; they abort the invocation before any font is
// touched.
func ParseUserLabel(arg string) (int, string, error) {
	num, text, ok := strings.Cut(arg, ",")
	if !ok {
		return 0, "", core.Error(core.ECONFIG, "stylistic set label must have the form \"N,Text\", got %q", arg)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || n < 1 {
		return 0, "", core.Error(core.ECONFIG, "stylistic set index must be a positive number, got %q", num)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", core.Error(core.ECONFIG, "stylistic set %d: label text is empty", n)
	}
	return n, text, nil
}

// LabelManager resolves the UI labels of stylistic sets from three
// competing sources: labels supplied on the command line, labels already
// present in a font, and the configured default template.
type LabelManager struct {
	cfg  *Config
	user map[int]string
}

// NewLabelManager creates a label manager without user labels.
func NewLabelManager(cfg *Config) *LabelManager {
	return &LabelManager{cfg: cfg, user: make(map[int]string)}
}

// AddUserLabel registers a user-supplied label for a set index. Two labels
// for the same index are a configuration error.
func (lm *LabelManager) AddUserLabel(index int, text string) error {
	if index < 1 || index > lm.cfg.MaxStylisticSets {
		return core.Error(core.ECONFIG, "stylistic set index %d out of range 1..%d", index, lm.cfg.MaxStylisticSets)
	}
	if prev, ok := lm.user[index]; ok {
		return core.Error(core.ECONFIG, "two labels for stylistic set %d: %q and %q", index, prev, text)
	}
	lm.user[index] = text
	return nil
}

// AddUserLabels parses and registers a list of "N,Text" arguments.
func (lm *LabelManager) AddUserLabels(args []string) error {
	for _, arg := range args {
		n, text, err := ParseUserLabel(arg)
		if err != nil {
			return err
		}
		if err := lm.AddUserLabel(n, text); err != nil {
			return err
		}
	}
	return nil
}

// HasUserLabel tells whether the user supplied a label for the set index.
func (lm *LabelManager) HasUserLabel(index int) bool {
	_, ok := lm.user[index]
	return ok
}

// Resolve picks the label for one stylistic set. Precedence: a user label
// wins over the label already in the font, which wins over the default
// template. When the font already carries a label record, its name ID is
// kept, so that a user label rewrites the record in place instead of
// leaving an orphan behind.
func (lm *LabelManager) Resolve(index int, existing *Label) Label {
	tag := fmt.Sprintf("ss%02d", index)
	if text, ok := lm.user[index]; ok {
		lbl := Label{Tag: tag, Index: index, Text: text, Source: UserLabel}
		if existing != nil {
			lbl.NameID = existing.NameID
		}
		return lbl
	}
	if existing != nil && existing.Text != "" {
		lbl := *existing
		lbl.Tag = tag
		lbl.Source = ExistingLabel
		return lbl
	}
	return Label{
		Tag:    tag,
		Index:  index,
		Text:   fmt.Sprintf(lm.cfg.LabelTemplate, index),
		Source: DefaultLabel,
	}
}

// AssignLabelIDs makes every label reference a name record: labels with an
// ID keep it (user labels rewrite the record's text when it changed),
// labels without an ID reuse a record with identical text or get a freshly
// allocated ID. Assignment order is the tag order, which keeps allocated
// IDs stable across runs.
func AssignLabelIDs(labels map[string]Label, edit *otedit.NameEdit) error {
	tags := make([]string, 0, len(labels))
	for tag := range labels {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		lbl := labels[tag]
		if lbl.NameID != 0 {
			if lbl.Source == UserLabel && edit.Get(lbl.NameID) != lbl.Text {
				tracer().Infof("rewriting label %d of %s to %q", lbl.NameID, tag, lbl.Text)
				edit.SetName(lbl.NameID, lbl.Text)
			}
			labels[tag] = lbl
			continue
		}
		if id, ok := edit.FindLabel(lbl.Text); ok {
			lbl.NameID = id
			labels[tag] = lbl
			continue
		}
		id, err := edit.NextFreeNameID()
		if err != nil {
			return err
		}
		edit.SetName(id, lbl.Text)
		lbl.NameID = id
		labels[tag] = lbl
	}
	return nil
}
