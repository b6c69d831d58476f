// Package display turns plugdeploy results into a format-independent
// shape that the terminal, text and markdown renderers draw.
package display

// Report is the top-level structure drawn by the human-facing renderers.
type Report struct {
	Title string
	// Status is "success", "failure" or empty for informational reports.
	Status   string
	Fields   []Field
	Sections []Section
}

// Field is one labelled value.
type Field struct {
	Label string
	Value string
}

// SectionKind selects how section items are styled.
type SectionKind int

const (
	KindPlain SectionKind = iota
	KindPath
	KindError
)

// Section is a titled list. Empty sections are not drawn.
type Section struct {
	Title string
	Kind  SectionKind
	Items []string
}

// Diff is the line diff of one package file against its installed copy.
type Diff struct {
	Path string `json:"path"`
	Text string `json:"diff"`
}

// Identical reports whether the two versions match.
func (d *Diff) Identical() bool {
	return d.Text == ""
}

func (r *Report) field(label, value string) {
	if value == "" {
		return
	}
	r.Fields = append(r.Fields, Field{Label: label, Value: value})
}

func (r *Report) section(title string, kind SectionKind, items []string) {
	if len(items) == 0 {
		return
	}
	r.Sections = append(r.Sections, Section{Title: title, Kind: kind, Items: items})
}
