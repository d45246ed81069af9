package compose

import "github.com/ehr/medletter/internal/letter"

// Content is the typed body of a section. The set of implementations is
// closed; renderers switch over it exhaustively.
type Content interface {
	content()
}

// Span is a run of inline text.
type Span struct {
	Text string
	Bold bool
}

// Banner is a shaded paragraph of inline spans.
type Banner struct {
	Spans []Span
}

// Field is a labeled value.
type Field struct {
	Label string
	Value string
}

// FieldGrid lays fields out in rows of Columns.
type FieldGrid struct {
	Columns int
	Fields  []Field
}

// Formatted is sanitized formatting markup.
type Formatted struct {
	Markup string
}

// OncologyBanner is the DA/NU oncologic status question.
type OncologyBanner struct {
	Question  string
	Oncologic bool
	Details   string
}

// DiagnosisList holds the principal diagnosis and, when present, the
// secondary block.
type DiagnosisList struct {
	Principal *letter.DiagnosisEntry
	Secondary []letter.DiagnosisEntry
}

// Subsection is a labeled paragraph. Markup is sanitized formatting; Inline
// places the label on the same line as the text. Shaded paragraphs get a
// background fill.
type Subsection struct {
	Label   string
	Markup  string
	Inline  bool
	Shaded  bool
	Italic  bool
	Bullets []string
}

// Subsections is an ordered list of labeled paragraphs.
type Subsections struct {
	Items []Subsection
}

// LabResults is the two-block normal/abnormal summary.
type LabResults struct {
	Normal   []letter.LabResult
	Abnormal []letter.LabResult
}

// PerformedTests is the abnormal table followed by the normal grid.
type PerformedTests struct {
	AbnormalHeader []string
	Abnormal       [][]string
	Normal         []Field
	PerRow         int
}

// Table is a bordered table with a header row.
type Table struct {
	Header  []string
	Weights []float64
	Rows    [][]string
}

// ListItem is one numbered entry, optionally with bullet children.
type ListItem struct {
	Text     string
	Children []string
}

// NumberedList is a list of numbered entries.
type NumberedList struct {
	Items []ListItem
}

// TestCell is one recommended test in the grid.
type TestCell struct {
	Name     string
	Category string
	Urgent   bool
}

// TestGrid holds up to letter.MaxColumns non-empty columns.
type TestGrid struct {
	Header  []string
	Columns [][]TestCell
}

// NotesBox is the fixed regulatory notes box.
type NotesBox struct {
	Intro        string
	WarningTitle string
	Warning      string
	Validity     string
}

// Checkbox is one option of a compliance group.
type Checkbox struct {
	Label   string
	Checked bool
}

// Checkboxes lists every option of a group.
type Checkboxes struct {
	Options []Checkbox
}

// Signature is the doctor block, transmission choice and footnotes.
type Signature struct {
	RoleLabel      string
	Doctor         string
	Specialty      string
	StampLabel     string
	StampBoxLabel  string
	IssuedLabel    string
	IssuedOn       string
	TransmitLabel  string
	Transmission   []Checkbox
	Footnotes      []string
	FootnoteMarker string
}

func (Banner) content()         {}
func (FieldGrid) content()      {}
func (Formatted) content()      {}
func (OncologyBanner) content() {}
func (DiagnosisList) content()  {}
func (Subsections) content()    {}
func (LabResults) content()     {}
func (PerformedTests) content() {}
func (Table) content()          {}
func (NumberedList) content()   {}
func (TestGrid) content()       {}
func (NotesBox) content()       {}
func (Checkboxes) content()     {}
func (Signature) content()      {}
