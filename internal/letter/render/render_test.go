package render

import (
	"bytes"
	"errors"
	"image/png"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ehr/medletter/internal/letter/compose"
)

// fixedMeasurer gives every rune the same advance.
type fixedMeasurer struct{}

func (fixedMeasurer) Width(text string, f Font) float64 {
	return float64(utf8.RuneCountInString(text)) * f.Size * 0.18
}

func testHeader() compose.Header {
	return compose.Header{
		ClinicName:  "Clinica Sf. Maria",
		ClinicLines: []string{"Ambulatoriu de specialitate", "Str. Lungă 1, Cluj"},
		Annex:       "ANEXA nr. 43",
		Order:       "Ordin MS nr. 1411/2016",
		Title:       "SCRISOARE MEDICALĂ",
		Contract:    "Contract/convenție nr. 123",
	}
}

func treatmentRows(n int) [][]string {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{"Medicament " + strconv.Itoa(i+1), "1 cp", "x2/zi", "30 zile", ""}
	}
	return rows
}

func longDocument() compose.Document {
	return compose.Document{
		Header: testHeader(),
		Sections: []compose.Section{
			{Kind: compose.Intro, Body: compose.Banner{Spans: []compose.Span{{Text: "Stimate coleg, vă informăm că ", Bold: false}, {Text: "Ionescu Maria", Bold: true}}}},
			{Kind: compose.Treatment, Title: "Tratament Recomandat", Body: compose.Table{
				Header:  []string{"MEDICAMENT", "DOZĂ", "FRECVENȚĂ", "DURATĂ", "OBS."},
				Weights: []float64{3, 1.5, 1.5, 1.2, 2},
				Rows:    treatmentRows(120),
			}},
			{Kind: compose.Prescription, Title: "Prescripție Medicală", Body: compose.Checkboxes{Options: []compose.Checkbox{
				{Label: "S-a eliberat prescripție medicală", Checked: true},
				{Label: "Nu s-a eliberat prescripție medicală"},
			}}},
		},
	}
}

func TestLayout_FooterOnEveryPage(t *testing.T) {
	l := layoutDocument(DefaultStyle(), fixedMeasurer{}, longDocument())
	if len(l.Pages) < 2 {
		t.Fatalf("expected the long table to span pages, got %d", len(l.Pages))
	}
	total := strconv.Itoa(len(l.Pages))
	for i := range l.Pages {
		texts := strings.Join(l.Texts(i+1), "|")
		want := "Pagina " + strconv.Itoa(i+1) + " din " + total
		if !strings.Contains(texts, want) {
			t.Errorf("page %d: missing footer %q", i+1, want)
		}
		if !strings.Contains(texts, "Clinica") {
			t.Errorf("page %d: missing page header", i+1)
		}
	}
}

func TestLayout_TableHeaderRepeats(t *testing.T) {
	l := layoutDocument(DefaultStyle(), fixedMeasurer{}, longDocument())
	for i, kinds := range l.Breaks {
		found := false
		for _, k := range kinds {
			if k == compose.Treatment.String() {
				found = true
			}
		}
		if !found {
			continue
		}
		texts := l.Texts(i + 1)
		if !contains(texts, "MEDICAMENT") {
			t.Errorf("page %d: table continues without its header", i+1)
		}
	}
}

func TestLayout_TextStaysInsideMargins(t *testing.T) {
	style := DefaultStyle()
	l := layoutDocument(style, fixedMeasurer{}, longDocument())
	for _, p := range l.Pages {
		for _, op := range p.Ops {
			txt, ok := op.(TextOp)
			if !ok {
				continue
			}
			if txt.Y > style.PageHeight-style.MarginBottom+style.ascent(style.SmallSize)+0.01 {
				t.Errorf("page %d: %q below the bottom margin at %.1f", p.Number, txt.Text, txt.Y)
			}
			if txt.X < style.MarginSide-0.01 {
				t.Errorf("page %d: %q left of the margin", p.Number, txt.Text)
			}
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestPaginator_GroupsMoveWhole(t *testing.T) {
	style := DefaultStyle()
	p := newPaginator(style, 0)
	capacity := p.bottom - p.top

	p.add(group{kind: "first", blocks: []*block{spacer(capacity - 10)}})
	p.add(group{kind: "second", blocks: []*block{spacer(8), spacer(8)}})
	p.add(group{kind: "third", blocks: []*block{spacer(5)}})

	want := [][]string{{"first"}, {"second", "third"}}
	if len(p.breaks) != len(want) {
		t.Fatalf("pages = %v, want %v", p.breaks, want)
	}
	for i := range want {
		if strings.Join(p.breaks[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("page %d = %v, want %v", i+1, p.breaks[i], want[i])
		}
	}
}

func TestPaginator_TallGroupBreaksBetweenBlocks(t *testing.T) {
	style := DefaultStyle()
	p := newPaginator(style, 0)
	capacity := p.bottom - p.top

	head := &block{height: 10, keepWithNext: true, ops: []Op{TextOp{Text: "head"}}}
	blocks := []*block{head}
	for i := 0; i < 30; i++ {
		blocks = append(blocks, &block{height: 10, header: head, ops: []Op{TextOp{Text: "row"}}})
	}
	p.add(group{kind: "table", blocks: blocks})

	if len(p.pages) < 2 {
		t.Fatalf("expected a break, got %d page(s)", len(p.pages))
	}
	for _, page := range p.pages {
		first, ok := page.Ops[0].(TextOp)
		if !ok || first.Text != "head" {
			t.Errorf("page %d does not start with the header", page.Number)
		}
		var used float64
		for range page.Ops {
			used += 10
		}
		if used > capacity {
			t.Errorf("page %d overflows: %.0f > %.0f", page.Number, used, capacity)
		}
	}
}

func TestPaginator_KeepWithNextAvoidsOrphanTitle(t *testing.T) {
	style := DefaultStyle()
	p := newPaginator(style, 0)
	capacity := p.bottom - p.top

	p.add(group{kind: "filler", blocks: []*block{spacer(capacity - 15)}})
	title := &block{height: 8, keepWithNext: true, ops: []Op{TextOp{Text: "title"}}}
	blocks := []*block{title}
	for i := 0; i < 40; i++ {
		blocks = append(blocks, &block{height: 10, ops: []Op{TextOp{Text: "line"}}})
	}
	p.add(group{kind: "long", blocks: blocks})

	for _, op := range p.pages[0].Ops {
		if txt, ok := op.(TextOp); ok && txt.Text == "title" {
			t.Fatal("title left alone at the bottom of page 1")
		}
	}
}

func TestFlow_WrapsAtWidth(t *testing.T) {
	m := fixedMeasurer{}
	f := Font{Size: 10}
	lines := flow(m, []seg{{text: "unu doi trei patru cinci sase sapte", font: f}}, m.Width("unu doi trei", f))
	if len(lines) < 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	for i, l := range lines {
		if l.width > m.Width("unu doi trei", f)+1e-9 {
			t.Errorf("line %d too wide: %.2f", i, l.width)
		}
		if last := l.segs[len(l.segs)-1]; last.text == " " {
			t.Errorf("line %d keeps a trailing space", i)
		}
	}
}

func TestFlow_SplitsLongWords(t *testing.T) {
	m := fixedMeasurer{}
	f := Font{Size: 10}
	word := strings.Repeat("x", 40)
	lines := flow(m, []seg{{text: word, font: f}}, m.Width("xxxxxxxxxx", f))
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
}

func TestWinAnsi(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Prescripție", "Prescriptie"},
		{"Îngrijiri", "\xcengrijiri"},
		{"ANEXA nr. 43", "ANEXA nr. 43"},
		{"kg/m²", "kg/m\xb2"},
		{"ă ș ț", "a s t"},
		{"漢", "?"},
	}
	for _, tt := range tests {
		if got := winAnsi(tt.in); got != tt.want {
			t.Errorf("winAnsi(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckboxes_CheckedIsFilled(t *testing.T) {
	b := newBuilder(DefaultStyle(), fixedMeasurer{})
	g := b.section(compose.Section{Kind: compose.SickLeave, Title: "Concediu Medical", Body: compose.Checkboxes{Options: []compose.Checkbox{
		{Label: "S-a eliberat"},
		{Label: "Nu s-a eliberat", Checked: true},
		{Label: "Nu a fost necesar"},
	}}})
	if len(g.blocks) != 1 {
		t.Fatalf("compliance group should be one block, got %d", len(g.blocks))
	}
	primary := Hex(DefaultStyle().Palette.PrimaryBlue)
	filled := 0
	for _, op := range g.blocks[0].ops {
		if r, ok := op.(RectOp); ok && r.Fill != nil && *r.Fill == primary {
			filled++
		}
	}
	if filled != 1 {
		t.Errorf("filled boxes = %d, want 1", filled)
	}
}

func TestTestGrid_RowsCarryHeader(t *testing.T) {
	b := newBuilder(DefaultStyle(), fixedMeasurer{})
	blocks := b.testGrid(compose.TestGrid{
		Header: []string{"Analiză", "Categorie"},
		Columns: [][]compose.TestCell{
			{{Name: "Glicemie"}, {Name: "HbA1c", Urgent: true}},
			{{Name: "Creatinină"}},
		},
	})
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want header + 2 rows", len(blocks))
	}
	for _, blk := range blocks[1:] {
		if blk.header != blocks[0] {
			t.Error("row does not reference the grid header")
		}
	}
}

func TestRenderer_PDF(t *testing.T) {
	r := New(DefaultStyle())
	out, err := r.Render(longDocument())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:8])
	}
	again, err := r.Render(longDocument())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Equal(out, again) {
		t.Error("rendering the same document twice produced different bytes")
	}
}

func TestRenderer_PNG(t *testing.T) {
	r := New(DefaultStyle())
	out, err := r.RenderPNG(longDocument(), 1, 420)
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 420 || cfg.Height != 594 {
		t.Errorf("size = %dx%d, want 420x594", cfg.Width, cfg.Height)
	}
}

func TestRenderer_PNGPageOutOfRange(t *testing.T) {
	r := New(DefaultStyle())
	for _, page := range []int{0, 999} {
		if _, err := r.RenderPNG(longDocument(), page, 420); !errors.Is(err, ErrPageRange) {
			t.Errorf("page %d: err = %v, want ErrPageRange", page, err)
		}
	}
}

func TestRenderer_MissingFontFile(t *testing.T) {
	style := DefaultStyle()
	style.FontFile = "/nonexistent/font.ttf"
	_, err := New(style).Render(longDocument())
	if err == nil {
		t.Fatal("expected an error for a missing font file")
	}
}
