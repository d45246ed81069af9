package render

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// Measurer reports the width in mm of text set in a font.
type Measurer interface {
	Width(text string, f Font) float64
}

// fold maps runes the core font cannot show to their closest base letter.
var fold = map[rune]rune{
	'ă': 'a', 'Ă': 'A',
	'ș': 's', 'Ș': 'S', 'ş': 's', 'Ş': 'S',
	'ț': 't', 'Ț': 'T', 'ţ': 't', 'Ţ': 'T',
	'²': '2', '³': '3',
	'✓': 'v', '…': '.',
}

// winAnsi encodes s as Windows-1252 bytes for the PDF core fonts.
// Unsupported runes are folded, then replaced with '?'.
func winAnsi(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		if f, ok := fold[r]; ok {
			if c, ok := charmap.Windows1252.EncodeRune(f); ok {
				b.WriteByte(c)
				continue
			}
		}
		b.WriteByte('?')
	}
	return b.String()
}

// latin1 folds s to runes the raster face can draw.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x100 {
			return r
		}
		if f, ok := fold[r]; ok {
			return f
		}
		switch r {
		case '•':
			return '*'
		case '–', '—':
			return '-'
		case '„', '”', '“':
			return '"'
		}
		return '?'
	}, s)
}

// pdfDoc wraps an fpdf document configured for the style.
type pdfDoc struct {
	pdf    *fpdf.Fpdf
	family string
	encode func(string) string
}

func newPDFDoc(style RenderStyle) *pdfDoc {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(style.MarginSide, style.MarginTop, style.MarginSide)
	d := &pdfDoc{pdf: pdf, family: style.FontFamily, encode: winAnsi}
	if style.FontFile != "" {
		d.family = "letter"
		d.encode = func(s string) string { return s }
		pdf.AddUTF8Font(d.family, "", style.FontFile)
		bold := style.BoldFontFile
		if bold == "" {
			bold = style.FontFile
		}
		pdf.AddUTF8Font(d.family, "B", bold)
		italic := style.ItalicFontFile
		if italic == "" {
			italic = style.FontFile
		}
		pdf.AddUTF8Font(d.family, "I", italic)
		pdf.AddUTF8Font(d.family, "BI", bold)
	}
	return d
}

func (d *pdfDoc) setFont(f Font) {
	d.pdf.SetFont(d.family, f.style(), f.Size)
}

// Width implements Measurer using the document's font metrics.
func (d *pdfDoc) Width(text string, f Font) float64 {
	d.setFont(f)
	return d.pdf.GetStringWidth(d.encode(text))
}
