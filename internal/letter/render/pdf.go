package render

import (
	"bytes"
	"fmt"
	"time"
)

// pdfEpoch is stamped as creation date so equal letters give equal bytes.
var pdfEpoch = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

// write draws l into d and returns the encoded document.
func (d *pdfDoc) write(l *Layout, title string) ([]byte, error) {
	pdf := d.pdf
	pdf.SetCreationDate(pdfEpoch)
	pdf.SetModificationDate(pdfEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetCreator("medletter", false)
	pdf.SetTitle(title, true)

	for _, page := range l.Pages {
		pdf.AddPage()
		for _, op := range page.Ops {
			d.draw(op)
		}
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Number, err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *pdfDoc) draw(op Op) {
	pdf := d.pdf
	switch o := op.(type) {
	case TextOp:
		if o.Text == "" {
			return
		}
		d.setFont(o.Font)
		pdf.SetTextColor(int(o.Color.R), int(o.Color.G), int(o.Color.B))
		pdf.Text(o.X, o.Y, d.encode(o.Text))
	case RectOp:
		style := ""
		if o.Fill != nil {
			pdf.SetFillColor(int(o.Fill.R), int(o.Fill.G), int(o.Fill.B))
			style += "F"
		}
		if o.Stroke != nil {
			pdf.SetDrawColor(int(o.Stroke.R), int(o.Stroke.G), int(o.Stroke.B))
			pdf.SetLineWidth(o.LineWidth)
			style += "D"
		}
		if style == "" {
			return
		}
		pdf.Rect(o.X, o.Y, o.W, o.H, style)
	case LineOp:
		pdf.SetDrawColor(int(o.Color.R), int(o.Color.G), int(o.Color.B))
		pdf.SetLineWidth(o.Width)
		pdf.Line(o.X1, o.Y1, o.X2, o.Y2)
	}
}
