package render

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/ehr/medletter/internal/letter"
	"github.com/ehr/medletter/internal/letter/compose"
)

// ErrPageRange is returned for a preview page outside the document or a
// non-positive preview width.
var ErrPageRange = errors.New("preview page out of range")

// Renderer lays out composed letters and encodes them. It keeps no state
// between calls and is safe for concurrent use.
type Renderer struct {
	style RenderStyle
}

// New returns a renderer for style.
func New(style RenderStyle) *Renderer {
	return &Renderer{style: style}
}

// Style returns the renderer's style.
func (r *Renderer) Style() RenderStyle { return r.style }

// Layout paginates doc with the PDF font metrics.
func (r *Renderer) Layout(doc compose.Document) (l *Layout, err error) {
	defer recoverStage("layout", &err)
	d, err := r.newDoc()
	if err != nil {
		return nil, err
	}
	return layoutDocument(r.style, d, doc), nil
}

// Render produces the PDF for doc.
func (r *Renderer) Render(doc compose.Document) (out []byte, err error) {
	defer recoverStage("pdf", &err)
	d, err := r.newDoc()
	if err != nil {
		return nil, err
	}
	l := layoutDocument(r.style, d, doc)
	out, err = d.write(l, doc.Header.Title)
	if err != nil {
		return nil, &letter.RenderError{Stage: "pdf", Err: err}
	}
	return out, nil
}

// RenderPNG produces a preview of page (1-based) scaled to width pixels.
func (r *Renderer) RenderPNG(doc compose.Document, page, width int) (out []byte, err error) {
	l, err := r.Layout(doc)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > len(l.Pages) {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageRange, page, len(l.Pages))
	}
	if width <= 0 {
		return nil, fmt.Errorf("%w: width %d", ErrPageRange, width)
	}
	defer recoverStage("png", &err)
	img, err := rasterize(l, page, width)
	if err != nil {
		return nil, &letter.RenderError{Stage: "png", Err: err}
	}
	out, err = encodePNG(img)
	if err != nil {
		return nil, &letter.RenderError{Stage: "png", Err: err}
	}
	return out, nil
}

// PageCount reports how many pages doc lays out to.
func (r *Renderer) PageCount(doc compose.Document) (int, error) {
	l, err := r.Layout(doc)
	if err != nil {
		return 0, err
	}
	return len(l.Pages), nil
}

func (r *Renderer) newDoc() (*pdfDoc, error) {
	d := newPDFDoc(r.style)
	if err := d.pdf.Error(); err != nil {
		return nil, &letter.RenderError{Stage: "font", Err: err}
	}
	return d, nil
}

func recoverStage(stage string, err *error) {
	if v := recover(); v != nil {
		*err = &letter.RenderError{Stage: stage, Err: fmt.Errorf("panic: %v\n%s", v, debug.Stack())}
	}
}
