package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// rasterScale is the base resolution of previews in pixels per millimetre.
// Previews draw the PDF layout with a bitmap face, so text widths are
// approximate.
const rasterScale = 4

func rgba(c Color) color.RGBA { return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff} }

// rasterize draws one page at rasterScale and scales it to width pixels.
func rasterize(l *Layout, n, width int) (*image.RGBA, error) {
	if n < 1 || n > len(l.Pages) {
		return nil, fmt.Errorf("page %d out of range 1..%d", n, len(l.Pages))
	}
	if width <= 0 {
		return nil, fmt.Errorf("invalid preview width %d", width)
	}
	w := int(l.Style.PageWidth * rasterScale)
	h := int(l.Style.PageHeight * rasterScale)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	px := func(mm float64) int { return int(mm*rasterScale + 0.5) }
	for _, op := range l.Pages[n-1].Ops {
		switch o := op.(type) {
		case RectOp:
			r := image.Rect(px(o.X), px(o.Y), px(o.X+o.W), px(o.Y+o.H))
			if o.Fill != nil {
				draw.Draw(img, r, image.NewUniform(rgba(*o.Fill)), image.Point{}, draw.Over)
			}
			if o.Stroke != nil {
				outline(img, r, rgba(*o.Stroke))
			}
		case LineOp:
			line(img, px(o.X1), px(o.Y1), px(o.X2), px(o.Y2), rgba(o.Color))
		case TextOp:
			d := font.Drawer{
				Dst:  img,
				Src:  image.NewUniform(rgba(o.Color)),
				Face: basicfont.Face7x13,
				Dot:  fixed.P(px(o.X), px(o.Y)),
			}
			d.DrawString(latin1(o.Text))
		}
	}

	if width == w {
		return img, nil
	}
	out := image.NewRGBA(image.Rect(0, 0, width, h*width/w))
	draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out, nil
}

func outline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	line(img, r.Min.X, r.Min.Y, r.Max.X, r.Min.Y, c)
	line(img, r.Min.X, r.Max.Y, r.Max.X, r.Max.Y, c)
	line(img, r.Min.X, r.Min.Y, r.Min.X, r.Max.Y, c)
	line(img, r.Max.X, r.Min.Y, r.Max.X, r.Max.Y, c)
}

// line draws a one pixel line between two points.
func line(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx, dy := abs(x2-x1), -abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x1 += sx
		}
		if e2 <= dx {
			e += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
