// Package render lays a composed letter out on fixed A4 pages and writes the
// result as PDF or as a PNG page preview.
package render

import (
	"strconv"
	"strings"
)

// Color is an RGB color.
type Color struct {
	R, G, B uint8
}

// Hex parses "#rrggbb". Malformed input yields black.
func Hex(s string) Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return Color{}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Palette holds the letter's colors as hex strings.
type Palette struct {
	PrimaryBlue string
	DarkBlue    string
	LightBlue   string
	DarkGray    string
	MediumGray  string
	LightGray   string
	BorderGray  string
	Red         string
	DarkRed     string
	RedTint     string
	RedBorder   string
	Green       string
	GreenTint   string
	GreenBorder string
	Yellow      string
	YellowTint  string
	White       string
}

// RenderStyle is the read-only page and typography configuration. Lengths
// are millimetres, font sizes points.
type RenderStyle struct {
	PageWidth    float64
	PageHeight   float64
	MarginTop    float64
	MarginBottom float64
	MarginSide   float64

	FontFamily string
	// FontFile, BoldFontFile and ItalicFontFile name UTF-8 TrueType fonts.
	// Without FontFile the core font is used and text is encoded as
	// Windows-1252.
	FontFile       string
	BoldFontFile   string
	ItalicFontFile string

	BaseSize         float64
	SmallSize        float64
	TinySize         float64
	SectionTitleSize float64
	ClinicNameSize   float64
	TitleSize        float64
	LineSpacing      float64

	SectionGap float64
	Padding    float64
	CheckSize  float64
	FooterGap  float64

	Palette Palette
}

// DefaultStyle is the Anexa 43 house style.
func DefaultStyle() RenderStyle {
	return RenderStyle{
		PageWidth:    210,
		PageHeight:   297,
		MarginTop:    12,
		MarginBottom: 15,
		MarginSide:   15,

		FontFamily: "Arial",

		BaseSize:         9,
		SmallSize:        8,
		TinySize:         7,
		SectionTitleSize: 11,
		ClinicNameSize:   16,
		TitleSize:        14,
		LineSpacing:      1.35,

		SectionGap: 4,
		Padding:    2.5,
		CheckSize:  4.5,
		FooterGap:  6,

		Palette: Palette{
			PrimaryBlue: "#3b82f6",
			DarkBlue:    "#1e40af",
			LightBlue:   "#eff6ff",
			DarkGray:    "#1a1a1a",
			MediumGray:  "#666666",
			LightGray:   "#f8f9fa",
			BorderGray:  "#e5e7eb",
			Red:         "#dc2626",
			DarkRed:     "#991b1b",
			RedTint:     "#fef2f2",
			RedBorder:   "#fecaca",
			Green:       "#16a34a",
			GreenTint:   "#f0fdf4",
			GreenBorder: "#bbf7d0",
			Yellow:      "#ca8a04",
			YellowTint:  "#fef9c3",
			White:       "#ffffff",
		},
	}
}

// ContentWidth is the printable width between the side margins.
func (s RenderStyle) ContentWidth() float64 {
	return s.PageWidth - 2*s.MarginSide
}

const ptToMM = 25.4 / 72

// lineHeight is the advance of one text line at size pt.
func (s RenderStyle) lineHeight(size float64) float64 {
	return size * ptToMM * s.LineSpacing
}

// ascent is the distance from the top of a line to its baseline.
func (s RenderStyle) ascent(size float64) float64 {
	return size*ptToMM*0.8 + (s.lineHeight(size)-size*ptToMM)/2
}
