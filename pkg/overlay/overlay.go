// Package overlay describes and renders per-detection draw instructions:
// a bounding box plus a "label (distance)" caption.
package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is one draw instruction.
type Annotation struct {
	Box  image.Rectangle `json:"box"`
	Text string          `json:"text"`
}

// Style controls how annotations are drawn.
type Style struct {
	Color      color.RGBA
	Thickness  int
	TextOffset int // caption baseline distance above the box
}

// DefaultStyle draws 2px green boxes with the caption 10px above.
func DefaultStyle() Style {
	return Style{
		Color:      color.RGBA{R: 0, G: 255, B: 0, A: 255},
		Thickness:  2,
		TextOffset: 10,
	}
}

// Renderer draws annotations onto images.
type Renderer struct {
	style Style
	face  font.Face
}

// NewRenderer creates a renderer using the built-in 7x13 bitmap font.
func NewRenderer(style Style) *Renderer {
	if style.Thickness < 1 {
		style.Thickness = 1
	}
	return &Renderer{style: style, face: basicfont.Face7x13}
}

// Render returns a copy of src with every annotation drawn on it.
// src is never modified.
func (r *Renderer) Render(src image.Image, anns []Annotation) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, src, b.Min, draw.Src)
	for _, a := range anns {
		r.drawBox(dst, a.Box)
		r.drawText(dst, a.Box, a.Text)
	}
	return dst
}

func (r *Renderer) drawBox(dst *image.RGBA, box image.Rectangle) {
	box = box.Canon().Intersect(dst.Bounds())
	if box.Empty() {
		return
	}
	fill := image.NewUniform(r.style.Color)
	t := r.style.Thickness
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+t), // top
		image.Rect(box.Min.X, box.Max.Y-t, box.Max.X, box.Max.Y), // bottom
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+t, box.Max.Y), // left
		image.Rect(box.Max.X-t, box.Min.Y, box.Max.X, box.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(box), fill, image.Point{}, draw.Src)
	}
}

func (r *Renderer) drawText(dst *image.RGBA, box image.Rectangle, text string) {
	if text == "" {
		return
	}
	y := box.Min.Y - r.style.TextOffset
	// Keep captions of boxes touching the top edge on screen.
	if minY := dst.Bounds().Min.Y + r.face.Metrics().Ascent.Ceil(); y < minY {
		y = minY
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.style.Color),
		Face: r.face,
		Dot:  fixed.P(box.Min.X, y),
	}
	d.DrawString(text)
}

// TextWidth returns the caption width in pixels.
func (r *Renderer) TextWidth(text string) int {
	return font.MeasureString(r.face, text).Ceil()
}
