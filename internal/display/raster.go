// Package display puts mechanism frames on a surface: PNG and SVG images,
// a headless render host that feeds a small web server, and a desktop
// window.
package display

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/banshee-data/liftview/internal/mechanism"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgsvg"
)

var (
	Background = color.RGBA{R: 0x1e, G: 0x1e, B: 0x24, A: 0xff}
	StatusText = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	statusBand = color.RGBA{A: 0xb4}
)

// paint strokes every box and line of f. Frame coordinates have their
// origin at the top left; vg canvases put it at the bottom left.
func paint(c vg.Canvas, f mechanism.Frame) {
	height := float64(f.Height)
	pt := func(p image.Point) vg.Point {
		return vg.Point{X: vg.Length(p.X), Y: vg.Length(height - float64(p.Y))}
	}

	for _, b := range f.Boxes {
		var p vg.Path
		p.Move(pt(image.Pt(b.Rect.Min.X, b.Rect.Min.Y)))
		p.Line(pt(image.Pt(b.Rect.Max.X, b.Rect.Min.Y)))
		p.Line(pt(image.Pt(b.Rect.Max.X, b.Rect.Max.Y)))
		p.Line(pt(image.Pt(b.Rect.Min.X, b.Rect.Max.Y)))
		p.Close()
		c.SetColor(b.Style.Color)
		c.SetLineWidth(vg.Length(b.Style.Width))
		c.Stroke(p)
	}

	for _, l := range f.Lines {
		var p vg.Path
		p.Move(pt(l.From))
		p.Line(pt(l.To))
		c.SetColor(l.Style.Color)
		c.SetLineWidth(vg.Length(l.Style.Width))
		c.Stroke(p)
	}
}

func newImageCanvas(f mechanism.Frame) (*vgimg.Canvas, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: empty frame %dx%d", mechanism.ErrRenderFailure, f.Width, f.Height)
	}
	// 72 dpi makes one vg point one pixel.
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(f.Width), vg.Length(f.Height)),
		vgimg.UseDPI(72),
		vgimg.UseBackgroundColor(Background),
	)
	paint(c, f)
	drawStatus(c.Image(), f.Status)
	return c, nil
}

// Rasterize draws f, status line included, into a new RGBA image.
func Rasterize(f mechanism.Frame) (*image.RGBA, error) {
	c, err := newImageCanvas(f)
	if err != nil {
		return nil, err
	}
	src := c.Image()
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba, nil
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba, nil
}

// WritePNG encodes f as a PNG.
func WritePNG(w io.Writer, f mechanism.Frame) error {
	c, err := newImageCanvas(f)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// WriteSVG encodes f as an SVG document. The status line becomes the
// document title.
func WriteSVG(w io.Writer, f mechanism.Frame) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: empty frame %dx%d", mechanism.ErrRenderFailure, f.Width, f.Height)
	}
	c := vgsvg.New(vg.Length(f.Width), vg.Length(f.Height))
	c.SetColor(Background)
	c.Fill(rectPath(f.Width, f.Height))
	paint(c, f)

	var buf bytes.Buffer
	if _, err := c.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to encode svg: %w", err)
	}
	doc := buf.Bytes()
	if f.Status != "" {
		doc = insertTitle(doc, f.Status)
	}
	_, err := w.Write(doc)
	return err
}

func rectPath(width, height int) vg.Path {
	var p vg.Path
	p.Move(vg.Point{})
	p.Line(vg.Point{X: vg.Length(width)})
	p.Line(vg.Point{X: vg.Length(width), Y: vg.Length(height)})
	p.Line(vg.Point{Y: vg.Length(height)})
	p.Close()
	return p
}

// insertTitle places a <title> right after the opening <svg> tag.
func insertTitle(doc []byte, title string) []byte {
	open := bytes.Index(doc, []byte("<svg"))
	if open < 0 {
		return doc
	}
	end := bytes.IndexByte(doc[open:], '>')
	if end < 0 {
		return doc
	}
	at := open + end + 1

	var t bytes.Buffer
	t.WriteString("\n<title>")
	xml.EscapeText(&t, []byte(title))
	t.WriteString("</title>")

	out := make([]byte, 0, len(doc)+t.Len())
	out = append(out, doc[:at]...)
	out = append(out, t.Bytes()...)
	return append(out, doc[at:]...)
}

// drawStatus writes text on a dark band along the top edge.
func drawStatus(dst draw.Image, text string) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	b := dst.Bounds()
	const pad = 6
	ascent := face.Metrics().Ascent.Ceil()
	band := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+ascent+2*pad)
	draw.Draw(dst, band, image.NewUniform(statusBand), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(StatusText),
		Face: face,
		Dot:  fixed.P(b.Min.X+pad, b.Min.Y+pad+ascent),
	}
	d.DrawString(text)
}
