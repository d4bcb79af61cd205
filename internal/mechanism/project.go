package mechanism

import (
	"errors"
	"fmt"
	"image"
)

// ErrRenderFailure is returned when a snapshot or surface cannot be drawn.
// Hosts keep showing their last good frame when they see it.
var ErrRenderFailure = errors.New("render failure")

// Line names for the parts that are not segments.
const (
	GrabberSuffix = ".grabber"
	LineRod       = "rod"
)

// Project computes the frame for s on a width x height surface. All
// intermediate values are real; each is truncated toward zero when it
// becomes a pixel coordinate.
func (g Geometry) Project(s Snapshot, width, height int) (Frame, error) {
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("%w: empty surface %dx%d", ErrRenderFailure, width, height)
	}
	if err := s.Validate(); err != nil {
		return Frame{}, err
	}

	ppm := g.Scale.pixelsPerMeter(width, height)
	base := image.Point{X: width / g.BaseDivisor, Y: height}
	edge := image.Point{X: base.X + int(g.FrameEdge*ppm), Y: base.Y}

	f := Frame{
		Width:          width,
		Height:         height,
		PixelsPerMeter: ppm,
		Base:           base,
		FrameEdge:      edge,
		Lines:          make([]Line, 0, 2*len(g.Segments)),
		Snapshot:       s,
		Status:         FormatStatus(s),
	}

	tips := make(map[string]image.Point, len(g.Segments))
	for _, seg := range g.Segments {
		var pivot image.Point
		switch seg.Pivot.Anchor {
		case AnchorBase:
			pivot = base
		case AnchorFrameEdge:
			pivot = edge
		case AnchorTip:
			p, ok := tips[seg.Pivot.Segment]
			if !ok {
				return Frame{}, fmt.Errorf("%w: segment %q pivots on unknown %q", ErrRenderFailure, seg.Name, seg.Pivot.Segment)
			}
			pivot = p
		default:
			return Frame{}, fmt.Errorf("%w: segment %q has unknown anchor %d", ErrRenderFailure, seg.Name, seg.Pivot.Anchor)
		}

		deg := seg.Angle.resolve(s)
		off := reach(seg.Length.resolve(s), deg, ppm)
		tip := image.Point{X: pivot.X + int(off.X), Y: pivot.Y + int(off.Y)}
		tips[seg.Name] = tip
		f.Lines = append(f.Lines, Line{Name: seg.Name, From: pivot, To: tip, Style: seg.Style})

		if seg.Grabber != nil {
			f.Lines = append(f.Lines, grabberLines(seg, tip, deg, ppm)...)
		}
	}

	if g.Overlay.Active(s) {
		f.Overlay = true
		o := g.Overlay
		for _, b := range o.Boxes {
			r := image.Rect(
				edge.X+int(b.X*ppm), edge.Y-int(b.Height*ppm),
				edge.X+int((b.X+b.Width)*ppm), edge.Y,
			)
			f.Boxes = append(f.Boxes, Box{Rect: r, Style: o.BoxStyle})
		}
		for _, rod := range o.Rods {
			x := edge.X + int(rod.X*ppm)
			f.Lines = append(f.Lines, Line{
				Name:  LineRod,
				From:  image.Point{X: x, Y: edge.Y - int(rod.Bottom*ppm)},
				To:    image.Point{X: x, Y: edge.Y - int(rod.Top*ppm)},
				Style: o.RodStyle,
			})
		}
	}

	return f, nil
}

// grabberLines draws two prongs from tip. The prong offsets are rotated by
// the negated segment angle so they follow the segment in screen space,
// where y points down.
func grabberLines(seg Segment, tip image.Point, deg, ppm float64) []Line {
	size := seg.Grabber.Size * ppm
	name := seg.Name + GrabberSuffix
	lines := make([]Line, 0, 2)
	for _, side := range []float64{-1, 1} {
		x := size
		y := side * size / 2
		end := image.Point{
			X: int(float64(tip.X) + RotateX(x, y, -deg)),
			Y: int(float64(tip.Y) + RotateY(x, y, -deg)),
		}
		lines = append(lines, Line{Name: name, From: tip, To: end, Style: seg.Grabber.Style})
	}
	return lines
}
