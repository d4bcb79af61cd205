package mechanism

import "image"

// Line is a stroked segment in surface pixels.
type Line struct {
	Name     string
	From, To image.Point
	Style    Style
}

// Box is an outlined rectangle in surface pixels.
type Box struct {
	Rect  image.Rectangle
	Style Style
}

// Frame is everything one draw produces. Coordinates are integer pixels
// with the origin at the top-left of the surface and y growing downward.
type Frame struct {
	Width, Height  int
	PixelsPerMeter float64
	Base           image.Point
	FrameEdge      image.Point

	// Lines holds segment strokes in geometry order, each followed by its
	// grabber prongs, then overlay rods.
	Lines   []Line
	Boxes   []Box
	Overlay bool

	Snapshot   Snapshot
	Status     string
	Generation uint64
}

// Tip returns the end point of the named segment's stroke.
func (f Frame) Tip(name string) (image.Point, bool) {
	for _, l := range f.Lines {
		if l.Name == name {
			return l.To, true
		}
	}
	return image.Point{}, false
}

// Named returns every line whose name matches.
func (f Frame) Named(name string) []Line {
	var out []Line
	for _, l := range f.Lines {
		if l.Name == name {
			out = append(out, l)
		}
	}
	return out
}
