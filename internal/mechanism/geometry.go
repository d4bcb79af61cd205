package mechanism

import (
	"errors"
	"fmt"
	"image/color"
)

// Anchor selects where a segment pivots.
type Anchor int

const (
	// AnchorBase pivots at the base point near the surface's bottom-left.
	AnchorBase Anchor = iota
	// AnchorFrameEdge pivots at the robot frame edge, FrameEdge meters
	// right of the base.
	AnchorFrameEdge
	// AnchorTip pivots at the tip of an earlier segment.
	AnchorTip
)

// Pivot is the mounting point of a segment.
type Pivot struct {
	Anchor  Anchor
	Segment string // used with AnchorTip
}

// Length is a segment length in meters.
type Length struct {
	Meters float64
	// Extended replaces Meters while the arm-extended flag is set. Only
	// used when Switched is true.
	Extended  float64
	Switched  bool
	Extension Field // scalar added to the resolved length
}

func (l Length) resolve(s Snapshot) float64 {
	m := l.Meters
	if l.Switched && s.ArmExtended {
		m = l.Extended
	}
	if l.Extension != FieldNone {
		m += s.Value(l.Extension)
	}
	return m
}

// Angle is a segment direction: either fixed, or taken from a snapshot field.
type Angle struct {
	Degrees float64
	Field   Field
}

func (a Angle) resolve(s Snapshot) float64 {
	if a.Field != FieldNone {
		return s.Value(a.Field)
	}
	return a.Degrees
}

// Style is a stroke colour and width in pixels.
type Style struct {
	Color color.RGBA
	Width float64
}

// Grabber is the two-prong glyph drawn at a segment tip, counter-rotated so
// it stays perpendicular to the segment.
type Grabber struct {
	Size  float64 // meters
	Style Style
}

// Segment is one rigid link of the mechanism.
type Segment struct {
	Name    string
	Pivot   Pivot
	Length  Length
	Angle   Angle
	Style   Style
	Grabber *Grabber
}

// Scale derives pixels per meter from the surface bounds.
type Scale struct {
	Divisor float64
	ByMax   bool // use max(w, h) instead of min(w, h)
}

func (sc Scale) pixelsPerMeter(width, height int) float64 {
	dim := min(width, height)
	if sc.ByMax {
		dim = max(width, height)
	}
	return float64(dim) / sc.Divisor
}

// NodeBox is a target structure standing on the ground, X meters right of
// the frame edge.
type NodeBox struct {
	X, Width, Height float64
}

// Rod is a vertical pole X meters right of the frame edge.
type Rod struct {
	X, Bottom, Top float64
}

// Overlay is a static scene drawn relative to the frame edge while a
// snapshot field is strictly above Threshold.
type Overlay struct {
	Field     Field
	Threshold float64
	Boxes     []NodeBox
	Rods      []Rod
	BoxStyle  Style
	RodStyle  Style
}

// Active reports whether the overlay is drawn for s.
func (o *Overlay) Active(s Snapshot) bool {
	return o != nil && s.Value(o.Field) > o.Threshold
}

// Geometry is the complete description of a mechanism drawing.
type Geometry struct {
	Name        string
	Scale       Scale
	BaseDivisor int     // base x = width / BaseDivisor
	FrameEdge   float64 // meters from base to the robot frame edge
	Segments    []Segment
	Overlay     *Overlay
}

var errInvalidGeometry = errors.New("invalid geometry")

// Validate checks that the geometry can be projected.
func (g Geometry) Validate() error {
	if g.Scale.Divisor <= 0 {
		return fmt.Errorf("%w %q: scale divisor must be positive, got %v", errInvalidGeometry, g.Name, g.Scale.Divisor)
	}
	if g.BaseDivisor <= 0 {
		return fmt.Errorf("%w %q: base divisor must be positive, got %d", errInvalidGeometry, g.Name, g.BaseDivisor)
	}
	if len(g.Segments) == 0 {
		return fmt.Errorf("%w %q: no segments", errInvalidGeometry, g.Name)
	}

	seen := make(map[string]bool, len(g.Segments))
	for i, seg := range g.Segments {
		if seg.Name == "" {
			return fmt.Errorf("%w %q: segment %d has no name", errInvalidGeometry, g.Name, i)
		}
		if seen[seg.Name] {
			return fmt.Errorf("%w %q: duplicate segment %q", errInvalidGeometry, g.Name, seg.Name)
		}
		if seg.Pivot.Anchor == AnchorTip && !seen[seg.Pivot.Segment] {
			return fmt.Errorf("%w %q: segment %q pivots on %q which is not an earlier segment",
				errInvalidGeometry, g.Name, seg.Name, seg.Pivot.Segment)
		}
		seen[seg.Name] = true
	}
	return nil
}

// Lookup returns the named segment.
func (g Geometry) Lookup(name string) (Segment, bool) {
	for _, seg := range g.Segments {
		if seg.Name == name {
			return seg, true
		}
	}
	return Segment{}, false
}
