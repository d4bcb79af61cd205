package mechanism

import (
	"fmt"
	"image/color"
	"sort"
)

// Segment names shared by the presets.
const (
	SegmentLift   = "lift"
	SegmentArm    = "arm"
	SegmentIntake = "intake"
)

// IntakeOverlayThreshold is the intake angle above which the target nodes
// are drawn.
const IntakeOverlayThreshold = 110.0

var (
	colorLift    = color.RGBA{R: 0x00, G: 0x00, B: 0xff, A: 0xff}
	colorArm     = color.RGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xff}
	colorGrabber = color.RGBA{R: 0xff, G: 0xff, B: 0x00, A: 0xff}
	colorIntake  = color.RGBA{R: 0x00, G: 0xa0, B: 0x00, A: 0xff}
	colorNode    = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	colorRod     = color.RGBA{R: 0xff, G: 0xa5, B: 0x00, A: 0xff}
)

// LiftArmIntake is the canonical three-joint mechanism: a 60° lift, an arm
// with grabber on the lift top, an intake on the frame edge and the target
// node scene while the intake is deployed past 110°.
func LiftArmIntake() Geometry {
	return Geometry{
		Name:        "lift-arm-intake",
		Scale:       Scale{Divisor: 2, ByMax: true},
		BaseDivisor: 8,
		FrameEdge:   0.25,
		Segments: []Segment{
			{
				Name:   SegmentLift,
				Pivot:  Pivot{Anchor: AnchorBase},
				Length: Length{Meters: 0.9, Extension: FieldLiftExtension},
				Angle:  Angle{Degrees: 60},
				Style:  Style{Color: colorLift, Width: 10},
			},
			{
				Name:   SegmentArm,
				Pivot:  Pivot{Anchor: AnchorTip, Segment: SegmentLift},
				Length: Length{Meters: 0.35, Extended: 0.6, Switched: true},
				Angle:  Angle{Field: FieldArmAngle},
				Style:  Style{Color: colorArm, Width: 10},
				Grabber: &Grabber{
					Size:  0.12,
					Style: Style{Color: colorGrabber, Width: 10},
				},
			},
			{
				Name:   SegmentIntake,
				Pivot:  Pivot{Anchor: AnchorFrameEdge},
				Length: Length{Meters: 0.3},
				Angle:  Angle{Field: FieldIntakeAngle},
				Style:  Style{Color: colorIntake, Width: 10},
			},
		},
		Overlay: &Overlay{
			Field:     FieldIntakeAngle,
			Threshold: IntakeOverlayThreshold,
			Boxes: []NodeBox{
				{X: 0.0, Width: 0.3, Height: 0.10},
				{X: 0.3, Width: 0.3, Height: 0.58},
				{X: 0.6, Width: 0.3, Height: 0.88},
			},
			Rods: []Rod{
				{X: 0.45, Bottom: 0.58, Top: 0.87},
				{X: 0.75, Bottom: 0.88, Top: 1.17},
			},
			BoxStyle: Style{Color: colorNode, Width: 3},
			RodStyle: Style{Color: colorRod, Width: 6},
		},
	}
}

// LiftArm is the earlier two-joint display: lift and arm with grabber, no
// intake and no overlay. It keeps its own scale convention.
func LiftArm() Geometry {
	return Geometry{
		Name:        "lift-arm",
		Scale:       Scale{Divisor: 3},
		BaseDivisor: 6,
		Segments: []Segment{
			{
				Name:   SegmentLift,
				Pivot:  Pivot{Anchor: AnchorBase},
				Length: Length{Meters: 1.5, Extension: FieldLiftExtension},
				Angle:  Angle{Degrees: 60},
				Style:  Style{Color: colorLift, Width: 10},
			},
			{
				Name:   SegmentArm,
				Pivot:  Pivot{Anchor: AnchorTip, Segment: SegmentLift},
				Length: Length{Meters: 0.4, Extended: 0.8, Switched: true},
				Angle:  Angle{Field: FieldArmAngle},
				Style:  Style{Color: colorArm, Width: 10},
				Grabber: &Grabber{
					Size:  0.2,
					Style: Style{Color: colorGrabber, Width: 10},
				},
			},
		},
	}
}

var presets = map[string]func() Geometry{
	"lift-arm-intake": LiftArmIntake,
	"lift-arm":        LiftArm,
}

// DefaultPreset names the geometry used when none is configured.
const DefaultPreset = "lift-arm-intake"

// Preset returns the named geometry.
func Preset(name string) (Geometry, error) {
	if name == "" {
		name = DefaultPreset
	}
	fn, ok := presets[name]
	if !ok {
		return Geometry{}, fmt.Errorf("unknown geometry preset %q (available: %v)", name, PresetNames())
	}
	return fn(), nil
}

// PresetNames lists the available presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
