// Package mechanism turns a telemetry snapshot of the lift, arm and intake
// into a scaled side-view line drawing.
//
// A Geometry describes the mechanism as an ordered list of segments. Each
// Draw projects the latest accepted Snapshot onto the current surface bounds
// from scratch; nothing is cached between draws apart from the snapshot
// itself.
package mechanism

import (
	"fmt"
	"math"
)

// Snapshot is the latest known value of every channel the view consumes.
// It is a value type: callers replace it wholesale, never field by field.
type Snapshot struct {
	LiftExtension float64 `json:"lift_extension"` // meters, added to the lift's base length
	ArmAngle      float64 `json:"arm_angle"`      // degrees, counter-clockwise from +x
	ArmExtended   bool    `json:"arm_extended"`
	IntakeAngle   float64 `json:"intake_angle"` // degrees, same convention as ArmAngle
	Mode          string  `json:"mode"`
}

// Default channel values used before anything has been published.
const (
	DefaultLiftExtension = 0.0
	DefaultArmAngle      = 0.0
	DefaultArmExtended   = false
	DefaultIntakeAngle   = 90.0
	DefaultMode          = "?"
)

// DefaultSnapshot is what the view shows before the first sample arrives.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		LiftExtension: DefaultLiftExtension,
		ArmAngle:      DefaultArmAngle,
		ArmExtended:   DefaultArmExtended,
		IntakeAngle:   DefaultIntakeAngle,
		Mode:          DefaultMode,
	}
}

// Field names a scalar of the snapshot that a geometry can be driven by.
type Field int

const (
	FieldNone Field = iota
	FieldLiftExtension
	FieldArmAngle
	FieldIntakeAngle
)

func (f Field) String() string {
	switch f {
	case FieldNone:
		return "none"
	case FieldLiftExtension:
		return "lift extension"
	case FieldArmAngle:
		return "arm angle"
	case FieldIntakeAngle:
		return "intake angle"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Value returns the scalar named by f, or 0 for FieldNone.
func (s Snapshot) Value(f Field) float64 {
	switch f {
	case FieldLiftExtension:
		return s.LiftExtension
	case FieldArmAngle:
		return s.ArmAngle
	case FieldIntakeAngle:
		return s.IntakeAngle
	default:
		return 0
	}
}

// Validate rejects values that cannot be projected to pixels.
func (s Snapshot) Validate() error {
	for _, f := range []Field{FieldLiftExtension, FieldArmAngle, FieldIntakeAngle} {
		v := s.Value(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite %s %v", ErrRenderFailure, f, v)
		}
	}
	return nil
}
