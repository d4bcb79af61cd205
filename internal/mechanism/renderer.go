package mechanism

import (
	"fmt"
	"sync/atomic"
)

// FormatStatus summarises a snapshot on one line, for example
// "TELEOP Mode - Lift  0.20 m, Arm out at 45.0 deg, Intake at 120.0 deg".
func FormatStatus(s Snapshot) string {
	state := "in "
	if s.ArmExtended {
		state = "out"
	}
	return fmt.Sprintf("%s Mode - Lift %5.2f m, Arm %s at %4.1f deg, Intake at %4.1f deg",
		s.Mode, s.LiftExtension, state, s.ArmAngle, s.IntakeAngle)
}

type accepted struct {
	snap Snapshot
	gen  uint64
}

// Renderer holds the most recently accepted snapshot and draws it on
// demand. Accept is meant to be called from the host's render context;
// Draw and Status may be called from anywhere.
type Renderer struct {
	geometry Geometry
	current  atomic.Pointer[accepted]
	seq      atomic.Uint64
}

// NewRenderer creates a renderer for g showing DefaultSnapshot until the
// first Accept.
func NewRenderer(g Geometry) (*Renderer, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{geometry: g}
	r.current.Store(&accepted{snap: DefaultSnapshot()})
	return r, nil
}

// Accept replaces the displayed snapshot.
func (r *Renderer) Accept(s Snapshot) {
	r.current.Store(&accepted{snap: s, gen: r.seq.Add(1)})
}

// Snapshot returns the displayed snapshot.
func (r *Renderer) Snapshot() Snapshot {
	return r.current.Load().snap
}

// Generation counts accepted snapshots; it is 0 before the first Accept.
func (r *Renderer) Generation() uint64 {
	return r.current.Load().gen
}

// Geometry returns the geometry being drawn.
func (r *Renderer) Geometry() Geometry {
	return r.geometry
}

// Draw projects the displayed snapshot onto a width x height surface.
func (r *Renderer) Draw(width, height int) (Frame, error) {
	cur := r.current.Load()
	f, err := r.geometry.Project(cur.snap, width, height)
	if err != nil {
		return Frame{}, err
	}
	f.Generation = cur.gen
	return f, nil
}

// Status formats the displayed snapshot.
func (r *Renderer) Status() string {
	return FormatStatus(r.Snapshot())
}
