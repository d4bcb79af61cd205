package mechanism

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teleopSnapshot() Snapshot {
	return Snapshot{
		LiftExtension: 0.2,
		ArmAngle:      45.0,
		ArmExtended:   true,
		IntakeAngle:   120.0,
		Mode:          "TELEOP",
	}
}

func TestDefaultSnapshot(t *testing.T) {
	s := DefaultSnapshot()
	assert.Equal(t, 0.0, s.LiftExtension)
	assert.Equal(t, 0.0, s.ArmAngle)
	assert.False(t, s.ArmExtended)
	assert.Equal(t, 90.0, s.IntakeAngle)
	assert.Equal(t, "?", s.Mode)
}

func TestRotateRoundTrip(t *testing.T) {
	vectors := [][2]float64{{1, 0}, {0, 1}, {40, -20}, {-3.5, 7.25}, {0.2, 0.1}}
	angles := []float64{0, 30, 45, 90, 135, -60, 179.9, 360, 725}

	for _, v := range vectors {
		for _, deg := range angles {
			x := RotateX(v[0], v[1], deg)
			y := RotateY(v[0], v[1], deg)
			bx := RotateX(x, y, -deg)
			by := RotateY(x, y, -deg)
			assert.InDelta(t, v[0], bx, 1e-9, "x for %v at %v deg", v, deg)
			assert.InDelta(t, v[1], by, 1e-9, "y for %v at %v deg", v, deg)
		}
	}
}

func TestRotateQuarterTurn(t *testing.T) {
	assert.InDelta(t, 0.0, RotateX(1, 0, 90), 1e-12)
	assert.InDelta(t, 1.0, RotateY(1, 0, 90), 1e-12)
	assert.InDelta(t, -1.0, RotateX(0, 1, 90), 1e-12)
	assert.InDelta(t, 0.0, RotateY(0, 1, 90), 1e-12)
}

func TestLiftArmProjection(t *testing.T) {
	g := LiftArm()
	s := DefaultSnapshot()

	f, err := g.Project(s, 600, 800)
	require.NoError(t, err)

	assert.Equal(t, 200.0, f.PixelsPerMeter)
	assert.Equal(t, image.Pt(100, 800), f.Base)

	lift, ok := f.Tip(SegmentLift)
	require.True(t, ok)
	assert.Equal(t, image.Pt(250, 541), lift)

	arm, ok := f.Tip(SegmentArm)
	require.True(t, ok)
	assert.Equal(t, image.Pt(330, 541), arm)

	prongs := f.Named(SegmentArm + GrabberSuffix)
	require.Len(t, prongs, 2)
	want := []Line{
		{Name: "arm.grabber", From: arm, To: image.Pt(370, 521), Style: g.Segments[1].Grabber.Style},
		{Name: "arm.grabber", From: arm, To: image.Pt(370, 561), Style: g.Segments[1].Grabber.Style},
	}
	if diff := cmp.Diff(want, prongs); diff != "" {
		t.Errorf("grabber prongs mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, f.Overlay)
	assert.Empty(t, f.Boxes)
}

// liftArmTips draws the two-joint mechanism the way the first display did,
// one product chain per coordinate, so truncation can be compared exactly.
func liftArmTips(s Snapshot, width, height int) (lift, arm image.Point) {
	const degToRad = math.Pi / 180
	ppm := float64(min(width, height)) / 3.0
	liftLen := 1.5 + s.LiftExtension
	lift.X = width/6 + int(liftLen*math.Cos(60*degToRad)*ppm)
	lift.Y = height - int(liftLen*math.Sin(60*degToRad)*ppm)
	armLen := 0.4
	if s.ArmExtended {
		armLen = 0.8
	}
	arm.X = lift.X + int(math.Cos(s.ArmAngle*degToRad)*armLen*ppm)
	arm.Y = lift.Y - int(math.Sin(s.ArmAngle*degToRad)*armLen*ppm)
	return lift, arm
}

func TestLiftArmTruncatesLikeFirstDisplay(t *testing.T) {
	g := LiftArm()

	s := DefaultSnapshot()
	s.ArmAngle = -30
	f, err := g.Project(s, 570, 571)
	require.NoError(t, err)
	arm, _ := f.Tip(SegmentArm)
	assert.Equal(t, image.Pt(302, 363), arm)

	for _, size := range [][2]int{{570, 571}, {600, 800}, {333, 517}, {1024, 768}, {97, 1201}} {
		for deg := -180.0; deg <= 180; deg += 5 {
			for _, extended := range []bool{false, true} {
				s := Snapshot{LiftExtension: 0.25, ArmAngle: deg, ArmExtended: extended, IntakeAngle: 90, Mode: "AUTO"}
				f, err := g.Project(s, size[0], size[1])
				require.NoError(t, err)

				wantLift, wantArm := liftArmTips(s, size[0], size[1])
				lift, _ := f.Tip(SegmentLift)
				arm, _ := f.Tip(SegmentArm)
				assert.Equal(t, wantLift, lift, "lift at %v, %v deg", size, deg)
				assert.Equal(t, wantArm, arm, "arm at %v, %v deg, extended %v", size, deg, extended)
			}
		}
	}
}

func TestArmExtendedSelectsLength(t *testing.T) {
	g := LiftArm()
	s := DefaultSnapshot()
	s.ArmExtended = true

	f, err := g.Project(s, 600, 800)
	require.NoError(t, err)

	arm, _ := f.Tip(SegmentArm)
	assert.Equal(t, image.Pt(410, 541), arm)
}

func TestLiftExtensionIsAdditive(t *testing.T) {
	g := LiftArm()
	s := DefaultSnapshot()
	s.LiftExtension = 0.5 // 2.0 m total

	f, err := g.Project(s, 600, 800)
	require.NoError(t, err)

	lift, _ := f.Tip(SegmentLift)
	assert.Equal(t, 100+200, lift.X)
	assert.Equal(t, 800-int(2.0*200*math.Sin(math.Pi/3)), lift.Y)
}

func TestNegativeExtensionNotClamped(t *testing.T) {
	g := LiftArm()
	s := DefaultSnapshot()
	s.LiftExtension = -3.0 // lift points back through the base

	f, err := g.Project(s, 600, 800)
	require.NoError(t, err)

	lift, _ := f.Tip(SegmentLift)
	assert.Less(t, lift.X, f.Base.X)
	assert.Greater(t, lift.Y, f.Base.Y)
}

func TestIntakeDefaultIsVertical(t *testing.T) {
	g := LiftArmIntake()
	f, err := g.Project(DefaultSnapshot(), 600, 800)
	require.NoError(t, err)

	assert.Equal(t, 400.0, f.PixelsPerMeter)
	assert.Equal(t, image.Pt(75, 800), f.Base)
	assert.Equal(t, image.Pt(175, 800), f.FrameEdge)

	intake, ok := f.Tip(SegmentIntake)
	require.True(t, ok)
	assert.Equal(t, image.Pt(175, 680), intake)
	assert.False(t, f.Overlay)
}

func TestGrabberFollowsArm(t *testing.T) {
	g := LiftArm()
	for _, deg := range []float64{-90, -30, 0, 45, 90, 170} {
		s := DefaultSnapshot()
		s.ArmAngle = deg
		f, err := g.Project(s, 600, 800)
		require.NoError(t, err)

		arm, _ := f.Tip(SegmentArm)
		lift, _ := f.Tip(SegmentLift)
		armDir := [2]float64{float64(arm.X - lift.X), float64(arm.Y - lift.Y)}

		for _, p := range f.Named(SegmentArm + GrabberSuffix) {
			prong := [2]float64{float64(p.To.X - arm.X), float64(p.To.Y - arm.Y)}
			// each prong points forward along the arm by the grabber size
			along := (prong[0]*armDir[0] + prong[1]*armDir[1]) / math.Hypot(armDir[0], armDir[1])
			assert.InDelta(t, 40.0, along, 2.0, "arm at %v deg", deg)
		}
	}
}

func TestOverlayThreshold(t *testing.T) {
	g := LiftArmIntake()
	tests := []struct {
		intake float64
		want   bool
	}{
		{90.0, false},
		{109.9, false},
		{110.0, false},
		{110.0001, true},
		{120.0, true},
		{200.0, true},
	}

	for _, tt := range tests {
		s := DefaultSnapshot()
		s.IntakeAngle = tt.intake
		f, err := g.Project(s, 600, 800)
		require.NoError(t, err)

		assert.Equal(t, tt.want, f.Overlay, "intake %v", tt.intake)
		if tt.want {
			assert.Len(t, f.Boxes, 3)
			assert.Len(t, f.Named(LineRod), 2)
		} else {
			assert.Empty(t, f.Boxes)
			assert.Empty(t, f.Named(LineRod))
		}
	}
}

func TestOverlayNodesIncreaseInHeight(t *testing.T) {
	s := DefaultSnapshot()
	s.IntakeAngle = 130
	f, err := LiftArmIntake().Project(s, 600, 800)
	require.NoError(t, err)
	require.Len(t, f.Boxes, 3)

	for i, b := range f.Boxes {
		assert.Equal(t, f.FrameEdge.Y, b.Rect.Max.Y, "box %d stands on the ground", i)
		assert.GreaterOrEqual(t, b.Rect.Min.X, f.FrameEdge.X)
		if i > 0 {
			assert.Greater(t, b.Rect.Dy(), f.Boxes[i-1].Rect.Dy())
		}
	}
}

func TestProjectIsDeterministic(t *testing.T) {
	for _, g := range []Geometry{LiftArm(), LiftArmIntake()} {
		a, err := g.Project(teleopSnapshot(), 600, 800)
		require.NoError(t, err)
		b, err := g.Project(teleopSnapshot(), 600, 800)
		require.NoError(t, err)

		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s: repeated projection differs (-first +second):\n%s", g.Name, diff)
		}
	}
}

func TestEndToEndTeleop(t *testing.T) {
	r, err := NewRenderer(LiftArmIntake())
	require.NoError(t, err)

	r.Accept(teleopSnapshot())
	f, err := r.Draw(600, 800)
	require.NoError(t, err)

	assert.Equal(t, "TELEOP Mode - Lift  0.20 m, Arm out at 45.0 deg, Intake at 120.0 deg", f.Status)
	assert.Equal(t, f.Status, r.Status())
	assert.True(t, f.Overlay)
	assert.Equal(t, uint64(1), f.Generation)
}

func TestResizeKeepsProportions(t *testing.T) {
	g := LiftArmIntake()
	small, err := g.Project(teleopSnapshot(), 600, 800)
	require.NoError(t, err)
	large, err := g.Project(teleopSnapshot(), 1200, 1600)
	require.NoError(t, err)

	require.Equal(t, len(small.Lines), len(large.Lines))
	assert.Equal(t, 2*small.PixelsPerMeter, large.PixelsPerMeter)

	identical := true
	for i := range small.Lines {
		s, l := small.Lines[i], large.Lines[i]
		assert.Equal(t, s.Name, l.Name)
		for _, pair := range [][2]image.Point{{s.From, l.From}, {s.To, l.To}} {
			// truncation may lose up to a pixel per chained step at each scale
			assert.InDelta(t, 2*pair[0].X, pair[1].X, 6, "%s x", s.Name)
			assert.InDelta(t, 2*pair[0].Y, pair[1].Y, 6, "%s y", s.Name)
			if pair[0] != pair[1] {
				identical = false
			}
		}
	}
	assert.False(t, identical, "different surfaces should give different pixels")
}

func TestProjectRejectsBadInput(t *testing.T) {
	g := LiftArmIntake()

	_, err := g.Project(DefaultSnapshot(), 0, 800)
	assert.True(t, errors.Is(err, ErrRenderFailure))

	s := DefaultSnapshot()
	s.ArmAngle = math.NaN()
	_, err = g.Project(s, 600, 800)
	assert.True(t, errors.Is(err, ErrRenderFailure))

	s = DefaultSnapshot()
	s.LiftExtension = math.Inf(1)
	_, err = g.Project(s, 600, 800)
	assert.True(t, errors.Is(err, ErrRenderFailure))
}

func TestRendererDefaults(t *testing.T) {
	r, err := NewRenderer(LiftArm())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), r.Generation())
	assert.Equal(t, DefaultSnapshot(), r.Snapshot())
	assert.Equal(t, "? Mode - Lift  0.00 m, Arm in  at  0.0 deg, Intake at 90.0 deg", r.Status())
}

func TestRendererLatestWins(t *testing.T) {
	r, err := NewRenderer(LiftArm())
	require.NoError(t, err)

	first := Snapshot{LiftExtension: 0.1, ArmAngle: 10, Mode: "AUTO", IntakeAngle: 90}
	second := Snapshot{LiftExtension: 0.3, ArmAngle: -20, ArmExtended: true, Mode: "TELEOP", IntakeAngle: 115}
	r.Accept(first)
	r.Accept(second)

	assert.Equal(t, second, r.Snapshot())
	assert.Equal(t, uint64(2), r.Generation())
}

func TestGeometryValidate(t *testing.T) {
	require.NoError(t, LiftArm().Validate())
	require.NoError(t, LiftArmIntake().Validate())

	g := LiftArm()
	g.Segments[1].Pivot.Segment = "missing"
	assert.Error(t, g.Validate())

	g = LiftArm()
	g.Segments[1].Name = SegmentLift
	assert.Error(t, g.Validate())

	g = LiftArm()
	g.Scale.Divisor = 0
	assert.Error(t, g.Validate())

	g = LiftArm()
	g.BaseDivisor = 0
	assert.Error(t, g.Validate())

	_, err := NewRenderer(Geometry{Name: "empty", Scale: Scale{Divisor: 1}, BaseDivisor: 1})
	assert.Error(t, err)
}

func TestPreset(t *testing.T) {
	g, err := Preset("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPreset, g.Name)

	g, err = Preset("lift-arm")
	require.NoError(t, err)
	assert.Equal(t, "lift-arm", g.Name)
	_, hasIntake := g.Lookup(SegmentIntake)
	assert.False(t, hasIntake)

	_, err = Preset("four-bar")
	assert.Error(t, err)

	assert.Equal(t, []string{"lift-arm", "lift-arm-intake"}, PresetNames())
}
