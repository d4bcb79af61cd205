package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Motion is a scripted robot routine: the lift rises, the arm swings from
// stowed to scoring and extends on the way, the intake rocks past the
// overlay threshold, and the mode flips from AUTO to TELEOP halfway through.
// It drives the simulator and the viewer's mock serial source.
type Motion struct {
	Period time.Duration
}

// DefaultMotion loops every eight seconds.
func DefaultMotion() Motion { return Motion{Period: 8 * time.Second} }

// At returns every channel's value at elapsed time into the routine.
func (m Motion) At(elapsed time.Duration) map[string]any {
	period := m.Period
	if period <= 0 {
		period = DefaultMotion().Period
	}
	p := float64(elapsed%period) / float64(period)
	rise := 0.5 - 0.5*math.Cos(2*math.Pi*p) // 0 -> 1 -> 0

	mode := "AUTO"
	if p >= 0.5 {
		mode = "TELEOP"
	}
	return map[string]any{
		ChannelLiftHeight:  round(0.6*rise, 3),
		ChannelArmAngle:    round(-30+150*rise, 1),
		ChannelArmExtended: p >= 0.25 && p < 0.75,
		ChannelIntakeAngle: round(90+40*math.Sin(2*math.Pi*p), 1),
		ChannelMode:        mode,
	}
}

// Lines renders one period of the routine as serial update lines, sampled
// every step.
func (m Motion) Lines(step time.Duration) ([]string, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive, got %v", step)
	}
	period := m.Period
	if period <= 0 {
		period = DefaultMotion().Period
	}
	var lines []string
	for t := time.Duration(0); t < period; t += step {
		values := m.At(t)
		for _, name := range Channels() {
			line, err := FormatLine(name, values[name])
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// FormatLine encodes one update line, the inverse of ParseLine.
func FormatLine(name string, value any) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: missing name", ErrMalformedLine)
	}
	b, err := json.Marshal(lineUpdate{Name: name, Value: value})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	return string(b), nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
