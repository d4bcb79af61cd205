// Package units provides shared constants and conversion for the length
// units the console probe can print in.
package units

import (
	"fmt"
	"slices"
	"strings"
)

// Unit constants
const (
	M  = "m"
	CM = "cm"
	MM = "mm"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{M, CM, MM, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	return slices.Contains(ValidUnits, unit)
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertLength converts a length in meters to the target units.
// Telemetry publishes lift extension in meters.
func ConvertLength(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return meters * 100
	case MM:
		return meters * 1000
	case IN:
		return meters / 0.0254
	default:
		return meters // default to meters if unknown unit
	}
}

// Parse validates unit, treating "" as meters.
func Parse(unit string) (string, error) {
	if unit == "" {
		return M, nil
	}
	u := strings.ToLower(strings.TrimSpace(unit))
	if !IsValid(u) {
		return "", fmt.Errorf("invalid units %q: must be one of %s", unit, GetValidUnitsString())
	}
	return u, nil
}
