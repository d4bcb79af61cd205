//go:build !cgo

package display

import (
	"context"
	"errors"
)

// RunWindow is unavailable without cgo; use the headless web host instead.
func RunWindow(_ context.Context, _ *Host, _ WindowConfig) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}
