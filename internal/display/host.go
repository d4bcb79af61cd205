package display

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/monitoring"
	"github.com/banshee-data/liftview/internal/sampler"
)

// Default surface size for hosts that have no window to measure: a
// portrait frame, taller than wide.
const (
	DefaultWidth  = 600
	DefaultHeight = 800
)

// Host is the render context of the headless viewer. It owns the only
// consumer of the mailbox: every drained snapshot goes to the renderer and
// produces exactly one redraw, as does every resize.
type Host struct {
	renderer *mechanism.Renderer
	mailbox  *sampler.Mailbox
	log      monitoring.Logger

	mu      sync.RWMutex
	width   int
	height  int
	frame   mechanism.Frame
	hasGood bool
	lastErr error
	resized bool

	redraws  atomic.Uint64
	failures atomic.Uint64
}

// NewHost draws the initial frame for the renderer's default snapshot.
func NewHost(r *mechanism.Renderer, mb *sampler.Mailbox, width, height int) *Host {
	h := &Host{
		renderer: r,
		mailbox:  mb,
		log:      monitoring.Prefixed("Render"),
		width:    width,
		height:   height,
	}
	h.mu.Lock()
	h.redrawLocked()
	h.mu.Unlock()
	return h
}

// Run services the mailbox until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.mailbox.Wake():
			h.Step()
		}
	}
}

// Step drains the mailbox and redraws if a snapshot arrived or the surface
// was resized. It reports whether a redraw happened.
func (h *Host) Step() bool {
	drained := h.mailbox.Drain(h.renderer.Accept)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !drained && !h.resized {
		return false
	}
	h.resized = false
	h.redrawLocked()
	return true
}

// Resize changes the surface size; the next Step redraws.
func (h *Host) Resize(width, height int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if width == h.width && height == h.height {
		return
	}
	h.width, h.height = width, height
	h.resized = true
}

func (h *Host) redrawLocked() {
	h.redraws.Add(1)
	f, err := h.renderer.Draw(h.width, h.height)
	if err != nil {
		h.failures.Add(1)
		if h.lastErr == nil || h.lastErr.Error() != err.Error() {
			h.log.Printf("keeping last frame: %v", err)
		}
		h.lastErr = err
		return
	}
	h.frame = f
	h.hasGood = true
	h.lastErr = nil
}

// Frame returns the last good frame. After a failed redraw the error text
// replaces the status line and the error is returned alongside.
func (h *Host) Frame() (mechanism.Frame, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	f := h.frame
	if h.lastErr != nil {
		f.Status = errorStatus(h.lastErr)
	}
	if !h.hasGood && h.lastErr == nil {
		return f, fmt.Errorf("%w: nothing drawn yet", mechanism.ErrRenderFailure)
	}
	return f, h.lastErr
}

// FrameAt draws the current snapshot at a one-off size without touching the
// cached frame.
func (h *Host) FrameAt(width, height int) (mechanism.Frame, error) {
	return h.renderer.Draw(width, height)
}

// Renderer returns the renderer the host feeds.
func (h *Host) Renderer() *mechanism.Renderer { return h.renderer }

// HostStats counts redraw attempts and failures.
type HostStats struct {
	Redraws  uint64 `json:"redraws"`
	Failures uint64 `json:"failures"`
}

// Stats returns current counters.
func (h *Host) Stats() HostStats {
	return HostStats{Redraws: h.redraws.Load(), Failures: h.failures.Load()}
}

func errorStatus(err error) string {
	return "render error: " + err.Error()
}
