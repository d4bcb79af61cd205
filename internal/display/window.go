//go:build cgo

package display

import (
	"context"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow opens a resizable desktop window and drives host from the
// window's update loop, which becomes the render context. It blocks until
// the window is closed or ctx is done.
func RunWindow(ctx context.Context, host *Host, cfg WindowConfig) error {
	g := &windowGame{ctx: ctx, host: host, width: cfg.Width, height: cfg.Height}

	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TPS)
	return ebiten.RunGame(g)
}

type windowGame struct {
	ctx  context.Context
	host *Host

	width, height int
	img           *ebiten.Image
	dirty         bool
}

func (g *windowGame) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	g.host.Resize(g.width, g.height)
	if g.host.Step() || g.img == nil {
		g.dirty = true
	}
	return nil
}

func (g *windowGame) Draw(screen *ebiten.Image) {
	if g.dirty {
		g.dirty = false
		f, _ := g.host.Frame()
		if rgba, err := Rasterize(f); err == nil {
			if g.img != nil {
				g.img.Deallocate()
			}
			g.img = ebiten.NewImageFromImage(rgba)
		}
	}
	if g.img != nil {
		screen.DrawImage(g.img, nil)
	}
}

// Layout keeps one screen pixel per window pixel, so the drawing scales with
// the window rather than being stretched.
func (g *windowGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		g.width, g.height = outsideWidth, outsideHeight
	}
	return g.width, g.height
}
