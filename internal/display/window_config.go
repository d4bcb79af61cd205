package display

// WindowConfig describes the desktop window.
type WindowConfig struct {
	Title  string
	Width  int
	Height int
	TPS    int // update ticks per second; the mailbox is drained once per tick
}

// DefaultWindowConfig returns a 600x800 window updating 30 times a second.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Title:  "liftview",
		Width:  DefaultWidth,
		Height: DefaultHeight,
		TPS:    30,
	}
}
