package display

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/liftview/internal/fsutil"
	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/security"
)

// ErrCaptureFormat is returned for capture names that are neither .png nor
// .svg.
var ErrCaptureFormat = errors.New("capture name must end in .png or .svg")

// Capturer saves frames as image files inside one directory.
type Capturer struct {
	fs  fsutil.FileSystem
	dir string
}

// NewCapturer saves into dir through fsys.
func NewCapturer(fsys fsutil.FileSystem, dir string) *Capturer {
	return &Capturer{fs: fsys, dir: dir}
}

// Dir returns the capture directory.
func (c *Capturer) Dir() string { return c.dir }

// Save encodes f by the extension of name and writes it to the capture
// directory. The name is sanitised and must not escape the directory. It
// returns the written path.
func (c *Capturer) Save(name string, f mechanism.Frame) (string, error) {
	name = security.SanitizeFilename(name)
	var encode func(io.Writer, mechanism.Frame) error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		encode = WritePNG
	case ".svg":
		encode = WriteSVG
	default:
		return "", fmt.Errorf("%w: %q", ErrCaptureFormat, name)
	}

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(c.dir, name)
	if err := security.ValidatePathWithinDirectory(path, c.dir); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := encode(&buf, f); err != nil {
		return "", err
	}
	if err := c.fs.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}
