package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"new file", filepath.Join(dir, "frame.png"), false},
		{"nested new file", filepath.Join(dir, "a", "b", "frame.svg"), false},
		{"dot dot inside", filepath.Join(dir, "a", "..", "frame.png"), false},
		{"escape", filepath.Join(dir, "..", "frame.png"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathWithinDirectory_Symlink(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidatePathWithinDirectory(filepath.Join(link, "frame.png"), dir)
	assert.ErrorContains(t, err, "path traversal")
}

func TestValidatePathWithinDirectory_MissingSafeDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	err := ValidatePathWithinDirectory(filepath.Join(missing, "f.png"), missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "safe directory")
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"frame.png", "frame.png"},
		{"../../etc/passwd", "etc_passwd"},
		{"match 12: teleop!.svg", "match_12_teleop_.svg"},
		{"", "unknown"},
		{"...", "unknown"},
		{"ünïcode.png", "n_code.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), 128)
}
