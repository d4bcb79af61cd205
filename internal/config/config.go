// Package config loads the viewer's JSON configuration file. Every field is
// optional: the Get* accessors fall back to built-in defaults, so partial
// files are safe and command-line flags can override single values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/banshee-data/liftview/internal/mechanism"
	"github.com/banshee-data/liftview/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/liftview.defaults.json"

// Telemetry source kinds.
const (
	SourceGRPC   = "grpc"
	SourceSerial = "serial"
	SourceMock   = "mock"
	SourceNone   = "none"
)

// SourceKinds lists the accepted values of the source field.
func SourceKinds() []string {
	return []string{SourceGRPC, SourceSerial, SourceMock, SourceNone}
}

// Built-in defaults, used when a field is absent.
const (
	defaultSource        = SourceGRPC
	defaultGRPCTarget    = "localhost:5810"
	defaultSerialPort    = "/dev/ttyACM0"
	defaultListenAddr    = "localhost:8090"
	defaultWindowWidth   = 600
	defaultWindowHeight  = 800
	defaultInterval      = 100 * time.Millisecond
	defaultAcceptTimeout = time.Second
)

// ViewerConfig is the root of the viewer's configuration file.
type ViewerConfig struct {
	// Telemetry
	Source     *string                `json:"source,omitempty"` // grpc, serial, mock or none
	GRPCTarget *string                `json:"grpc_target,omitempty"`
	ClientID   *string                `json:"client_id,omitempty"`
	SerialPort *string                `json:"serial_port,omitempty"`
	Serial     *serialmux.PortOptions `json:"serial,omitempty"`

	// Rendering
	Preset       *string `json:"preset,omitempty"`
	WindowWidth  *int    `json:"window_width,omitempty"`
	WindowHeight *int    `json:"window_height,omitempty"`
	Headless     *bool   `json:"headless,omitempty"`

	// Web host; an empty string disables it.
	ListenAddr *string `json:"listen_addr,omitempty"`
	CaptureDir *string `json:"capture_dir,omitempty"` // enables POST /api/capture

	// Sampling
	Interval      *string `json:"interval,omitempty"`       // duration string like "100ms"
	AcceptTimeout *string `json:"accept_timeout,omitempty"` // duration string like "1s"
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyViewerConfig returns a ViewerConfig with all fields set to nil.
func EmptyViewerConfig() *ViewerConfig {
	return &ViewerConfig{}
}

// LoadViewerConfig loads a ViewerConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Unknown fields are
// rejected so that typos do not silently fall back to defaults.
func LoadViewerConfig(path string) (*ViewerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := EmptyViewerConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *ViewerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/ or cmd/liftview/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadViewerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *ViewerConfig) Validate() error {
	if c.Source != nil && !slices.Contains(SourceKinds(), *c.Source) {
		return fmt.Errorf("source must be one of %v, got %q", SourceKinds(), *c.Source)
	}
	if c.Preset != nil {
		if _, err := mechanism.Preset(*c.Preset); err != nil {
			return err
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	if c.WindowWidth != nil && *c.WindowWidth <= 0 {
		return fmt.Errorf("window_width must be positive, got %d", *c.WindowWidth)
	}
	if c.WindowHeight != nil && *c.WindowHeight <= 0 {
		return fmt.Errorf("window_height must be positive, got %d", *c.WindowHeight)
	}

	durations := []struct {
		name  string
		value *string
	}{
		{"interval", c.Interval},
		{"accept_timeout", c.AcceptTimeout},
	}
	for _, d := range durations {
		if d.value == nil || *d.value == "" {
			continue
		}
		v, err := time.ParseDuration(*d.value)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.value, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
	}
	return nil
}

// GetSource returns the source kind or the default.
func (c *ViewerConfig) GetSource() string {
	if c.Source == nil {
		return defaultSource
	}
	return *c.Source
}

// GetGRPCTarget returns the grpc_target value or the default.
func (c *ViewerConfig) GetGRPCTarget() string {
	if c.GRPCTarget == nil || *c.GRPCTarget == "" {
		return defaultGRPCTarget
	}
	return *c.GRPCTarget
}

// GetClientID returns the configured client identity, or "" to have one
// generated.
func (c *ViewerConfig) GetClientID() string {
	if c.ClientID == nil {
		return ""
	}
	return *c.ClientID
}

// GetSerialPort returns the serial_port value or the default.
func (c *ViewerConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return defaultSerialPort
	}
	return *c.SerialPort
}

// GetSerialOptions returns the serial options with defaults filled in.
func (c *ViewerConfig) GetSerialOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	normalized, err := opts.Normalize()
	if err != nil {
		return serialmux.PortOptions{}
	}
	return normalized
}

// GetPreset returns the geometry preset name or the default.
func (c *ViewerConfig) GetPreset() string {
	if c.Preset == nil || *c.Preset == "" {
		return mechanism.DefaultPreset
	}
	return *c.Preset
}

// GetWindowWidth returns the window_width value or the default.
func (c *ViewerConfig) GetWindowWidth() int {
	if c.WindowWidth == nil {
		return defaultWindowWidth
	}
	return *c.WindowWidth
}

// GetWindowHeight returns the window_height value or the default.
func (c *ViewerConfig) GetWindowHeight() int {
	if c.WindowHeight == nil {
		return defaultWindowHeight
	}
	return *c.WindowHeight
}

// GetHeadless returns the headless value or the default.
func (c *ViewerConfig) GetHeadless() bool {
	if c.Headless == nil {
		return false
	}
	return *c.Headless
}

// GetListenAddr returns the web host address. An explicit empty string
// disables the web host.
func (c *ViewerConfig) GetListenAddr() string {
	if c.ListenAddr == nil {
		return defaultListenAddr
	}
	return *c.ListenAddr
}

// GetCaptureDir returns the directory frame captures are saved to, or ""
// when captures are disabled.
func (c *ViewerConfig) GetCaptureDir() string {
	if c.CaptureDir == nil {
		return ""
	}
	return *c.CaptureDir
}

// GetInterval parses and returns the sampling interval.
func (c *ViewerConfig) GetInterval() time.Duration {
	return parseDuration(c.Interval, defaultInterval)
}

// GetAcceptTimeout parses and returns how long the sampler waits for the
// render side to accept a snapshot.
func (c *ViewerConfig) GetAcceptTimeout() time.Duration {
	return parseDuration(c.AcceptTimeout, defaultAcceptTimeout)
}

func parseDuration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
