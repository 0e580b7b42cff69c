// Package config loads run settings from a JSON, YAML or TOML file and
// merges them with command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("config: invalid")

// Config holds the rig to solve, the frame range and preview settings.
type Config struct {
	// Paths
	RigFile    string `json:"rig" yaml:"rig" toml:"rig" validate:"required"`
	OutputDir  string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	Background string `json:"background,omitempty" yaml:"background,omitempty" toml:"background,omitempty"`

	// Frames
	FrameStart int     `json:"frame_start" yaml:"frame_start" toml:"frame_start"`
	FrameEnd   int     `json:"frame_end" yaml:"frame_end" toml:"frame_end" validate:"gtefield=FrameStart"`
	FrameStep  float64 `json:"frame_step" yaml:"frame_step" toml:"frame_step" validate:"gt=0"`

	// Solve settings
	Workers   int    `json:"workers" yaml:"workers" toml:"workers" validate:"min=1,max=256"`
	Writeback bool   `json:"writeback" yaml:"writeback" toml:"writeback"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`

	// Preview settings
	RenderSize  int     `json:"render_size" yaml:"render_size" toml:"render_size" validate:"min=16,max=8192"`
	Supersample int     `json:"supersample" yaml:"supersample" toml:"supersample" validate:"min=1,max=8"`
	OrbitYaw    float64 `json:"orbit_yaw" yaml:"orbit_yaw" toml:"orbit_yaw"`
	OrbitPitch  float64 `json:"orbit_pitch" yaml:"orbit_pitch" toml:"orbit_pitch" validate:"min=-89,max=89"`
	Perspective bool    `json:"perspective" yaml:"perspective" toml:"perspective"`
	Labels      bool    `json:"labels" yaml:"labels" toml:"labels"`

	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" toml:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		FrameStart: 1,
		FrameEnd:   1,
		FrameStep:  1,
		Writeback:  true,
		OrbitYaw:   45,
		OrbitPitch: 30,
		Labels:     true,
	}
}

// Load reads a config file, picking the format from the extension. Fields
// not set in the file keep their Default values.
func Load(path string) (Config, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: expand %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config: %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	// relative paths in a file are relative to the file
	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.RigFile, &cfg.OutputDir, &cfg.Background} {
		if *p != "" && !filepath.IsAbs(*p) && !strings.HasPrefix(*p, "~") {
			*p = filepath.Join(dir, *p)
		}
	}
	return cfg, nil
}

// Resolve fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) error {
	// CLI flags override config file
	if flags.RigFile != "" {
		c.RigFile = flags.RigFile
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.Frames != nil {
		c.FrameStart, c.FrameEnd = flags.Frames[0], flags.Frames[1]
	}
	if flags.RenderSize > 0 {
		c.RenderSize = flags.RenderSize
	}
	if flags.MetricsAddr != "" {
		c.MetricsAddr = flags.MetricsAddr
	}

	for _, p := range []*string{&c.RigFile, &c.OutputDir, &c.Background} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("config: expand %s: %w", *p, err)
		}
		*p = expanded
	}

	if c.OutputDir == "" {
		base := "."
		if c.RigFile != "" {
			base = filepath.Dir(c.RigFile)
		}
		c.OutputDir = filepath.Join(base, "renders")
	}

	if c.FrameStep <= 0 {
		c.FrameStep = 1
	}
	if c.FrameEnd < c.FrameStart {
		c.FrameEnd = c.FrameStart
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RenderSize <= 0 {
		c.RenderSize = 512
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the resolved settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Frames lists the frame numbers of the configured range.
func (c *Config) Frames() []float64 {
	step := c.FrameStep
	if step <= 0 {
		step = 1
	}
	var out []float64
	for f := float64(c.FrameStart); f <= float64(c.FrameEnd)+1e-9; f += step {
		out = append(out, f)
	}
	return out
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	RigFile     string
	OutputDir   string
	Workers     int
	LogLevel    string
	Frames      *[2]int
	RenderSize  int
	MetricsAddr string
}

// ParseFrames reads "a:b" or a single frame "a".
func ParseFrames(s string) ([2]int, error) {
	var r [2]int
	a, b, found := strings.Cut(s, ":")
	if _, err := fmt.Sscan(a, &r[0]); err != nil {
		return r, fmt.Errorf("config: frames %q: %w", s, err)
	}
	r[1] = r[0]
	if found {
		if _, err := fmt.Sscan(b, &r[1]); err != nil {
			return r, fmt.Errorf("config: frames %q: %w", s, err)
		}
	}
	if r[1] < r[0] {
		return r, fmt.Errorf("config: frames %q: end before start", s)
	}
	return r, nil
}
