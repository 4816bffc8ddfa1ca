// Package config loads the presenter configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"GPU_frame_presenter/renderer"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Window  Window  `toml:"window"`
	Vulkan  Vulkan  `toml:"vulkan"`
	Present Present `toml:"present"`
	Scene   Scene   `toml:"scene"`
	Debug   Debug   `toml:"debug"`
}

type Window struct {
	Title  string `toml:"title"`
	Width  int32  `toml:"width"`
	Height int32  `toml:"height"`
}

type Vulkan struct {
	Validation       bool     `toml:"validation"`
	ValidationLayers []string `toml:"validation_layers"`
	// PresentMode is one of "fifo", "mailbox" or "immediate".
	PresentMode string `toml:"present_mode"`
	// PreferredFormat is one of "bgra8_srgb", "rgba8_srgb" or "bgra8_unorm".
	PreferredFormat string `toml:"preferred_format"`
}

type Present struct {
	// FenceTimeout bounds every wait for a frame in flight. Exceeding it ends the loop.
	FenceTimeout Duration `toml:"fence_timeout"`
	// AcquireTimeout bounds a single image acquisition, "0s" waits until an image is available. Running into it
	// drops the frame.
	AcquireTimeout Duration `toml:"acquire_timeout"`
	// ExtraImages is requested on top of the surface's minimum image count.
	ExtraImages uint32 `toml:"extra_images"`
}

type Scene struct {
	ClearColor [4]float32 `toml:"clear_color"`
	// Mesh is "quad", "cube" or the path of a binary STL file.
	Mesh string `toml:"mesh"`
	// Shader is a WGSL file providing vs_main and fs_main. Empty selects the embedded default.
	Shader string `toml:"shader"`
	// SPIRV maps stage names to precompiled '.spv' files and replaces Shader when set. It holds exactly
	// the vertex and the fragment stage.
	SPIRV map[string]string `toml:"spirv"`
}

type Debug struct {
	LogFrames bool `toml:"log_frames"`
}

// Duration decodes TOML strings like "5s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Window: Window{Title: "GPU frame presenter", Width: 800, Height: 600},
		Vulkan: Vulkan{
			ValidationLayers: []string{"VK_LAYER_KHRONOS_validation"},
			PresentMode:      "fifo",
			PreferredFormat:  "bgra8_srgb",
		},
		Present: Present{
			FenceTimeout:   Duration{5 * time.Second},
			AcquireTimeout: Duration{0},
			ExtraImages:    1,
		},
		Scene: Scene{
			ClearColor: [4]float32{0, 0, 1, 1},
			Mesh:       "quad",
		},
	}
}

// Load decodes path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := Decode(b, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode decodes TOML data into cfg, keys cfg does not know are an error.
func Decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

var presentModes = []string{"fifo", "mailbox", "immediate"}

var formats = []string{"bgra8_srgb", "rgba8_srgb", "bgra8_unorm"}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window: size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if !oneOf(c.Vulkan.PresentMode, presentModes) {
		errs = append(errs, fmt.Errorf("vulkan: present_mode %q not one of %v", c.Vulkan.PresentMode, presentModes))
	}
	if !oneOf(c.Vulkan.PreferredFormat, formats) {
		errs = append(errs, fmt.Errorf("vulkan: preferred_format %q not one of %v", c.Vulkan.PreferredFormat, formats))
	}
	if c.Vulkan.Validation && len(c.Vulkan.ValidationLayers) == 0 {
		errs = append(errs, errors.New("vulkan: validation enabled without validation_layers"))
	}
	if c.Present.FenceTimeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("present: fence_timeout %v must be positive", c.Present.FenceTimeout))
	}
	if c.Present.AcquireTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("present: acquire_timeout %v is negative", c.Present.AcquireTimeout))
	}
	for i, v := range c.Scene.ClearColor {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("scene: clear_color[%d] = %v outside [0, 1]", i, v))
		}
	}
	if strings.TrimSpace(c.Scene.Mesh) == "" {
		errs = append(errs, errors.New("scene: mesh is empty"))
	}
	if len(c.Scene.SPIRV) > 0 {
		errs = append(errs, validateSPIRV(c.Scene.SPIRV)...)
	}
	return errors.Join(errs...)
}

func validateSPIRV(files map[string]string) []error {
	var errs []error
	seen := map[renderer.Stage]bool{}
	for name, path := range files {
		stage, err := renderer.ParseStage(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("scene.spirv: %w", err))
			continue
		}
		if stage != renderer.StageVertex && stage != renderer.StageFragment {
			errs = append(errs, fmt.Errorf("scene.spirv: %s stage cannot be part of a graphics pipeline", stage))
			continue
		}
		if seen[stage] {
			errs = append(errs, fmt.Errorf("scene.spirv: %s stage given twice", stage))
		}
		seen[stage] = true
		if strings.TrimSpace(path) == "" {
			errs = append(errs, fmt.Errorf("scene.spirv: %s path is empty", stage))
		}
	}
	for _, need := range []renderer.Stage{renderer.StageVertex, renderer.StageFragment} {
		if !seen[need] {
			errs = append(errs, fmt.Errorf("scene.spirv: no %s stage", need))
		}
	}
	return errs
}

// ShaderStages resolves the SPIR-V table into stage tagged paths, ordered by stage.
func (s Scene) ShaderStages() ([]renderer.ShaderSource, error) {
	sources := make([]renderer.ShaderSource, 0, len(s.SPIRV))
	for name, path := range s.SPIRV {
		stage, err := renderer.ParseStage(name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, renderer.ShaderSource{Stage: stage, Source: path})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Stage < sources[j].Stage })
	return sources, nil
}

// EnabledLayers is the validation layer list to request, empty when validation is off.
func (c Config) EnabledLayers() []string {
	if !c.Vulkan.Validation {
		return nil
	}
	return c.Vulkan.ValidationLayers
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
