// Package config handles overlay configuration loading and management.
package config

import (
	"fmt"
	"strings"
)

// Config holds all overlay settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Audio    AudioConfig    `yaml:"audio"`
	Model    ModelConfig    `yaml:"model"`
	Playback PlaybackConfig `yaml:"playback"`
	Slots    []SlotConfig   `yaml:"slots"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GPU backend names accepted by GraphicsConfig.Backend.
const (
	BackendOpenGL   = "opengl"
	BackendWebGPU   = "webgpu"
	BackendHeadless = "headless"
)

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Backend     string `yaml:"backend"`
	VSync       bool   `yaml:"vsync"`
	FPSLimit    int    `yaml:"fps_limit"`
	Borderless  bool   `yaml:"borderless"`
	AlwaysOnTop bool   `yaml:"always_on_top"`
}

// AudioConfig holds audio settings.
type AudioConfig struct {
	Volume float32 `yaml:"volume"`
	Muted  bool    `yaml:"muted"`
}

// EffectiveVolume returns the playback volume with mute applied.
func (a AudioConfig) EffectiveVolume() float64 {
	if a.Muted {
		return 0
	}
	return float64(a.Volume)
}

// ModelConfig describes the overlay model and the native evaluator that animates it.
type ModelConfig struct {
	Path             string `yaml:"path"`
	AuxDir           string `yaml:"aux_dir"`           // Toon textures and other shared data
	BaseDir          string `yaml:"base_dir"`          // Overrides the model directory for texture lookups
	EvaluatorLibrary string `yaml:"evaluator_library"` // Shared library implementing the evaluator ABI
}

// PlaybackConfig holds blend timings.
type PlaybackConfig struct {
	MotionBlendSeconds  float32 `yaml:"motion_blend_seconds"`
	PhysicsBlendSeconds float32 `yaml:"physics_blend_seconds"`
}

// SlotConfig is one persisted playback row.
type SlotConfig struct {
	Slot   int    `yaml:"slot"`
	Motion string `yaml:"motion"`
	Audio  string `yaml:"audio"`
	Camera string `yaml:"camera"`
	Loop   bool   `yaml:"loop"`
	Sync   bool   `yaml:"sync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:       1280,
			Height:      720,
			Backend:     BackendOpenGL,
			VSync:       true,
			FPSLimit:    0,
			Borderless:  true,
			AlwaysOnTop: true,
		},
		Audio: AudioConfig{
			Volume: 0.8,
			Muted:  false,
		},
		Model: ModelConfig{
			EvaluatorLibrary: defaultEvaluatorLibrary(),
		},
		Playback: PlaybackConfig{
			MotionBlendSeconds:  0.3,
			PhysicsBlendSeconds: 1.0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Slot returns the row with the given slot index.
func (c *Config) Slot(index int) (SlotConfig, bool) {
	for _, s := range c.Slots {
		if s.Slot == index {
			return s, true
		}
	}
	return SlotConfig{}, false
}

// Validate normalizes the backend name and clamps out-of-range values.
// Only an unknown backend is an error.
func (c *Config) Validate() error {
	backend := strings.ToLower(strings.TrimSpace(c.Graphics.Backend))
	switch backend {
	case "":
		backend = BackendOpenGL
	case BackendOpenGL, BackendWebGPU, BackendHeadless:
	default:
		return fmt.Errorf("unknown graphics backend %q", c.Graphics.Backend)
	}
	c.Graphics.Backend = backend

	if c.Graphics.FPSLimit < 0 {
		c.Graphics.FPSLimit = 0
	}
	if c.Audio.Volume < 0 {
		c.Audio.Volume = 0
	} else if c.Audio.Volume > 1 {
		c.Audio.Volume = 1
	}
	if c.Playback.MotionBlendSeconds < 0 {
		c.Playback.MotionBlendSeconds = 0
	}
	if c.Playback.PhysicsBlendSeconds < 0 {
		c.Playback.PhysicsBlendSeconds = 0
	}
	return nil
}
