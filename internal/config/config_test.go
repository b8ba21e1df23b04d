package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if cfg.Graphics.Backend != BackendOpenGL {
		t.Errorf("expected backend %q, got %q", BackendOpenGL, cfg.Graphics.Backend)
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}
	if !cfg.Graphics.Borderless || !cfg.Graphics.AlwaysOnTop {
		t.Error("expected a borderless always-on-top overlay by default")
	}

	if cfg.Audio.Volume != 0.8 {
		t.Errorf("expected volume 0.8, got %f", cfg.Audio.Volume)
	}

	if cfg.Playback.MotionBlendSeconds != 0.3 {
		t.Errorf("expected motion blend 0.3, got %f", cfg.Playback.MotionBlendSeconds)
	}
	if cfg.Playback.PhysicsBlendSeconds != 1.0 {
		t.Errorf("expected physics blend 1.0, got %f", cfg.Playback.PhysicsBlendSeconds)
	}
	if cfg.Model.EvaluatorLibrary == "" {
		t.Error("expected a default evaluator library name")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  backend: webgpu
  vsync: false
  fps_limit: 60

audio:
  volume: 0.5
  muted: true

model:
  path: "models/miku.pmx"
  aux_dir: "toon"
  evaluator_library: "/opt/mmd/libmmdeval.so"

playback:
  motion_blend_seconds: 0.5
  physics_blend_seconds: 2

slots:
  - slot: 0
    motion: "dance.vmd"
    audio: "song.wav"
    camera: "camera.vmd"
    loop: true
    sync: true
  - slot: 1
    motion: "idle.vmd"
    loop: true

logging:
  level: "debug"
  log_file: "overlay.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 1920 || cfg.Graphics.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if cfg.Graphics.Backend != BackendWebGPU {
		t.Errorf("expected backend webgpu, got %s", cfg.Graphics.Backend)
	}
	if cfg.Graphics.VSync {
		t.Error("expected vsync to be false")
	}
	if cfg.Graphics.FPSLimit != 60 {
		t.Errorf("expected fps limit 60, got %d", cfg.Graphics.FPSLimit)
	}

	if !cfg.Audio.Muted {
		t.Error("expected muted to be true")
	}
	if v := cfg.Audio.EffectiveVolume(); v != 0 {
		t.Errorf("expected muted effective volume 0, got %f", v)
	}

	if cfg.Model.Path != "models/miku.pmx" {
		t.Errorf("expected model path, got %s", cfg.Model.Path)
	}
	if cfg.Model.EvaluatorLibrary != "/opt/mmd/libmmdeval.so" {
		t.Errorf("unexpected evaluator library %s", cfg.Model.EvaluatorLibrary)
	}

	if cfg.Playback.PhysicsBlendSeconds != 2 {
		t.Errorf("expected physics blend 2, got %f", cfg.Playback.PhysicsBlendSeconds)
	}

	if len(cfg.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(cfg.Slots))
	}
	s, ok := cfg.Slot(0)
	if !ok {
		t.Fatal("slot 0 missing")
	}
	if s.Motion != "dance.vmd" || s.Audio != "song.wav" || s.Camera != "camera.vmd" || !s.Loop || !s.Sync {
		t.Errorf("unexpected slot 0: %+v", s)
	}
	if _, ok := cfg.Slot(7); ok {
		t.Error("slot 7 should not exist")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
graphics:
  width: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Fatal("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Model.Path = "model.pmx"
	cfg.SetSlot(SlotConfig{Slot: 2, Motion: "b.vmd"})
	cfg.SetSlot(SlotConfig{Slot: 0, Motion: "a.vmd", Loop: true})
	cfg.SetSlot(SlotConfig{Slot: 2, Motion: "c.vmd"})

	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if loaded.Model.Path != "model.pmx" {
		t.Errorf("expected model.pmx, got %s", loaded.Model.Path)
	}
	if len(loaded.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(loaded.Slots))
	}
	if loaded.Slots[0].Slot != 0 || loaded.Slots[1].Motion != "c.vmd" {
		t.Errorf("unexpected slots after save: %+v", loaded.Slots)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "backend flag",
			setup: func() { *flagBackend = BackendHeadless },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Backend != BackendHeadless {
					t.Errorf("expected headless backend, got %s", cfg.Graphics.Backend)
				}
			},
			teardown: func() { *flagBackend = "" },
		},
		{
			name:  "mute flag",
			setup: func() { *flagMute = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Audio.EffectiveVolume() != 0 {
					t.Error("expected muted audio")
				}
			},
			teardown: func() { *flagMute = false },
		},
		{
			name: "model and evaluator flags",
			setup: func() {
				*flagModel = "alt.pmx"
				*flagLibrary = "./libalt.so"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Model.Path != "alt.pmx" {
					t.Errorf("expected alt.pmx, got %s", cfg.Model.Path)
				}
				if cfg.Model.EvaluatorLibrary != "./libalt.so" {
					t.Errorf("expected ./libalt.so, got %s", cfg.Model.EvaluatorLibrary)
				}
			},
			teardown: func() {
				*flagModel = ""
				*flagLibrary = ""
			},
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 || cfg.Graphics.Height != 1440 {
					t.Errorf("expected 2560x1440, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		verify  func(*testing.T, *Config)
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "backend case and empty",
			mutate: func(c *Config) { c.Graphics.Backend = " WebGPU " },
			verify: func(t *testing.T, c *Config) {
				if c.Graphics.Backend != BackendWebGPU {
					t.Errorf("expected webgpu, got %q", c.Graphics.Backend)
				}
			},
		},
		{
			name:   "empty backend",
			mutate: func(c *Config) { c.Graphics.Backend = "" },
			verify: func(t *testing.T, c *Config) {
				if c.Graphics.Backend != BackendOpenGL {
					t.Errorf("expected opengl, got %q", c.Graphics.Backend)
				}
			},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Graphics.Backend = "vulkan" },
			wantErr: true,
		},
		{
			name: "clamps",
			mutate: func(c *Config) {
				c.Audio.Volume = 1.5
				c.Graphics.FPSLimit = -3
				c.Playback.MotionBlendSeconds = -1
				c.Playback.PhysicsBlendSeconds = -1
			},
			verify: func(t *testing.T, c *Config) {
				if c.Audio.Volume != 1 {
					t.Errorf("expected volume 1, got %f", c.Audio.Volume)
				}
				if c.Graphics.FPSLimit != 0 {
					t.Errorf("expected fps limit 0, got %d", c.Graphics.FPSLimit)
				}
				if c.Playback.MotionBlendSeconds != 0 || c.Playback.PhysicsBlendSeconds != 0 {
					t.Errorf("expected zero blends, got %+v", c.Playback)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}
