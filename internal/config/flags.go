package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagModel   = flag.String("model", "", "Model file to overlay")
	flagLibrary = flag.String("evaluator", "", "Path to the native evaluator library")
	flagBackend = flag.String("backend", "", "GPU backend: opengl, webgpu or headless")
	flagMute    = flag.Bool("mute", false, "Disable audio output")
	flagWidth   = flag.Int("width", 0, "Window width")
	flagHeight  = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagModel != "" {
		cfg.Model.Path = *flagModel
	}
	if *flagLibrary != "" {
		cfg.Model.EvaluatorLibrary = *flagLibrary
	}
	if *flagBackend != "" {
		cfg.Graphics.Backend = *flagBackend
	}
	if *flagMute {
		cfg.Audio.Muted = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
}
