// Package app wires configuration, the evaluator, audio and the GPU backend
// into the overlay main loop.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/config"
	"github.com/Faultbox/mmd-overlay/internal/engine/audio"
	"github.com/Faultbox/mmd-overlay/internal/engine/gpu"
	"github.com/Faultbox/mmd-overlay/internal/engine/renderer"
	"github.com/Faultbox/mmd-overlay/internal/engine/window"
	"github.com/Faultbox/mmd-overlay/internal/evaluator"
	"github.com/Faultbox/mmd-overlay/internal/logger"
	"github.com/Faultbox/mmd-overlay/internal/material"
	"github.com/Faultbox/mmd-overlay/internal/overlay"
	"github.com/Faultbox/mmd-overlay/internal/playback"
)

const windowTitle = "MMD Overlay"

// App is the overlay application.
type App struct {
	cfg     *config.Config
	running bool

	window   *window.Window // nil unless the backend is opengl
	renderer *renderer.Renderer
	device   gpu.Device
	library  evaluator.Library
	player   *audio.Player
	overlay  *overlay.Overlay
}

// New creates the window (for OpenGL), the GPU device, the evaluator and the
// playback session, then loads the configured model.
func New(cfg *config.Config) (*App, error) {
	logger.Info("initializing overlay",
		zap.String("backend", cfg.Graphics.Backend),
		zap.Int("width", cfg.Graphics.Width),
		zap.Int("height", cfg.Graphics.Height),
	)

	a := &App{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var err error
	if usesWindow(cfg.Graphics.Backend) {
		// The GL device needs a current context.
		a.window, err = window.New(window.Config{
			Title:       windowTitle,
			Width:       cfg.Graphics.Width,
			Height:      cfg.Graphics.Height,
			Borderless:  cfg.Graphics.Borderless,
			AlwaysOnTop: cfg.Graphics.AlwaysOnTop,
			VSync:       cfg.Graphics.VSync,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create window: %w", err)
		}
	}

	a.device, err = gpu.Open(cfg.Graphics.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to open gpu device: %w", err)
	}

	if a.window != nil {
		a.renderer, err = renderer.New(renderer.Config{
			Width:  cfg.Graphics.Width,
			Height: cfg.Graphics.Height,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
	}

	a.library, err = evaluator.OpenLibrary(cfg.Model.EvaluatorLibrary)
	if err != nil {
		return nil, fmt.Errorf("failed to open evaluator: %w", err)
	}

	// Audio is optional; without a device the overlay still animates.
	var player playback.AudioPlayer
	if a.player, err = audio.NewPlayer(); err != nil {
		logger.Warn("audio disabled", zap.Error(err))
	} else {
		a.player.SetVolume(float64(cfg.Audio.Volume))
		a.player.SetMuted(cfg.Audio.Muted)
		player = a.player
	}

	session := playback.NewSession(a.library, player, sessionOptions(cfg))
	a.overlay = overlay.New(session, a.device, material.FileLoader, overlay.Options{
		BaseDir:       cfg.Model.BaseDir,
		SharedToonDir: cfg.Model.AuxDir,
	})
	if a.window != nil {
		a.overlay.SetAspect(a.window.Aspect())
	}

	if cfg.Model.Path != "" {
		a.reload()
	}

	ok = true
	logger.Info("overlay initialized",
		zap.String("device", a.device.Name()),
		zap.Bool("audio", a.player != nil),
	)
	return a, nil
}

// Run runs the main loop until the window closes or quit is called.
func (a *App) Run() error {
	a.running = true

	frameTime := time.Duration(0)
	if limit := a.cfg.Graphics.FPSLimit; limit > 0 {
		frameTime = time.Second / time.Duration(limit)
	} else if a.window == nil {
		frameTime = time.Second / time.Duration(playback.FrameRate)
	}

	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting overlay loop")

	for a.running {
		start := time.Now()

		if a.window != nil {
			a.handleInput(a.window.PollEvents())
			if !a.running {
				break
			}
		}

		session := a.overlay.Session()
		if session.TakeRescan() {
			a.reload()
		}

		frame, err := a.overlay.Update()
		if err != nil {
			return fmt.Errorf("update error: %w", err)
		}
		if frame.MotionEnded {
			logger.Info("motion ended", zap.Float32("frame", frame.ClockFrame))
		}

		if a.renderer != nil {
			a.renderer.Resize(a.window.GetSize())
			a.renderer.Begin()
			a.renderer.Draw(frame)
			a.renderer.End()
			a.window.SwapBuffers()
		}

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps",
				zap.Int("count", frameCount),
				zap.Stringer("state", frame.State),
				zap.Float32("frame", frame.ClockFrame),
				zap.Int("draws", len(frame.Draws)),
			)
			frameCount = 0
			fpsTimer = time.Now()
		}

		if frameTime > 0 {
			if elapsed := time.Since(start); elapsed < frameTime {
				time.Sleep(frameTime - elapsed)
			}
		}
	}

	return nil
}

// Stop makes Run return after the current tick.
func (a *App) Stop() { a.running = false }

// Overlay returns the overlay, for callers driving playback.
func (a *App) Overlay() *overlay.Overlay { return a.overlay }

// Close releases everything in reverse creation order.
func (a *App) Close() {
	logger.Info("closing overlay")

	if a.overlay != nil {
		a.overlay.Close()
	}
	if a.player != nil {
		a.player.Close()
	}
	if a.library != nil {
		if err := a.library.Close(); err != nil {
			logger.Warn("failed to close evaluator", zap.Error(err))
		}
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.device != nil {
		a.device.Close()
	}
	if a.window != nil {
		a.window.Close()
	}
}

func (a *App) handleInput(in window.Input) {
	if in.Quit {
		a.running = false
		return
	}

	orbit := a.overlay.Rig().Orbit
	if in.DragX != 0 || in.DragY != 0 {
		orbit.HandleDrag(in.DragX, in.DragY)
	}
	if in.Wheel != 0 {
		orbit.HandleZoom(in.Wheel)
	}
	a.overlay.SetAspect(a.window.Aspect())

	session := a.overlay.Session()
	if in.ResetPose {
		if err := session.ResetToDefaultPose(); err != nil {
			logger.Warn("reset pose failed", zap.Error(err))
		}
	}
	for _, path := range in.Dropped {
		a.handleDrop(path)
	}
}

// handleDrop plays a dropped motion or switches to a dropped model.
func (a *App) handleDrop(path string) {
	session := a.overlay.Session()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pmx", ".pmd":
		session.SetModelPath(path, a.cfg.Model.AuxDir)
		session.RequestRescan()
	case ".vmd":
		err := session.PlayMotion(playback.PlayRequest{Motion: path, Loop: true, KeepCamera: true})
		if err != nil {
			logger.Warn("dropped motion did not start", zap.String("path", path), zap.Error(err))
		}
	default:
		logger.Debug("ignoring dropped file", zap.String("path", path))
	}
}

// reload reloads the model after a rescan request and restarts slot 0.
func (a *App) reload() {
	session := a.overlay.Session()
	if err := session.LoadModel(); err != nil {
		if errors.Is(err, playback.ErrNoModel) {
			return
		}
		logger.Error("model reload failed", zap.Error(err))
		return
	}
	if slot, found := a.cfg.Slot(0); found {
		if err := session.PlayMotion(SlotRequest(slot)); err != nil {
			logger.Warn("slot 0 did not restart", zap.Error(err))
		}
	}
}

// SlotRequest translates a persisted slot row into a play request.
func SlotRequest(s config.SlotConfig) playback.PlayRequest {
	return playback.PlayRequest{
		Motion:    s.Motion,
		Audio:     s.Audio,
		Camera:    s.Camera,
		Loop:      s.Loop,
		SyncAudio: s.Sync && s.Audio != "",
	}
}

func sessionOptions(cfg *config.Config) playback.Options {
	return playback.Options{
		ModelPath:           cfg.Model.Path,
		AuxDir:              cfg.Model.AuxDir,
		MotionBlendSeconds:  cfg.Playback.MotionBlendSeconds,
		PhysicsBlendSeconds: cfg.Playback.PhysicsBlendSeconds,
	}
}

func usesWindow(backend string) bool {
	switch strings.ToLower(backend) {
	case "", config.BackendOpenGL, "gl":
		return true
	}
	return false
}
