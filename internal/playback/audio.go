package playback

import (
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/logger"
)

// PlaybackTimes is what the audio engine reports for the current track.
type PlaybackTimes struct {
	Delta    float32 // seconds advanced since the previous query
	Position float32 // seconds from the start of the track
	Finished bool    // a non-looping track has played to its end
}

// AudioPlayer is the audio collaborator.
type AudioPlayer interface {
	PlayLoop(path string, loop bool) bool
	Stop()
	SetVolume(volume float64)
	LengthSeconds() float64
	PlaybackTimes() (PlaybackTimes, bool)
}

// AudioSync optionally drives the animation clock from audio playback.
type AudioSync struct {
	player AudioPlayer

	active       bool
	syncToMotion bool
	path         string
	loop         bool
	endFrame     float32
	longer       bool // audio outlasts the motion and drives timing
	finished     bool
	lastObserved float32
}

// NewAudioSync wraps player. A nil player disables audio entirely.
func NewAudioSync(player AudioPlayer) *AudioSync {
	return &AudioSync{player: player}
}

// Start begins playback of path. Synced audio shorter than the motion plays
// once; the motion loop restarts it. If sync is requested and the audio is
// longer than the motion, playback is forced to loop so it stays the timing
// source.
func (a *AudioSync) Start(path string, loop, syncToMotion bool, motionEndFrame float32) bool {
	a.Reset()
	if a.player == nil || path == "" {
		return false
	}

	playLoop := loop && !syncToMotion
	if !a.player.PlayLoop(path, playLoop) {
		logger.Warn("audio failed to start", zap.String("path", path))
		return false
	}

	a.active = true
	a.path = path
	a.loop = playLoop
	a.syncToMotion = syncToMotion
	a.endFrame = float32(a.player.LengthSeconds() * FrameRate)
	a.longer = syncToMotion && a.endFrame > 0 && (motionEndFrame <= 0 || a.endFrame > motionEndFrame)

	if a.longer {
		if a.player.PlayLoop(path, true) {
			a.loop = true
		} else {
			logger.Warn("audio failed to restart in loop mode", zap.String("path", path))
			a.deactivateSync()
		}
	}

	logger.Debug("audio started",
		zap.String("path", path),
		zap.Float32("end_frame", a.endFrame),
		zap.Bool("sync", a.syncToMotion),
		zap.Bool("longer_than_motion", a.longer),
	)
	return true
}

// UpdateFrame overrides frame and dt with the audio position when sync is on.
func (a *AudioSync) UpdateFrame(frame, dt float32) (float32, float32) {
	if !a.active {
		return frame, dt
	}
	times, ok := a.player.PlaybackTimes()
	if !ok {
		if a.syncToMotion {
			logger.Warn("audio position unavailable, disabling sync", zap.String("path", a.path))
		}
		a.deactivateSync()
		return frame, dt
	}
	a.lastObserved = times.Position
	a.finished = times.Finished
	if !a.syncToMotion {
		return frame, dt
	}
	synced := float32(float64(times.Position) * FrameRate)
	// A finished track sits at its last sample, which may round below endFrame.
	if a.finished && synced < a.endFrame {
		synced = a.endFrame
	}
	return synced, times.Delta
}

// OnMotionLoop realigns audio with a motion that just wrapped.
func (a *AudioSync) OnMotionLoop() {
	if a.player == nil || a.path == "" || a.longer {
		return
	}
	if a.syncToMotion {
		a.restart(false)
		return
	}
	if !a.active || !a.loop || a.finished {
		a.restart(true)
	}
}

func (a *AudioSync) restart(loop bool) {
	if !a.player.PlayLoop(a.path, loop) {
		logger.Warn("audio failed to restart", zap.String("path", a.path))
		a.active = false
		a.deactivateSync()
		return
	}
	a.active = true
	a.loop = loop
	a.finished = false
	a.lastObserved = 0
}

// Stop halts playback but keeps the track so a motion loop can restart it.
func (a *AudioSync) Stop() {
	if a.active && a.player != nil {
		a.player.Stop()
	}
	a.active = false
}

// Reset stops playback and forgets the track.
func (a *AudioSync) Reset() {
	a.Stop()
	a.syncToMotion = false
	a.path = ""
	a.loop = false
	a.endFrame = 0
	a.longer = false
	a.finished = false
	a.lastObserved = 0
}

// SetVolume forwards to the player.
func (a *AudioSync) SetVolume(volume float64) {
	if a.player != nil {
		a.player.SetVolume(volume)
	}
}

func (a *AudioSync) deactivateSync() {
	a.syncToMotion = false
	a.longer = false
}

// Active reports whether audio is playing.
func (a *AudioSync) Active() bool { return a.active }

// Synced reports whether audio drives the clock.
func (a *AudioSync) Synced() bool { return a.syncToMotion }

// LongerThanMotion reports whether the audio outlasts the motion in sync mode.
func (a *AudioSync) LongerThanMotion() bool { return a.longer }

// EndFrame returns the audio length in frames.
func (a *AudioSync) EndFrame() float32 { return a.endFrame }

// Path returns the current audio track.
func (a *AudioSync) Path() string { return a.path }

// LastObservedTime is the most recent playback position in seconds.
func (a *AudioSync) LastObservedTime() float32 { return a.lastObserved }
