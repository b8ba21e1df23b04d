package playback

import (
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/evaluator"
	"github.com/Faultbox/mmd-overlay/internal/logger"
)

// Session errors.
var (
	ErrNoModel      = errors.New("playback: no model configured")
	ErrNotReady     = errors.New("playback: model not loaded")
	ErrMotionFailed = errors.New("playback: motion failed to load")
)

// State is the coarse playback state.
type State int

const (
	StateIdle     State = iota // no model loaded
	StateReady                 // model loaded, no motion
	StatePlaying               // motion active
	StateBlending              // motion active, physics ramp running
	StateEnded                 // non-looping motion finished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateBlending:
		return "blending"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Session.
type Options struct {
	ModelPath           string
	AuxDir              string
	MotionBlendSeconds  float32
	PhysicsBlendSeconds float32
}

// DefaultOptions returns the standard blend timings.
func DefaultOptions() Options {
	return Options{
		MotionBlendSeconds:  0.3,
		PhysicsBlendSeconds: 1.0,
	}
}

// PlayRequest describes one motion start. Audio and camera are optional.
type PlayRequest struct {
	Motion     string
	Audio      string
	Camera     string
	Loop       bool
	SyncAudio  bool
	KeepCamera bool // keep the current camera track when Camera is empty
}

// Session owns one overlay model and its timelines. All methods must be
// called from the tick thread except RequestRescan.
type Session struct {
	ev   evaluator.Evaluator
	caps evaluator.Capabilities
	opts Options

	model   *evaluator.Model
	version uint64

	clock  *Clock
	audio  *AudioSync
	camera *CameraTrack

	motionEndFrame float32
	blendRequested bool
	evalFrame      float32
	physicsDt      float32

	rescan atomic.Bool
}

// NewSession creates a session. Capabilities are read once here.
func NewSession(ev evaluator.Evaluator, player AudioPlayer, opts Options) *Session {
	return &Session{
		ev:     ev,
		caps:   ev.Capabilities(),
		opts:   opts,
		clock:  NewClock(),
		audio:  NewAudioSync(player),
		camera: NewCameraTrack(ev),
	}
}

// Clock exposes the motion clock, mainly to swap the time source.
func (s *Session) Clock() *Clock { return s.clock }

// Model returns the loaded model or nil.
func (s *Session) Model() *evaluator.Model { return s.model }

// Ready reports whether a model is loaded.
func (s *Session) Ready() bool { return s.model != nil }

// ModelVersion increases every time a model is (re)loaded.
func (s *Session) ModelVersion() uint64 { return s.version }

// SetModelPath changes the model used by the next LoadModel.
func (s *Session) SetModelPath(path, auxDir string) {
	s.opts.ModelPath = path
	s.opts.AuxDir = auxDir
}

// LoadModel (re)loads the configured model. On failure the session stays idle.
func (s *Session) LoadModel() error {
	if s.opts.ModelPath == "" {
		return ErrNoModel
	}
	s.unload(true)

	m, err := evaluator.Open(s.ev, s.opts.ModelPath, s.opts.AuxDir)
	if err != nil {
		logger.Warn("model load failed", zap.String("path", s.opts.ModelPath), zap.Error(err))
		return err
	}
	s.model = m
	s.version++
	s.clock.Reset()
	s.clock.ArmPhysicsBlend(s.opts.PhysicsBlendSeconds)

	logger.Info("model loaded",
		zap.String("path", s.opts.ModelPath),
		zap.Uint64("version", s.version),
	)
	return nil
}

// Unload releases the model and all dependent playback state.
func (s *Session) Unload() {
	s.unload(true)
}

// Close shuts the session down. The evaluator is being torn down with it, so
// the camera track only drops its local state.
func (s *Session) Close() {
	s.unload(false)
}

func (s *Session) unload(releaseCamera bool) {
	s.audio.Reset()
	if releaseCamera {
		s.camera.Clear()
	} else {
		s.camera.Reset()
	}
	s.clock.Stop()
	s.clock.Reset()
	s.motionEndFrame = 0
	s.evalFrame = 0
	s.physicsDt = 0
	if s.model != nil {
		s.model.Close()
		s.model = nil
	}
}

// PlayMotion starts a motion with optional audio and camera. The model is
// loaded first if needed. Failures leave the session in a valid state.
func (s *Session) PlayMotion(req PlayRequest) error {
	if s.model == nil {
		if err := s.LoadModel(); err != nil {
			return err
		}
	}

	s.audio.Reset()
	if !req.KeepCamera || req.Camera != "" {
		s.camera.Clear()
	}

	blend := s.clock.Active() || s.blendRequested
	if !s.addMotion(req.Motion, blend) {
		s.clock.Stop()
		s.motionEndFrame = 0
		return fmt.Errorf("%w: %s", ErrMotionFailed, req.Motion)
	}
	s.blendRequested = false
	if blend {
		s.clock.ArmPhysicsBlend(s.opts.PhysicsBlendSeconds)
	}

	s.clock.Reset()
	s.clock.Start(req.Motion, req.Loop)
	s.motionEndFrame = s.model.MotionEndFrame()

	// Prime the evaluator so the first rendered frame is not stale.
	s.evalFrame = 0
	s.physicsDt = 0
	s.model.Evaluate(0, 0)

	if req.Camera != "" {
		s.camera.Load(req.Camera)
	}
	if req.Audio != "" {
		s.audio.Start(req.Audio, req.Loop, req.SyncAudio, s.motionEndFrame)
	}

	logger.Info("motion started",
		zap.String("motion", req.Motion),
		zap.Float32("end_frame", s.motionEndFrame),
		zap.Bool("loop", req.Loop),
		zap.Bool("blend", blend),
	)
	return nil
}

func (s *Session) addMotion(path string, blend bool) bool {
	if blend && s.caps.MotionBlend {
		if s.model.AddMotionBlend(path, s.opts.MotionBlendSeconds) {
			return true
		}
		logger.Debug("motion blend failed, falling back to hard cut", zap.String("motion", path))
	}
	return s.model.AddMotion(path)
}

// ResetToDefaultPose eases the model back to its bind pose.
func (s *Session) ResetToDefaultPose() error {
	if s.model == nil {
		return ErrNotReady
	}
	s.audio.Reset()
	s.camera.Clear()

	if !(s.caps.BlendToDefault && s.model.BlendToDefault(s.opts.MotionBlendSeconds)) {
		logger.Debug("blend to default unavailable, reloading model")
		if err := s.LoadModel(); err != nil {
			return err
		}
	}

	s.clock.Stop()
	s.clock.Reset()
	s.motionEndFrame = 0
	s.blendRequested = true
	s.clock.ArmPhysicsBlend(s.opts.PhysicsBlendSeconds)
	return nil
}

// Tick advances all timelines and evaluates the model once.
func (s *Session) Tick() {
	if s.model == nil {
		return
	}

	frame, dt := s.clock.Tick()
	frame, dt = s.audio.UpdateFrame(frame, dt)
	s.clock.SetFrame(frame)

	// Hold the last motion pose while longer audio keeps playing.
	hold := s.audio.LongerThanMotion() && s.motionEndFrame > 0 && frame >= s.motionEndFrame
	if hold {
		dt = 0
	}

	physicsDt := s.clock.PhysicsDt(dt)

	endFrame := s.motionEndFrame
	if s.audio.Active() && s.audio.LongerThanMotion() && s.audio.Synced() {
		endFrame = s.audio.EndFrame()
	}
	s.clock.HandleEndFrame(endFrame, s.audio.OnMotionLoop)

	if s.audio.Active() && !s.audio.LongerThanMotion() && s.audio.Synced() &&
		s.audio.EndFrame() > 0 && s.clock.Frame() >= s.audio.EndFrame() {
		s.audio.Stop()
	}

	clockFrame := s.clock.Frame()
	s.camera.Evaluate(clockFrame)

	evalFrame := clockFrame
	if hold && evalFrame > s.motionEndFrame {
		evalFrame = s.motionEndFrame
	}
	s.evalFrame = evalFrame
	s.physicsDt = physicsDt
	s.model.Evaluate(evalFrame, physicsDt)
}

// ConsumeMotionEnded returns true once per non-looping motion completion.
func (s *Session) ConsumeMotionEnded() bool { return s.clock.ConsumeMotionEnded() }

// State reports the coarse playback state.
func (s *Session) State() State {
	switch {
	case s.model == nil:
		return StateIdle
	case !s.clock.Active():
		return StateReady
	case s.clock.Finished():
		return StateEnded
	case s.clock.Blending():
		return StateBlending
	default:
		return StatePlaying
	}
}

// Frame returns the clock frame.
func (s *Session) Frame() float32 { return s.clock.Frame() }

// EvalFrame returns the frame passed to the evaluator on the last tick.
func (s *Session) EvalFrame() float32 { return s.evalFrame }

// PhysicsDt returns the physics step passed to the evaluator on the last tick.
func (s *Session) PhysicsDt() float32 { return s.physicsDt }

// MotionEndFrame returns the active motion's own end frame.
func (s *Session) MotionEndFrame() float32 { return s.motionEndFrame }

// Audio exposes the audio sync controller.
func (s *Session) Audio() *AudioSync { return s.audio }

// Camera returns the last evaluated camera track state.
func (s *Session) Camera() CameraState { return s.camera.State() }

// SetVolume sets the audio volume.
func (s *Session) SetVolume(volume float64) { s.audio.SetVolume(volume) }

// SetBoneRotation applies an additive rotation to a named bone, if the
// evaluator supports it and the bone exists.
func (s *Session) SetBoneRotation(name string, pitch, yaw, roll float32) bool {
	if s.model == nil || !s.caps.BoneRotation || !s.model.HasBone(name) {
		return false
	}
	return s.model.SetBoneAdditiveRotation(name, pitch, yaw, roll)
}

// RequestRescan flags that the asset list changed. Safe from any goroutine.
func (s *Session) RequestRescan() { s.rescan.Store(true) }

// TakeRescan returns and clears the rescan flag.
func (s *Session) TakeRescan() bool { return s.rescan.Swap(false) }
