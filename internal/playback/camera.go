package playback

import (
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/evaluator"
	"github.com/Faultbox/mmd-overlay/internal/logger"
)

// CameraState is the latest evaluated camera track.
type CameraState struct {
	Active      bool
	TrackPath   string
	Interest    [3]float32
	Rotation    [3]float32
	Distance    float32
	FieldOfView float32
}

// CameraTrack evaluates a camera animation independently of motion and audio.
type CameraTrack struct {
	ev    evaluator.CameraEvaluator
	state CameraState
}

// NewCameraTrack returns an inactive camera track controller.
func NewCameraTrack(ev evaluator.CameraEvaluator) *CameraTrack {
	return &CameraTrack{ev: ev}
}

// Load activates the camera track at path.
func (c *CameraTrack) Load(path string) bool {
	if c.state.Active {
		c.Clear()
	}
	if path == "" || !c.ev.LoadCameraTrack(path) {
		logger.Warn("camera track failed to load", zap.String("path", path))
		return false
	}
	c.state = CameraState{Active: true, TrackPath: path}
	return true
}

// Clear releases the evaluator's camera resource and deactivates the track.
func (c *CameraTrack) Clear() {
	if c.state.Active {
		c.ev.ClearCamera()
	}
	c.Reset()
}

// Reset only drops local state. Used when the evaluator is being torn down anyway.
func (c *CameraTrack) Reset() {
	c.state = CameraState{}
}

// Evaluate samples the track at frame. On failure the track deactivates and
// the previous sample is kept; callers must check Active.
func (c *CameraTrack) Evaluate(frame float32) CameraState {
	if !c.state.Active {
		return c.state
	}
	sample, ok := c.ev.EvaluateCamera(frame)
	if !ok {
		logger.Warn("camera track evaluation failed", zap.String("path", c.state.TrackPath))
		c.state.Active = false
		return c.state
	}
	c.state.Interest = sample.Interest
	c.state.Rotation = sample.Rotation
	c.state.Distance = sample.Distance
	c.state.FieldOfView = sample.FieldOfView
	return c.state
}

// State returns the last evaluated camera state.
func (c *CameraTrack) State() CameraState { return c.state }
