// Package playback keeps motion, audio and camera timelines in step and drives
// the evaluator once per tick.
package playback

import (
	"math"
	"time"
)

// FrameRate is the nominal animation rate. Frame numbers are always expressed at this rate.
const FrameRate = 30.0

// Clock advances the motion frame from wall-clock time.
type Clock struct {
	now func() time.Time

	frame      float32
	lastSample time.Time
	hasSample  bool

	active     bool
	motionPath string
	loop       bool
	ended      bool // edge, consumed by ConsumeMotionEnded
	endRaised  bool // set once per end event

	blendHold     float32
	blendDuration float32
}

// NewClock returns a clock sampling time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// SetTimeSource replaces the wall-clock source. Used by tests and fixed-step hosts.
func (c *Clock) SetTimeSource(now func() time.Time) {
	c.now = now
	c.hasSample = false
}

// Tick samples the wall clock and advances the frame. The first tick after a
// reset yields dt=0.
func (c *Clock) Tick() (frame, dt float32) {
	now := c.now()
	if c.hasSample {
		dt = float32(now.Sub(c.lastSample).Seconds())
		if dt < 0 {
			dt = 0
		}
	}
	c.lastSample = now
	c.hasSample = true

	c.frame += dt * FrameRate
	return c.frame, dt
}

// Reset zeroes the frame and drops the wall-clock reference so stale elapsed
// time is not applied on the next tick.
func (c *Clock) Reset() {
	c.frame = 0
	c.hasSample = false
}

// Frame returns the current clock frame.
func (c *Clock) Frame() float32 { return c.frame }

// SetFrame overrides the clock frame, e.g. from the audio position.
func (c *Clock) SetFrame(frame float32) { c.frame = frame }

// Start marks a motion as active and clears any pending end edge.
func (c *Clock) Start(motionPath string, loop bool) {
	c.active = true
	c.motionPath = motionPath
	c.loop = loop
	c.ended = false
	c.endRaised = false
}

// Stop deactivates the current motion.
func (c *Clock) Stop() {
	c.active = false
	c.motionPath = ""
	c.loop = false
	c.ended = false
	c.endRaised = false
}

// Active reports whether a motion is playing.
func (c *Clock) Active() bool { return c.active }

// MotionPath returns the active motion path.
func (c *Clock) MotionPath() string { return c.motionPath }

// Loop reports the loop flag of the active motion.
func (c *Clock) Loop() bool { return c.loop }

// Finished reports whether the active non-looping motion reached its end.
func (c *Clock) Finished() bool { return c.endRaised }

// ArmPhysicsBlend starts the physics ramp after a pose discontinuity.
func (c *Clock) ArmPhysicsBlend(duration float32) {
	if duration <= 0 {
		c.blendHold = 0
		c.blendDuration = 0
		return
	}
	c.blendHold = duration
	c.blendDuration = duration
}

// Blending reports whether the physics ramp is still running.
func (c *Clock) Blending() bool { return c.blendHold > 0 }

// PhysicsDt scales dt while the physics ramp is active. The result is always
// within [0, dt] and approaches dt as the ramp decays.
func (c *Clock) PhysicsDt(dt float32) float32 {
	if c.blendHold <= 0 || c.blendDuration <= 0 {
		return dt
	}
	scale := 1 - c.blendHold/c.blendDuration
	if scale < 0 {
		scale = 0
	}
	c.blendHold -= dt
	if c.blendHold < 0 {
		c.blendHold = 0
	}
	return dt * scale
}

// HandleEndFrame wraps or ends the motion once the frame reaches endFrame.
// onLoop runs after a wrap. A non-looping motion raises the end edge once and
// then holds at endFrame.
func (c *Clock) HandleEndFrame(endFrame float32, onLoop func()) {
	if !c.active || endFrame <= 0 || c.frame < endFrame {
		return
	}
	if c.loop {
		c.frame = float32(math.Mod(float64(c.frame), float64(endFrame)))
		if onLoop != nil {
			onLoop()
		}
		return
	}
	c.frame = endFrame
	if !c.endRaised {
		c.endRaised = true
		c.ended = true
	}
}

// ConsumeMotionEnded returns true once per non-looping motion completion.
func (c *Clock) ConsumeMotionEnded() bool {
	if !c.ended {
		return false
	}
	c.ended = false
	return true
}
