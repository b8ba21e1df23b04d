// Package camera turns camera tracks and the free orbit camera into view and
// projection matrices.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-overlay/internal/playback"
)

// Default clip planes, in model units.
const (
	DefaultNear = 0.5
	DefaultFar  = 2000.0
	DefaultFOV  = 30.0 // degrees
)

// Matrices is what the renderer needs for one frame.
type Matrices struct {
	Eye            mgl32.Vec3
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProjection mgl32.Mat4
}

func newMatrices(eye mgl32.Vec3, view, proj mgl32.Mat4) Matrices {
	return Matrices{
		Eye:            eye,
		View:           view,
		Projection:     proj,
		ViewProjection: proj.Mul4(view),
	}
}

// trackRotation applies yaw, then roll, then pitch.
func trackRotation(rot [3]float32) mgl32.Mat4 {
	return mgl32.HomogRotate3DY(rot[1]).
		Mul4(mgl32.HomogRotate3DZ(rot[2])).
		Mul4(mgl32.HomogRotate3DX(rot[0]))
}

// TrackEye returns the eye position of a camera track sample. The eye sits at
// Distance along the rotated Z axis from the interest point.
func TrackEye(st playback.CameraState) mgl32.Vec3 {
	offset := trackRotation(st.Rotation).Mul4x1(mgl32.Vec4{0, 0, st.Distance, 0}).Vec3()
	return mgl32.Vec3(st.Interest).Add(offset)
}

// FromTrack builds matrices from a camera track sample.
func FromTrack(st playback.CameraState, aspect float32) Matrices {
	rot := trackRotation(st.Rotation)
	eye := TrackEye(st)
	up := rot.Mul4x1(mgl32.Vec4{0, 1, 0, 0}).Vec3()
	view := mgl32.LookAtV(eye, mgl32.Vec3(st.Interest), up)

	fov := st.FieldOfView
	if fov <= 0 {
		fov = DefaultFOV
	}
	proj := mgl32.Perspective(mgl32.DegToRad(fov), aspect, DefaultNear, DefaultFar)
	return newMatrices(eye, view, proj)
}

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center mgl32.Vec3

	// Spherical coordinates
	Distance  float32
	RotationX float32 // pitch, radians
	RotationY float32 // yaw, radians

	FieldOfView float32 // degrees

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera frames a standing model about 20 units tall.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Center:          mgl32.Vec3{0, 10, 0},
		Distance:        45.0,
		RotationX:       0.1,
		FieldOfView:     DefaultFOV,
		MinDistance:     2.0,
		MaxDistance:     500.0,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	pitch, yaw := float64(c.RotationX), float64(c.RotationY)
	offset := mgl32.Vec3{
		float32(math.Cos(pitch) * math.Sin(yaw)),
		float32(math.Sin(pitch)),
		float32(math.Cos(pitch) * math.Cos(yaw)),
	}
	return c.Center.Add(offset.Mul(c.Distance))
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// Matrices builds view and projection for the given aspect ratio.
func (c *OrbitCamera) Matrices(aspect float32) Matrices {
	proj := mgl32.Perspective(mgl32.DegToRad(c.FieldOfView), aspect, DefaultNear, DefaultFar)
	return newMatrices(c.Position(), c.ViewMatrix(), proj)
}

// HandleDrag updates rotation based on mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.RotationY -= deltaX * c.DragSensitivity
	c.RotationX = mgl32.Clamp(c.RotationX+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance = mgl32.Clamp(c.Distance-delta*c.Distance*c.ZoomSensitivity, c.MinDistance, c.MaxDistance)
}

// Rig picks the track camera while one is active and the orbit camera otherwise.
type Rig struct {
	Orbit *OrbitCamera
}

// NewRig returns a rig with a default orbit camera.
func NewRig() *Rig {
	return &Rig{Orbit: NewOrbitCamera()}
}

// Matrices returns the matrices for this frame.
func (r *Rig) Matrices(track playback.CameraState, aspect float32) Matrices {
	if track.Active {
		return FromTrack(track, aspect)
	}
	return r.Orbit.Matrices(aspect)
}
