package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmd-overlay/internal/playback"
)

const eps = 1e-3

// vecNear compares per component with an absolute tolerance; mgl32's
// ApproxEqualThreshold is relative and fails against exact zeros.
func vecNear(a, b mgl32.Vec3) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func matNear(a, b mgl32.Mat4) bool {
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > eps {
			return false
		}
	}
	return true
}

func TestTrackEye(t *testing.T) {
	tests := []struct {
		name string
		st   playback.CameraState
		want mgl32.Vec3
	}{
		{
			name: "no rotation",
			st:   playback.CameraState{Interest: [3]float32{0, 10, 0}, Distance: -45},
			want: mgl32.Vec3{0, 10, -45},
		},
		{
			name: "quarter yaw",
			st:   playback.CameraState{Rotation: [3]float32{0, math.Pi / 2, 0}, Distance: 10},
			want: mgl32.Vec3{10, 0, 0},
		},
		{
			name: "roll keeps eye on axis",
			st:   playback.CameraState{Rotation: [3]float32{0, 0, 1}, Distance: 10},
			want: mgl32.Vec3{0, 0, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrackEye(tt.st); !vecNear(got, tt.want) {
				t.Errorf("TrackEye = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromTrackLooksAtInterest(t *testing.T) {
	st := playback.CameraState{
		Active:      true,
		Interest:    [3]float32{1, 12, 3},
		Rotation:    [3]float32{0.3, -0.7, 0},
		Distance:    -30,
		FieldOfView: 27,
	}
	m := FromTrack(st, 16.0/9.0)

	// The interest point lies straight ahead at the track distance.
	p := m.View.Mul4x1(mgl32.Vec3(st.Interest).Vec4(1)).Vec3()
	if !vecNear(p, mgl32.Vec3{0, 0, -30}) {
		t.Errorf("interest in view space = %v, want (0, 0, -30)", p)
	}

	want := mgl32.Perspective(mgl32.DegToRad(27), 16.0/9.0, DefaultNear, DefaultFar)
	if !matNear(m.Projection, want) {
		t.Errorf("projection mismatch")
	}
	if !matNear(m.ViewProjection, want.Mul4(m.View)) {
		t.Errorf("view-projection mismatch")
	}
}

func TestFromTrackDefaultFOV(t *testing.T) {
	m := FromTrack(playback.CameraState{Distance: 10}, 1)
	want := mgl32.Perspective(mgl32.DegToRad(DefaultFOV), 1, DefaultNear, DefaultFar)
	if !matNear(m.Projection, want) {
		t.Error("zero field of view should fall back to the default")
	}
}

func TestOrbitPosition(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = mgl32.Vec3{0, 10, 0}
	c.Distance = 20
	c.RotationX = 0
	c.RotationY = 0
	if got := c.Position(); !vecNear(got, mgl32.Vec3{0, 10, 20}) {
		t.Errorf("Position = %v", got)
	}

	c.RotationX = math.Pi / 2
	if got := c.Position(); !vecNear(got, mgl32.Vec3{0, 30, 0}) {
		t.Errorf("Position looking down = %v", got)
	}
}

func TestOrbitClamps(t *testing.T) {
	c := NewOrbitCamera()

	c.HandleDrag(0, 1e6)
	if c.RotationX != c.MaxPitch {
		t.Errorf("pitch = %f, want %f", c.RotationX, c.MaxPitch)
	}
	c.HandleDrag(0, -1e6)
	if c.RotationX != c.MinPitch {
		t.Errorf("pitch = %f, want %f", c.RotationX, c.MinPitch)
	}

	c.HandleZoom(100)
	if c.Distance != c.MinDistance {
		t.Errorf("distance = %f, want %f", c.Distance, c.MinDistance)
	}
	c.HandleZoom(-1e6)
	if c.Distance != c.MaxDistance {
		t.Errorf("distance = %f, want %f", c.Distance, c.MaxDistance)
	}
}

func TestRigSelectsTrack(t *testing.T) {
	r := NewRig()
	track := playback.CameraState{Active: true, Interest: [3]float32{0, 5, 0}, Distance: -10}

	if got := r.Matrices(track, 1).Eye; !vecNear(got, mgl32.Vec3{0, 5, -10}) {
		t.Errorf("active track eye = %v", got)
	}
	track.Active = false
	if got := r.Matrices(track, 1).Eye; !vecNear(got, r.Orbit.Position()) {
		t.Errorf("inactive track should use the orbit camera, eye = %v", got)
	}
}
