// Package overlay runs one tick of the overlay: advance playback, stream the
// deformed mesh to the GPU and build the per-submesh draw list.
package overlay

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/engine/camera"
	"github.com/Faultbox/mmd-overlay/internal/engine/gpu"
	"github.com/Faultbox/mmd-overlay/internal/logger"
	"github.com/Faultbox/mmd-overlay/internal/material"
	"github.com/Faultbox/mmd-overlay/internal/mesh"
	"github.com/Faultbox/mmd-overlay/internal/playback"
)

// DrawCall is one submesh to draw.
type DrawCall struct {
	Submesh  int
	Range    mesh.Range
	Material *material.Material
}

// Frame is everything a renderer needs for one tick. It is reused between
// ticks; copy what must outlive the next Update.
type Frame struct {
	State       playback.State
	ClockFrame  float32
	EvalFrame   float32
	MotionEnded bool

	VertexBuffer gpu.BufferID
	IndexBuffer  gpu.BufferID
	IndexWidth   int
	VertexStride int
	// Allocation changes whenever the buffers are reallocated, even if the
	// device hands back the same ids.
	Allocation int

	Draws []DrawCall

	Camera      camera.Matrices
	CameraTrack bool
}

// Options configures an Overlay.
type Options struct {
	BaseDir       string // overrides the model directory for textures
	SharedToonDir string
}

// Overlay owns the GPU side of one session.
type Overlay struct {
	session   *playback.Session
	stream    *mesh.Stream
	materials *material.Resolver
	rig       *camera.Rig
	opts      Options

	aspect float32
	frame  Frame
}

// New creates an overlay drawing session's model on dev.
func New(session *playback.Session, dev gpu.Device, loader material.TextureLoader, opts Options) *Overlay {
	return &Overlay{
		session:   session,
		stream:    mesh.NewStream(dev),
		materials: material.NewResolver(dev, loader, material.Options{SharedToonDir: opts.SharedToonDir}),
		rig:       camera.NewRig(),
		opts:      opts,
		aspect:    16.0 / 9.0,
	}
}

// Session returns the playback session.
func (o *Overlay) Session() *playback.Session { return o.session }

// Rig returns the camera rig, for orbit input.
func (o *Overlay) Rig() *camera.Rig { return o.rig }

// Stream returns the mesh stream.
func (o *Overlay) Stream() *mesh.Stream { return o.stream }

// SetAspect sets the viewport aspect ratio used for projection.
func (o *Overlay) SetAspect(aspect float32) {
	if aspect > 0 {
		o.aspect = aspect
	}
}

// Update advances playback and refreshes GPU state. A mesh upload error is
// returned with the partially filled frame; playback has still advanced.
func (o *Overlay) Update() (*Frame, error) {
	s := o.session
	s.Tick()

	f := &o.frame
	f.State = s.State()
	f.ClockFrame = s.Frame()
	f.EvalFrame = s.EvalFrame()
	f.MotionEnded = s.ConsumeMotionEnded()
	f.Draws = f.Draws[:0]

	track := s.Camera()
	f.Camera = o.rig.Matrices(track, o.aspect)
	f.CameraTrack = track.Active

	model := s.Model()
	if model == nil {
		o.stream.Release()
		f.VertexBuffer, f.IndexBuffer, f.IndexWidth = 0, 0, 0
		return f, nil
	}

	version := s.ModelVersion()
	if err := o.stream.Sync(model, version); err != nil {
		return f, fmt.Errorf("syncing mesh: %w", err)
	}
	f.VertexBuffer = o.stream.VertexBuffer()
	f.IndexBuffer = o.stream.IndexBuffer()
	f.IndexWidth = o.stream.IndexWidth()
	f.VertexStride = mesh.VertexSize
	f.Allocation = o.stream.Allocations()

	baseDir := o.opts.BaseDir
	if baseDir == "" {
		baseDir = model.BaseDir()
	}
	o.materials.Bind(version, baseDir, model)

	n := model.SubmeshCount()
	for i := 0; i < n; i++ {
		r := o.stream.SubmeshRange(model, i)
		if r.Empty() {
			continue
		}
		f.Draws = append(f.Draws, DrawCall{
			Submesh:  i,
			Range:    r,
			Material: o.materials.Resolve(model.SubmeshMaterialID(i)),
		})
	}
	return f, nil
}

// Close releases GPU resources and the session's model.
func (o *Overlay) Close() {
	o.stream.Release()
	o.materials.Release()
	o.session.Close()
	logger.Info("overlay closed", zap.Uint64("model_version", o.session.ModelVersion()))
}
