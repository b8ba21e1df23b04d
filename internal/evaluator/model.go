package evaluator

import (
	"fmt"
	"path/filepath"
)

// Model is an exclusively owned model instance. Close releases the evaluator
// handle; it is safe to call more than once.
type Model struct {
	ev      Evaluator
	handle  Handle
	path    string
	baseDir string
	closed  bool
}

// Open creates a handle and loads path into it. The handle is destroyed if the
// load fails, so callers only ever own fully loaded models.
func Open(ev Evaluator, path, auxDir string) (*Model, error) {
	h, err := ev.Create()
	if err != nil {
		return nil, fmt.Errorf("creating model handle: %w", err)
	}
	if !ev.Load(h, path, auxDir) {
		ev.Destroy(h)
		return nil, fmt.Errorf("%w: %s", ErrLoadFailed, path)
	}
	return &Model{
		ev:      ev,
		handle:  h,
		path:    path,
		baseDir: filepath.Dir(path),
	}, nil
}

// Close destroys the evaluator handle.
func (m *Model) Close() error {
	if m == nil || m.closed {
		return nil
	}
	m.closed = true
	m.ev.Destroy(m.handle)
	return nil
}

// Closed reports whether Close has been called.
func (m *Model) Closed() bool { return m == nil || m.closed }

// Path returns the model file path.
func (m *Model) Path() string { return m.path }

// BaseDir is the directory relative texture paths resolve against.
func (m *Model) BaseDir() string { return m.baseDir }

// Handle returns the raw evaluator handle.
func (m *Model) Handle() Handle { return m.handle }

func (m *Model) AddMotion(path string) bool { return !m.closed && m.ev.AddMotion(m.handle, path) }

func (m *Model) AddMotionBlend(path string, blendSeconds float32) bool {
	return !m.closed && m.ev.AddMotionBlend(m.handle, path, blendSeconds)
}

func (m *Model) BlendToDefault(blendSeconds float32) bool {
	return !m.closed && m.ev.BlendToDefault(m.handle, blendSeconds)
}

func (m *Model) MotionEndFrame() float32 {
	if m.closed {
		return 0
	}
	return m.ev.MotionEndFrame(m.handle)
}

func (m *Model) Evaluate(frame, physicsDt float32) {
	if !m.closed {
		m.ev.Evaluate(m.handle, frame, physicsDt)
	}
}

func (m *Model) HasBone(name string) bool { return !m.closed && m.ev.HasBone(m.handle, name) }

func (m *Model) SetBoneAdditiveRotation(name string, pitch, yaw, roll float32) bool {
	return !m.closed && m.ev.SetBoneAdditiveRotation(m.handle, name, pitch, yaw, roll)
}

// Mesh accessors. A closed model reports an empty mesh.

func (m *Model) VertexCount() int {
	if m.closed {
		return 0
	}
	return m.ev.VertexCount(m.handle)
}

func (m *Model) IndexCount() int {
	if m.closed {
		return 0
	}
	return m.ev.IndexCount(m.handle)
}

func (m *Model) IndexElementWidth() int {
	if m.closed {
		return 0
	}
	return m.ev.IndexElementWidth(m.handle)
}

func (m *Model) CopyPositions(dst []float32) { m.ev.CopyPositions(m.handle, dst) }
func (m *Model) CopyNormals(dst []float32)   { m.ev.CopyNormals(m.handle, dst) }
func (m *Model) CopyUVs(dst []float32)       { m.ev.CopyUVs(m.handle, dst) }
func (m *Model) CopyIndices(dst []byte)      { m.ev.CopyIndices(m.handle, dst) }

func (m *Model) SubmeshCount() int {
	if m.closed {
		return 0
	}
	return m.ev.SubmeshCount(m.handle)
}

func (m *Model) SubmeshRange(i int) (begin, count int) { return m.ev.SubmeshRange(m.handle, i) }
func (m *Model) SubmeshMaterialID(i int) int           { return m.ev.SubmeshMaterialID(m.handle, i) }

// Material returns the parameters of one material.
func (m *Model) Material(materialID int) (MaterialInfo, bool) {
	if m.closed {
		return MaterialInfo{}, false
	}
	return m.ev.Material(m.handle, materialID)
}
