// Package evaltest provides a scriptable in-memory evaluator for tests.
package evaltest

import (
	"github.com/Faultbox/mmd-overlay/internal/evaluator"
)

// EvalCall records one Evaluate invocation.
type EvalCall struct {
	Frame     float32
	PhysicsDt float32
}

// BlendCall records one AddMotionBlend or BlendToDefault invocation.
type BlendCall struct {
	Path    string
	Seconds float32
}

// Submesh describes one scripted submesh.
type Submesh struct {
	Begin, Count, MaterialID int
}

// Evaluator is a fake evaluator. Zero value is usable; scripted behaviour is
// set through the exported fields.
type Evaluator struct {
	Caps evaluator.Capabilities

	// Models that fail to load.
	BadModels map[string]bool
	// Motion path to end frame. Unknown motions fail to load.
	Motions map[string]float32
	// When set, AddMotionBlend fails even if the capability is present.
	BlendFails bool

	Vertices   int
	Indices    int
	IndexWidth int
	Submeshes  []Submesh
	Materials  map[int]evaluator.MaterialInfo

	Bones map[string]bool

	// Camera track path to sampler. Unknown tracks fail to load.
	CameraTracks map[string]func(frame float32) (evaluator.CameraSample, bool)

	// Recorded calls.
	Created        int
	Destroyed      int
	Loads          []string
	Added          []string
	Blends         []BlendCall
	DefaultBlends  []BlendCall
	Evaluations    []EvalCall
	BoneRotations  map[string][3]float32
	CameraLoads    []string
	CameraClears   int
	MaterialLookup int

	next          evaluator.Handle
	live          map[evaluator.Handle]bool
	motionEnd     float32
	activeCamera  string
	positionsSeed float32
}

var _ evaluator.Evaluator = (*Evaluator)(nil)

// New returns a fake evaluator with every optional capability enabled.
func New() *Evaluator {
	return &Evaluator{
		Caps: evaluator.Capabilities{
			MotionBlend:    true,
			BlendToDefault: true,
			BoneRotation:   true,
		},
		Motions:      map[string]float32{},
		Materials:    map[int]evaluator.MaterialInfo{},
		Bones:        map[string]bool{},
		CameraTracks: map[string]func(float32) (evaluator.CameraSample, bool){},
		IndexWidth:   2,
	}
}

// Live returns the number of handles created and not yet destroyed.
func (e *Evaluator) Live() int { return len(e.live) }

// LastEvaluation returns the most recent Evaluate call.
func (e *Evaluator) LastEvaluation() EvalCall {
	if len(e.Evaluations) == 0 {
		return EvalCall{}
	}
	return e.Evaluations[len(e.Evaluations)-1]
}

func (e *Evaluator) Capabilities() evaluator.Capabilities { return e.Caps }

func (e *Evaluator) Create() (evaluator.Handle, error) {
	if e.live == nil {
		e.live = map[evaluator.Handle]bool{}
	}
	e.next++
	e.live[e.next] = true
	e.Created++
	return e.next, nil
}

func (e *Evaluator) Destroy(h evaluator.Handle) {
	if e.live[h] {
		delete(e.live, h)
		e.Destroyed++
	}
}

func (e *Evaluator) Load(h evaluator.Handle, path, auxDir string) bool {
	e.Loads = append(e.Loads, path)
	e.motionEnd = 0
	return !e.BadModels[path]
}

func (e *Evaluator) AddMotion(h evaluator.Handle, path string) bool {
	end, ok := e.Motions[path]
	if !ok {
		return false
	}
	e.Added = append(e.Added, path)
	e.motionEnd = end
	return true
}

func (e *Evaluator) AddMotionBlend(h evaluator.Handle, path string, blendSeconds float32) bool {
	if !e.Caps.MotionBlend || e.BlendFails {
		return false
	}
	end, ok := e.Motions[path]
	if !ok {
		return false
	}
	e.Blends = append(e.Blends, BlendCall{Path: path, Seconds: blendSeconds})
	e.motionEnd = end
	return true
}

func (e *Evaluator) BlendToDefault(h evaluator.Handle, blendSeconds float32) bool {
	if !e.Caps.BlendToDefault {
		return false
	}
	e.DefaultBlends = append(e.DefaultBlends, BlendCall{Seconds: blendSeconds})
	e.motionEnd = 0
	return true
}

func (e *Evaluator) MotionEndFrame(h evaluator.Handle) float32 { return e.motionEnd }

func (e *Evaluator) Evaluate(h evaluator.Handle, frame, physicsDt float32) {
	e.Evaluations = append(e.Evaluations, EvalCall{Frame: frame, PhysicsDt: physicsDt})
	e.positionsSeed = frame
}

func (e *Evaluator) HasBone(h evaluator.Handle, name string) bool {
	return e.Caps.BoneRotation && e.Bones[name]
}

func (e *Evaluator) SetBoneAdditiveRotation(h evaluator.Handle, name string, pitch, yaw, roll float32) bool {
	if !e.HasBone(h, name) {
		return false
	}
	if e.BoneRotations == nil {
		e.BoneRotations = map[string][3]float32{}
	}
	e.BoneRotations[name] = [3]float32{pitch, yaw, roll}
	return true
}

func (e *Evaluator) VertexCount(h evaluator.Handle) int       { return e.Vertices }
func (e *Evaluator) IndexCount(h evaluator.Handle) int        { return e.Indices }
func (e *Evaluator) IndexElementWidth(h evaluator.Handle) int { return e.IndexWidth }

// CopyPositions fills positions with the last evaluated frame so tests can
// observe per-tick refreshes.
func (e *Evaluator) CopyPositions(h evaluator.Handle, dst []float32) {
	for i := range dst {
		dst[i] = e.positionsSeed
	}
}

func (e *Evaluator) CopyNormals(h evaluator.Handle, dst []float32) {
	for i := range dst {
		dst[i] = 1
	}
}

func (e *Evaluator) CopyUVs(h evaluator.Handle, dst []float32) {
	for i := range dst {
		dst[i] = 0.5
	}
}

// CopyIndices writes the index sequence 0,1,2,... at the current element width.
func (e *Evaluator) CopyIndices(h evaluator.Handle, dst []byte) {
	w := e.IndexWidth
	if w <= 0 {
		return
	}
	for i := 0; (i+1)*w <= len(dst); i++ {
		v := uint32(i)
		for b := 0; b < w; b++ {
			dst[i*w+b] = byte(v >> (8 * b))
		}
	}
}

func (e *Evaluator) SubmeshCount(h evaluator.Handle) int { return len(e.Submeshes) }

func (e *Evaluator) SubmeshRange(h evaluator.Handle, i int) (begin, count int) {
	if i < 0 || i >= len(e.Submeshes) {
		return 0, 0
	}
	return e.Submeshes[i].Begin, e.Submeshes[i].Count
}

func (e *Evaluator) SubmeshMaterialID(h evaluator.Handle, i int) int {
	if i < 0 || i >= len(e.Submeshes) {
		return -1
	}
	return e.Submeshes[i].MaterialID
}

func (e *Evaluator) Material(h evaluator.Handle, materialID int) (evaluator.MaterialInfo, bool) {
	e.MaterialLookup++
	m, ok := e.Materials[materialID]
	return m, ok
}

func (e *Evaluator) LoadCameraTrack(path string) bool {
	if _, ok := e.CameraTracks[path]; !ok {
		return false
	}
	e.CameraLoads = append(e.CameraLoads, path)
	e.activeCamera = path
	return true
}

func (e *Evaluator) ClearCamera() {
	e.CameraClears++
	e.activeCamera = ""
}

func (e *Evaluator) EvaluateCamera(frame float32) (evaluator.CameraSample, bool) {
	fn, ok := e.CameraTracks[e.activeCamera]
	if !ok {
		return evaluator.CameraSample{}, false
	}
	return fn(frame)
}
