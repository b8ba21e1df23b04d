// Package evaluator defines the contract with the external animation, physics
// and skinning service that owns the overlay model.
//
// The evaluator is opaque: it parses model and motion files, simulates bones and
// physics, and produces skinned mesh attributes. Everything here is a thin,
// synchronous view of that service. All calls must happen on the tick thread.
package evaluator

import "errors"

// Errors returned by evaluator implementations and the Model resource.
var (
	ErrLoadFailed  = errors.New("evaluator: model load failed")
	ErrUnsupported = errors.New("evaluator: not supported on this platform")
	ErrClosed      = errors.New("evaluator: model closed")
)

// Handle identifies one model instance inside the evaluator.
type Handle uintptr

// Capabilities lists optional entry points, probed once when the evaluator is opened.
type Capabilities struct {
	MotionBlend    bool // AddMotionBlend is available
	BlendToDefault bool // BlendToDefault is available
	BoneRotation   bool // HasBone and SetBoneAdditiveRotation are available
}

// Texture slots of a material.
const (
	TextureMain = iota
	TextureToon
	TextureSphere
	textureSlotCount
)

// SphereMode selects how the sphere texture is combined.
type SphereMode int32

const (
	SphereNone SphereMode = iota
	SphereMultiply
	SphereAdd
	SphereSubTexture
)

// MaterialInfo mirrors the evaluator's per-material parameters.
type MaterialInfo struct {
	Diffuse       [4]float32 // RGB + alpha
	Ambient       [3]float32
	Specular      [3]float32
	SpecularPower float32
	TwoSided      bool

	Textures   [textureSlotCount]string // main, toon, sphere
	SphereMode SphereMode

	// Blend factors applied to each texture slot (RGBA).
	TextureFactor [4]float32
	ToonFactor    [4]float32
	SphereFactor  [4]float32

	Edge      bool
	EdgeSize  float32
	EdgeColor [4]float32

	CastShadow    bool
	ReceiveShadow bool
}

// TexturePath returns the stored path for a slot, or "" for an unknown slot.
func (m *MaterialInfo) TexturePath(slot int) string {
	if slot < 0 || slot >= textureSlotCount {
		return ""
	}
	return m.Textures[slot]
}

// CameraSample is the evaluated state of a camera track at one frame.
type CameraSample struct {
	Interest    [3]float32
	Rotation    [3]float32 // radians
	Distance    float32
	FieldOfView float32 // degrees
}

// MotionEvaluator loads motions and advances the pose.
type MotionEvaluator interface {
	Create() (Handle, error)
	Destroy(h Handle)
	Load(h Handle, path, auxDir string) bool

	AddMotion(h Handle, path string) bool
	AddMotionBlend(h Handle, path string, blendSeconds float32) bool
	BlendToDefault(h Handle, blendSeconds float32) bool
	MotionEndFrame(h Handle) float32
	Evaluate(h Handle, frame, physicsDt float32)

	HasBone(h Handle, name string) bool
	SetBoneAdditiveRotation(h Handle, name string, pitch, yaw, roll float32) bool
}

// MeshEvaluator exposes the evaluated mesh.
type MeshEvaluator interface {
	VertexCount(h Handle) int
	IndexCount(h Handle) int
	IndexElementWidth(h Handle) int

	CopyPositions(h Handle, dst []float32)
	CopyNormals(h Handle, dst []float32)
	CopyUVs(h Handle, dst []float32)
	CopyIndices(h Handle, dst []byte)

	SubmeshCount(h Handle) int
	SubmeshRange(h Handle, i int) (begin, count int)
	SubmeshMaterialID(h Handle, i int) int
}

// MaterialEvaluator exposes material parameters.
type MaterialEvaluator interface {
	Material(h Handle, materialID int) (MaterialInfo, bool)
}

// CameraEvaluator evaluates camera tracks. Camera tracks are not tied to a model.
type CameraEvaluator interface {
	LoadCameraTrack(path string) bool
	ClearCamera()
	EvaluateCamera(frame float32) (CameraSample, bool)
}

// Evaluator is the complete external service.
type Evaluator interface {
	MotionEvaluator
	MeshEvaluator
	MaterialEvaluator
	CameraEvaluator

	Capabilities() Capabilities
}

// Library is an evaluator backed by a loaded shared library.
type Library interface {
	Evaluator
	Close() error
}
