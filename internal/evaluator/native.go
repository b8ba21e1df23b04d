//go:build darwin || linux

package evaluator

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/logger"
)

// materialFloats is the number of floats written by mmdx_material_params:
// diffuse(4) ambient(3) specular(3) power(1) texture(4) toon(4) sphere(4) edgeSize(1) edgeColor(4).
const materialFloats = 28

// Material flag bits written by mmdx_material_params.
const (
	flagTwoSided      = 1 << 0
	flagCastShadow    = 1 << 1
	flagReceiveShadow = 1 << 2
	flagEdge          = 1 << 4
)

// native binds the mmdx_* C ABI through purego.
type native struct {
	lib  uintptr
	caps Capabilities

	create         func() uintptr
	destroy        func(uintptr)
	load           func(uintptr, string, string) bool
	addMotion      func(uintptr, string) bool
	addMotionBlend func(uintptr, string, float32) bool
	blendToDefault func(uintptr, float32) bool
	motionEndFrame func(uintptr) float32
	evaluate       func(uintptr, float32, float32)

	vertexCount  func(uintptr) int32
	indexCount   func(uintptr) int32
	indexWidth   func(uintptr) int32
	copyPosition func(uintptr, unsafe.Pointer, int32)
	copyNormal   func(uintptr, unsafe.Pointer, int32)
	copyUV       func(uintptr, unsafe.Pointer, int32)
	copyIndex    func(uintptr, unsafe.Pointer, int32)

	submeshCount    func(uintptr) int32
	submeshRange    func(uintptr, int32, *int32, *int32) bool
	submeshMaterial func(uintptr, int32) int32

	materialParams  func(uintptr, int32, *float32, *int32, *int32) bool
	materialTexture func(uintptr, int32, int32) string

	hasBone         func(uintptr, string) bool
	setBoneRotation func(uintptr, string, float32, float32, float32) bool

	cameraLoad     func(string) bool
	cameraClear    func()
	cameraEvaluate func(float32, *float32) bool
}

// OpenLibrary loads the evaluator shared library at path and negotiates its
// optional capabilities.
func OpenLibrary(path string) (Library, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("opening evaluator %s: %w", path, err)
	}

	n := &native{lib: lib}
	required := []struct {
		fptr any
		name string
	}{
		{&n.create, "mmdx_create"},
		{&n.destroy, "mmdx_destroy"},
		{&n.load, "mmdx_load"},
		{&n.addMotion, "mmdx_add_motion"},
		{&n.motionEndFrame, "mmdx_motion_end_frame"},
		{&n.evaluate, "mmdx_evaluate"},
		{&n.vertexCount, "mmdx_vertex_count"},
		{&n.indexCount, "mmdx_index_count"},
		{&n.indexWidth, "mmdx_index_element_width"},
		{&n.copyPosition, "mmdx_copy_positions"},
		{&n.copyNormal, "mmdx_copy_normals"},
		{&n.copyUV, "mmdx_copy_uvs"},
		{&n.copyIndex, "mmdx_copy_indices"},
		{&n.submeshCount, "mmdx_submesh_count"},
		{&n.submeshRange, "mmdx_submesh_range"},
		{&n.submeshMaterial, "mmdx_submesh_material"},
		{&n.materialParams, "mmdx_material_params"},
		{&n.materialTexture, "mmdx_material_texture"},
		{&n.cameraLoad, "mmdx_camera_load"},
		{&n.cameraClear, "mmdx_camera_clear"},
		{&n.cameraEvaluate, "mmdx_camera_evaluate"},
	}
	for _, r := range required {
		if err := n.bind(r.fptr, r.name); err != nil {
			_ = purego.Dlclose(lib)
			return nil, err
		}
	}

	n.caps.MotionBlend = n.bind(&n.addMotionBlend, "mmdx_add_motion_blend") == nil
	n.caps.BlendToDefault = n.bind(&n.blendToDefault, "mmdx_blend_to_default") == nil
	n.caps.BoneRotation = n.bind(&n.hasBone, "mmdx_has_bone") == nil &&
		n.bind(&n.setBoneRotation, "mmdx_set_bone_additive_rotation") == nil

	logger.Info("evaluator loaded",
		zap.String("path", path),
		zap.Bool("motion_blend", n.caps.MotionBlend),
		zap.Bool("blend_to_default", n.caps.BlendToDefault),
		zap.Bool("bone_rotation", n.caps.BoneRotation),
	)
	return n, nil
}

func (n *native) bind(fptr any, name string) error {
	sym, err := purego.Dlsym(n.lib, name)
	if err != nil {
		return fmt.Errorf("evaluator symbol %s: %w", name, err)
	}
	purego.RegisterFunc(fptr, sym)
	return nil
}

func (n *native) Close() error {
	if n.lib == 0 {
		return nil
	}
	err := purego.Dlclose(n.lib)
	n.lib = 0
	return err
}

func (n *native) Capabilities() Capabilities { return n.caps }

func (n *native) Create() (Handle, error) {
	h := n.create()
	if h == 0 {
		return 0, fmt.Errorf("%w: mmdx_create returned null", ErrLoadFailed)
	}
	return Handle(h), nil
}

func (n *native) Destroy(h Handle) { n.destroy(uintptr(h)) }

func (n *native) Load(h Handle, path, auxDir string) bool {
	return n.load(uintptr(h), path, auxDir)
}

func (n *native) AddMotion(h Handle, path string) bool { return n.addMotion(uintptr(h), path) }

func (n *native) AddMotionBlend(h Handle, path string, blendSeconds float32) bool {
	if n.addMotionBlend == nil {
		return false
	}
	return n.addMotionBlend(uintptr(h), path, blendSeconds)
}

func (n *native) BlendToDefault(h Handle, blendSeconds float32) bool {
	if n.blendToDefault == nil {
		return false
	}
	return n.blendToDefault(uintptr(h), blendSeconds)
}

func (n *native) MotionEndFrame(h Handle) float32 { return n.motionEndFrame(uintptr(h)) }

func (n *native) Evaluate(h Handle, frame, physicsDt float32) {
	n.evaluate(uintptr(h), frame, physicsDt)
}

func (n *native) HasBone(h Handle, name string) bool {
	if n.hasBone == nil {
		return false
	}
	return n.hasBone(uintptr(h), name)
}

func (n *native) SetBoneAdditiveRotation(h Handle, name string, pitch, yaw, roll float32) bool {
	if n.setBoneRotation == nil {
		return false
	}
	return n.setBoneRotation(uintptr(h), name, pitch, yaw, roll)
}

func (n *native) VertexCount(h Handle) int       { return int(n.vertexCount(uintptr(h))) }
func (n *native) IndexCount(h Handle) int        { return int(n.indexCount(uintptr(h))) }
func (n *native) IndexElementWidth(h Handle) int { return int(n.indexWidth(uintptr(h))) }

func (n *native) CopyPositions(h Handle, dst []float32) { copyFloats(n.copyPosition, h, dst) }
func (n *native) CopyNormals(h Handle, dst []float32)   { copyFloats(n.copyNormal, h, dst) }
func (n *native) CopyUVs(h Handle, dst []float32)       { copyFloats(n.copyUV, h, dst) }

func (n *native) CopyIndices(h Handle, dst []byte) {
	if len(dst) == 0 {
		return
	}
	n.copyIndex(uintptr(h), unsafe.Pointer(&dst[0]), int32(len(dst)))
}

func copyFloats(fn func(uintptr, unsafe.Pointer, int32), h Handle, dst []float32) {
	if len(dst) == 0 {
		return
	}
	fn(uintptr(h), unsafe.Pointer(&dst[0]), int32(len(dst)))
}

func (n *native) SubmeshCount(h Handle) int { return int(n.submeshCount(uintptr(h))) }

func (n *native) SubmeshRange(h Handle, i int) (begin, count int) {
	var b, c int32
	if !n.submeshRange(uintptr(h), int32(i), &b, &c) {
		return 0, 0
	}
	return int(b), int(c)
}

func (n *native) SubmeshMaterialID(h Handle, i int) int {
	return int(n.submeshMaterial(uintptr(h), int32(i)))
}

func (n *native) Material(h Handle, materialID int) (MaterialInfo, bool) {
	var f [materialFloats]float32
	var flags, sphere int32
	if !n.materialParams(uintptr(h), int32(materialID), &f[0], &flags, &sphere) {
		return MaterialInfo{}, false
	}

	info := MaterialInfo{
		Diffuse:       [4]float32{f[0], f[1], f[2], f[3]},
		Ambient:       [3]float32{f[4], f[5], f[6]},
		Specular:      [3]float32{f[7], f[8], f[9]},
		SpecularPower: f[10],
		TextureFactor: [4]float32{f[11], f[12], f[13], f[14]},
		ToonFactor:    [4]float32{f[15], f[16], f[17], f[18]},
		SphereFactor:  [4]float32{f[19], f[20], f[21], f[22]},
		EdgeSize:      f[23],
		EdgeColor:     [4]float32{f[24], f[25], f[26], f[27]},
		TwoSided:      flags&flagTwoSided != 0,
		CastShadow:    flags&flagCastShadow != 0,
		ReceiveShadow: flags&flagReceiveShadow != 0,
		Edge:          flags&flagEdge != 0,
		SphereMode:    SphereMode(sphere),
	}
	for slot := range info.Textures {
		info.Textures[slot] = n.materialTexture(uintptr(h), int32(materialID), int32(slot))
	}
	return info, true
}

func (n *native) LoadCameraTrack(path string) bool { return n.cameraLoad(path) }
func (n *native) ClearCamera()                     { n.cameraClear() }

func (n *native) EvaluateCamera(frame float32) (CameraSample, bool) {
	var out [8]float32
	if !n.cameraEvaluate(frame, &out[0]) {
		return CameraSample{}, false
	}
	return CameraSample{
		Interest:    [3]float32{out[0], out[1], out[2]},
		Rotation:    [3]float32{out[3], out[4], out[5]},
		Distance:    out[6],
		FieldOfView: out[7],
	}, true
}
