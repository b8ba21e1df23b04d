// Package mesh keeps the evaluator's deformed mesh resident on the GPU.
package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/engine/gpu"
	"github.com/Faultbox/mmd-overlay/internal/logger"
)

var (
	// ErrInvalidIndexWidth is returned for index element widths other than 1, 2 or 4.
	ErrInvalidIndexWidth = errors.New("mesh: invalid index element width")
	// ErrInvalidCount is returned for negative vertex or index counts.
	ErrInvalidCount = errors.New("mesh: invalid vertex or index count")
)

// Vertex is one interleaved vertex as laid out in the vertex buffer.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
}

// VertexSize is the vertex buffer stride in bytes.
const VertexSize = int(unsafe.Sizeof(Vertex{}))

// Source supplies mesh data. *evaluator.Model implements it.
type Source interface {
	VertexCount() int
	IndexCount() int
	IndexElementWidth() int
	CopyPositions(dst []float32)
	CopyNormals(dst []float32)
	CopyUVs(dst []float32)
	CopyIndices(dst []byte)
	SubmeshCount() int
	SubmeshRange(i int) (begin, count int)
}

// Topology is the triple that decides GPU buffer sizes.
type Topology struct {
	Vertices   int
	Indices    int
	IndexWidth int
}

// Validate checks the counts and that the index width is drawable. An empty
// index list accepts any width.
func (t Topology) Validate() error {
	if t.Vertices < 0 || t.Indices < 0 {
		return fmt.Errorf("%w: %d vertices, %d indices", ErrInvalidCount, t.Vertices, t.Indices)
	}
	if t.Indices == 0 {
		return nil
	}
	switch t.IndexWidth {
	case 1, 2, 4:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidIndexWidth, t.IndexWidth)
}

// Range is a triangle-aligned slice of the index buffer.
type Range struct {
	Count      int // indices to draw, multiple of 3
	ByteOffset int // offset into the index buffer
}

// Empty reports whether the range draws nothing.
func (r Range) Empty() bool { return r.Count == 0 }

// Stream owns the vertex and index buffers of one model.
type Stream struct {
	dev gpu.Device

	vbo, ibo    gpu.BufferID
	topology    Topology
	allocated   bool
	uploadWidth int // index width in the GPU buffer, may differ from topology
	indexDirty  bool
	version     uint64
	allocations int

	positions []float32
	normals   []float32
	uvs       []float32
	vertices  []Vertex
	indices   []byte
}

// NewStream creates an empty stream on dev.
func NewStream(dev gpu.Device) *Stream {
	return &Stream{dev: dev}
}

// EnsureTopology (re)allocates the buffers when t differs from what is
// allocated. It reports whether an allocation happened.
func (s *Stream) EnsureTopology(t Topology) (bool, error) {
	if s.allocated && t == s.topology {
		return false, nil
	}
	if err := t.Validate(); err != nil {
		return false, err
	}

	s.releaseBuffers()
	s.topology = t
	s.allocated = true
	s.allocations++

	s.uploadWidth = t.IndexWidth
	if t.Indices == 0 {
		s.uploadWidth = 0
	} else if t.IndexWidth == 1 && !s.dev.Features().ByteIndices {
		s.uploadWidth = 2
	}

	if t.Vertices > 0 {
		vbo, err := s.dev.CreateBuffer(gpu.VertexBuffer, t.Vertices*VertexSize)
		if err != nil {
			s.allocated = false
			return false, fmt.Errorf("allocating vertex buffer: %w", err)
		}
		s.vbo = vbo
	}
	if t.Indices > 0 {
		ibo, err := s.dev.CreateBuffer(gpu.IndexBuffer, t.Indices*s.uploadWidth)
		if err != nil {
			s.releaseBuffers()
			s.allocated = false
			return false, fmt.Errorf("allocating index buffer: %w", err)
		}
		s.ibo = ibo
	}
	s.indexDirty = true

	s.positions = resizeFloats(s.positions, t.Vertices*3)
	s.normals = resizeFloats(s.normals, t.Vertices*3)
	s.uvs = resizeFloats(s.uvs, t.Vertices*2)
	if cap(s.vertices) < t.Vertices {
		s.vertices = make([]Vertex, t.Vertices)
	}
	s.vertices = s.vertices[:t.Vertices]

	logger.Debug("mesh buffers allocated",
		zap.Int("vertices", t.Vertices),
		zap.Int("indices", t.Indices),
		zap.Int("index_width", t.IndexWidth),
		zap.Int("upload_width", s.uploadWidth),
	)
	return true, nil
}

// Invalidate forces the next EnsureTopology to reallocate, e.g. after a model reload.
func (s *Stream) Invalidate() {
	s.allocated = false
}

// Sync brings the GPU buffers up to date with src. A new model version
// forces reallocation. Indices are uploaded once per allocation; attributes
// every call.
func (s *Stream) Sync(src Source, version uint64) error {
	if version != s.version {
		s.Invalidate()
		s.version = version
	}

	t := Topology{
		Vertices:   src.VertexCount(),
		Indices:    src.IndexCount(),
		IndexWidth: src.IndexElementWidth(),
	}
	if _, err := s.EnsureTopology(t); err != nil {
		return err
	}
	if s.indexDirty {
		if err := s.uploadIndices(src); err != nil {
			return err
		}
	}
	return s.UpdateAttributes(src)
}

// UpdateAttributes copies positions, normals and UVs from src and uploads
// them as interleaved vertices.
func (s *Stream) UpdateAttributes(src Source) error {
	n := s.topology.Vertices
	if !s.allocated || n == 0 {
		return nil
	}

	src.CopyPositions(s.positions)
	src.CopyNormals(s.normals)
	src.CopyUVs(s.uvs)

	for i := range s.vertices {
		v := &s.vertices[i]
		copy(v.Position[:], s.positions[i*3:i*3+3])
		copy(v.Normal[:], s.normals[i*3:i*3+3])
		copy(v.TexCoord[:], s.uvs[i*2:i*2+2])
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(&s.vertices[0])), n*VertexSize)
	if err := s.dev.WriteBuffer(s.vbo, 0, data); err != nil {
		return fmt.Errorf("uploading vertices: %w", err)
	}
	return nil
}

func (s *Stream) uploadIndices(src Source) error {
	t := s.topology
	s.indexDirty = false
	if t.Indices == 0 {
		return nil
	}

	raw := make([]byte, t.Indices*t.IndexWidth)
	src.CopyIndices(raw)

	if s.uploadWidth != t.IndexWidth {
		s.indices = widenBytes(raw)
	} else {
		s.indices = raw
	}
	if err := s.dev.WriteBuffer(s.ibo, 0, s.indices); err != nil {
		s.indexDirty = true
		return fmt.Errorf("uploading indices: %w", err)
	}
	return nil
}

// DrawRange clamps a submesh's index range to the buffer and rounds the count
// down to whole triangles.
func (s *Stream) DrawRange(begin, count int) Range {
	total := s.topology.Indices
	if !s.allocated || begin < 0 || begin >= total || count <= 0 {
		return Range{}
	}
	if remaining := total - begin; count > remaining {
		count = remaining
	}
	count -= count % 3
	if count == 0 {
		return Range{}
	}
	return Range{Count: count, ByteOffset: begin * s.uploadWidth}
}

// SubmeshRange is DrawRange for submesh i of src.
func (s *Stream) SubmeshRange(src Source, i int) Range {
	begin, count := src.SubmeshRange(i)
	return s.DrawRange(begin, count)
}

// Topology returns the allocated topology.
func (s *Stream) Topology() Topology { return s.topology }

// Allocated reports whether buffers match a topology.
func (s *Stream) Allocated() bool { return s.allocated }

// VertexBuffer returns the vertex buffer, zero if none.
func (s *Stream) VertexBuffer() gpu.BufferID { return s.vbo }

// IndexBuffer returns the index buffer, zero if none.
func (s *Stream) IndexBuffer() gpu.BufferID { return s.ibo }

// IndexWidth is the element width of the uploaded index buffer.
func (s *Stream) IndexWidth() int { return s.uploadWidth }

// Allocations counts buffer allocations over the stream's lifetime.
func (s *Stream) Allocations() int { return s.allocations }

// Release frees the GPU buffers.
func (s *Stream) Release() {
	s.releaseBuffers()
	s.allocated = false
	s.topology = Topology{}
}

func (s *Stream) releaseBuffers() {
	if s.vbo != 0 {
		s.dev.DeleteBuffer(s.vbo)
		s.vbo = 0
	}
	if s.ibo != 0 {
		s.dev.DeleteBuffer(s.ibo)
		s.ibo = 0
	}
}

func resizeFloats(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

// widenBytes converts 8-bit indices to little-endian 16-bit.
func widenBytes(src []byte) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
