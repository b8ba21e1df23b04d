package gpu

import (
	"fmt"
	"image"
)

// Stats counts device operations. Used by tests and the headless backend's
// shutdown log.
type Stats struct {
	BuffersCreated  int
	BuffersDeleted  int
	TexturesCreated int
	TexturesDeleted int
	Writes          int
	BytesWritten    int
}

type memBuffer struct {
	kind BufferKind
	data []byte
}

// Memory is a headless device that keeps buffers and textures in RAM.
type Memory struct {
	features Features
	buffers  map[BufferID]*memBuffer
	textures map[TextureID]*image.RGBA
	nextBuf  BufferID
	nextTex  TextureID
	stats    Stats
}

var _ Device = (*Memory)(nil)

// NewMemory returns an empty headless device.
func NewMemory() *Memory {
	return &Memory{
		features: Features{ByteIndices: true},
		buffers:  make(map[BufferID]*memBuffer),
		textures: make(map[TextureID]*image.RGBA),
	}
}

// SetFeatures overrides the reported features, e.g. to emulate WebGPU limits.
func (m *Memory) SetFeatures(f Features) { m.features = f }

func (m *Memory) Name() string       { return BackendHeadless }
func (m *Memory) Features() Features { return m.features }

func (m *Memory) CreateBuffer(kind BufferKind, size int) (BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: size %d", ErrInvalidBuffer, size)
	}
	m.nextBuf++
	m.buffers[m.nextBuf] = &memBuffer{kind: kind, data: make([]byte, size)}
	m.stats.BuffersCreated++
	return m.nextBuf, nil
}

func (m *Memory) WriteBuffer(id BufferID, offset int, data []byte) error {
	b, ok := m.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBuffer, id)
	}
	if err := checkRange(offset, len(data), len(b.data)); err != nil {
		return err
	}
	copy(b.data[offset:], data)
	m.stats.Writes++
	m.stats.BytesWritten += len(data)
	return nil
}

func (m *Memory) DeleteBuffer(id BufferID) {
	if _, ok := m.buffers[id]; ok {
		delete(m.buffers, id)
		m.stats.BuffersDeleted++
	}
}

func (m *Memory) CreateTexture(img *image.RGBA) (TextureID, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, ErrInvalidTexture
	}
	m.nextTex++
	m.textures[m.nextTex] = img
	m.stats.TexturesCreated++
	return m.nextTex, nil
}

func (m *Memory) DeleteTexture(id TextureID) {
	if _, ok := m.textures[id]; ok {
		delete(m.textures, id)
		m.stats.TexturesDeleted++
	}
}

// Close drops every live resource.
func (m *Memory) Close() {
	for id := range m.buffers {
		m.DeleteBuffer(id)
	}
	for id := range m.textures {
		m.DeleteTexture(id)
	}
}

// Stats returns the operation counters.
func (m *Memory) Stats() Stats { return m.stats }

// LiveBuffers returns the number of buffers not yet deleted.
func (m *Memory) LiveBuffers() int { return len(m.buffers) }

// LiveTextures returns the number of textures not yet deleted.
func (m *Memory) LiveTextures() int { return len(m.textures) }

// Buffer returns the contents and kind of a live buffer.
func (m *Memory) Buffer(id BufferID) ([]byte, BufferKind, bool) {
	b, ok := m.buffers[id]
	if !ok {
		return nil, 0, false
	}
	return b.data, b.kind, true
}

// Texture returns a live texture's pixels.
func (m *Memory) Texture(id TextureID) (*image.RGBA, bool) {
	img, ok := m.textures[id]
	return img, ok
}
