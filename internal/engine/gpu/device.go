// Package gpu abstracts the few GPU operations the overlay needs: sized
// buffers refreshed in place and immutable RGBA textures. One Device is
// chosen at startup and passed to everything that uploads.
package gpu

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendOpenGL   = "opengl"
	BackendWebGPU   = "webgpu"
	BackendHeadless = "headless"
)

// Device errors.
var (
	ErrUnknownBackend = errors.New("gpu: unknown backend")
	ErrInvalidBuffer  = errors.New("gpu: invalid buffer")
	ErrInvalidTexture = errors.New("gpu: invalid texture")
	ErrOutOfRange     = errors.New("gpu: write out of range")
)

// BufferKind tells the backend how a buffer will be bound.
type BufferKind int

const (
	VertexBuffer BufferKind = iota
	IndexBuffer
)

func (k BufferKind) String() string {
	switch k {
	case VertexBuffer:
		return "vertex"
	case IndexBuffer:
		return "index"
	default:
		return fmt.Sprintf("BufferKind(%d)", int(k))
	}
}

// BufferID identifies a buffer owned by a Device. Zero is never valid.
type BufferID uint32

// TextureID identifies a texture owned by a Device. Zero is never valid.
type TextureID uint32

// Features describes optional backend behaviour.
type Features struct {
	// ByteIndices is false when 8-bit index buffers cannot be drawn and
	// callers must widen them to 16 bits.
	ByteIndices bool
}

// Device is a GPU backend. All methods must be called from the thread that
// owns the graphics context.
type Device interface {
	Name() string
	Features() Features

	CreateBuffer(kind BufferKind, size int) (BufferID, error)
	WriteBuffer(id BufferID, offset int, data []byte) error
	DeleteBuffer(id BufferID)

	CreateTexture(img *image.RGBA) (TextureID, error)
	DeleteTexture(id TextureID)

	Close()
}

// Open creates the named backend. The OpenGL backend needs a current context.
func Open(name string) (Device, error) {
	switch strings.ToLower(name) {
	case BackendOpenGL, "gl", "":
		return NewGL()
	case BackendWebGPU, "wgpu":
		return NewWebGPU()
	case BackendHeadless, "memory", "none":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

func checkRange(offset, n, size int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("%w: offset %d + %d bytes > %d", ErrOutOfRange, offset, n, size)
	}
	return nil
}
