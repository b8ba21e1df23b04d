package gpu

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/logger"
)

// GL is the OpenGL 4.1 core backend.
// IMPORTANT: must be created AFTER the OpenGL context is current.
type GL struct {
	sizes    map[BufferID]int
	textures map[TextureID]struct{}
}

var _ Device = (*GL)(nil)

// NewGL initializes the GL function pointers for the current context.
func NewGL() (*GL, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	version := gl.GoStr(gl.GetString(gl.VERSION))
	rendererName := gl.GoStr(gl.GetString(gl.RENDERER))
	logger.Info("OpenGL initialized",
		zap.String("version", version),
		zap.String("renderer", rendererName),
	)

	return &GL{
		sizes:    make(map[BufferID]int),
		textures: make(map[TextureID]struct{}),
	}, nil
}

func (g *GL) Name() string       { return BackendOpenGL }
func (g *GL) Features() Features { return Features{ByteIndices: true} }

// CreateBuffer allocates storage through the copy-write target so element
// buffers can be created without a bound vertex array.
func (g *GL) CreateBuffer(kind BufferKind, size int) (BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: size %d", ErrInvalidBuffer, size)
	}
	usage := uint32(gl.DYNAMIC_DRAW)
	if kind == IndexBuffer {
		usage = gl.STATIC_DRAW
	}

	var buf uint32
	gl.GenBuffers(1, &buf)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, buf)
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, usage)
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	id := BufferID(buf)
	g.sizes[id] = size
	return id, nil
}

func (g *GL) WriteBuffer(id BufferID, offset int, data []byte) error {
	size, ok := g.sizes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBuffer, id)
	}
	if err := checkRange(offset, len(data), size); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, uint32(id))
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), unsafe.Pointer(&data[0]))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return nil
}

func (g *GL) DeleteBuffer(id BufferID) {
	if _, ok := g.sizes[id]; !ok {
		return
	}
	buf := uint32(id)
	gl.DeleteBuffers(1, &buf)
	delete(g.sizes, id)
}

func (g *GL) CreateTexture(img *image.RGBA) (TextureID, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, ErrInvalidTexture
	}
	var texID uint32
	gl.GenTextures(1, &texID)
	gl.BindTexture(gl.TEXTURE_2D, texID)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	id := TextureID(texID)
	g.textures[id] = struct{}{}
	return id, nil
}

func (g *GL) DeleteTexture(id TextureID) {
	if _, ok := g.textures[id]; !ok {
		return
	}
	tex := uint32(id)
	gl.DeleteTextures(1, &tex)
	delete(g.textures, id)
}

// Close deletes every live resource. The context itself belongs to the window.
func (g *GL) Close() {
	logger.Info("closing OpenGL device",
		zap.Int("buffers", len(g.sizes)),
		zap.Int("textures", len(g.textures)),
	)
	for id := range g.sizes {
		g.DeleteBuffer(id)
	}
	for id := range g.textures {
		g.DeleteTexture(id)
	}
}
