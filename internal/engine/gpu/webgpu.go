package gpu

import (
	"fmt"
	"image"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/logger"
)

type wgpuBuffer struct {
	buf  *wgpu.Buffer
	size int
}

// WebGPU is a surfaceless WebGPU backend. Buffers are padded to the 4-byte
// copy alignment WebGPU requires.
type WebGPU struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	buffers  map[BufferID]*wgpuBuffer
	textures map[TextureID]*wgpu.Texture
	nextBuf  BufferID
	nextTex  TextureID
}

var _ Device = (*WebGPU)(nil)

// NewWebGPU requests a default adapter and device.
func NewWebGPU() (*WebGPU, error) {
	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("requesting adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Overlay Device",
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("requesting device: %w", err)
	}

	logger.Info("WebGPU initialized")

	return &WebGPU{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
		buffers:  make(map[BufferID]*wgpuBuffer),
		textures: make(map[TextureID]*wgpu.Texture),
	}, nil
}

func (w *WebGPU) Name() string { return BackendWebGPU }

// Features reports that WebGPU only draws 16- and 32-bit indices.
func (w *WebGPU) Features() Features { return Features{ByteIndices: false} }

func (w *WebGPU) CreateBuffer(kind BufferKind, size int) (BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("%w: size %d", ErrInvalidBuffer, size)
	}
	usage := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if kind == IndexBuffer {
		usage = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}

	w.nextBuf++
	buf, err := w.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            fmt.Sprintf("%s buffer %d", kind, w.nextBuf),
		Size:             uint64(align4(size)),
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return 0, fmt.Errorf("creating %s buffer: %w", kind, err)
	}
	w.buffers[w.nextBuf] = &wgpuBuffer{buf: buf, size: size}
	return w.nextBuf, nil
}

func (w *WebGPU) WriteBuffer(id BufferID, offset int, data []byte) error {
	b, ok := w.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBuffer, id)
	}
	if err := checkRange(offset, len(data), b.size); err != nil {
		return err
	}
	if offset%4 != 0 {
		return fmt.Errorf("%w: offset %d not 4-byte aligned", ErrOutOfRange, offset)
	}
	if len(data) == 0 {
		return nil
	}
	if n := align4(len(data)); n != len(data) {
		padded := make([]byte, n)
		copy(padded, data)
		data = padded
	}
	w.queue.WriteBuffer(b.buf, uint64(offset), data)
	return nil
}

func (w *WebGPU) DeleteBuffer(id BufferID) {
	b, ok := w.buffers[id]
	if !ok {
		return
	}
	b.buf.Release()
	delete(w.buffers, id)
}

func (w *WebGPU) CreateTexture(img *image.RGBA) (TextureID, error) {
	if img == nil || img.Bounds().Empty() {
		return 0, ErrInvalidTexture
	}
	width := uint32(img.Bounds().Dx())
	height := uint32(img.Bounds().Dy())

	w.nextTex++
	tex, err := w.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     fmt.Sprintf("texture %d", w.nextTex),
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("creating texture: %w", err)
	}

	w.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		img.Pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(img.Stride),
			RowsPerImage: height,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)

	w.textures[w.nextTex] = tex
	return w.nextTex, nil
}

func (w *WebGPU) DeleteTexture(id TextureID) {
	tex, ok := w.textures[id]
	if !ok {
		return
	}
	tex.Release()
	delete(w.textures, id)
}

// Close releases every resource and the device itself.
func (w *WebGPU) Close() {
	logger.Info("closing WebGPU device",
		zap.Int("buffers", len(w.buffers)),
		zap.Int("textures", len(w.textures)),
	)
	for id := range w.buffers {
		w.DeleteBuffer(id)
	}
	for id := range w.textures {
		w.DeleteTexture(id)
	}
	if w.queue != nil {
		w.queue.Release()
		w.queue = nil
	}
	if w.device != nil {
		w.device.Release()
		w.device = nil
	}
	if w.adapter != nil {
		w.adapter.Release()
		w.adapter = nil
	}
	if w.instance != nil {
		w.instance.Release()
		w.instance = nil
	}
}

func align4(n int) int {
	return (n + 3) &^ 3
}
