// Package renderer draws overlay frames with OpenGL.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/engine/shader"
	"github.com/Faultbox/mmd-overlay/internal/evaluator"
	"github.com/Faultbox/mmd-overlay/internal/logger"
	"github.com/Faultbox/mmd-overlay/internal/mesh"
	"github.com/Faultbox/mmd-overlay/internal/overlay"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
}

// Renderer draws the overlay model on a transparent background.
// IMPORTANT: Must be created AFTER the OpenGL context and gpu.GL device.
type Renderer struct {
	config  Config
	program *shader.Model
	vao     uint32

	// buffers currently attached to vao; GL reuses deleted names, so the
	// allocation generation is compared too
	boundVB, boundIB uint32
	boundAlloc       int
}

// New creates a renderer for the current GL context.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{config: cfg}

	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))
	gl.ClearColor(0, 0, 0, 0)
	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.FrontFace(gl.CW)

	var err error
	r.program, err = shader.NewModel()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}
	gl.GenVertexArrays(1, &r.vao)

	logger.Info("renderer initialized",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Uint32("program", r.program.ID),
	)
	return r, nil
}

// Close releases the program and vertex array. Buffers and textures belong
// to the gpu device.
func (r *Renderer) Close() {
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
		r.vao = 0
	}
	if r.program != nil {
		r.program.Delete()
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	if width == r.config.Width && height == r.config.Height {
		return
	}
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Begin clears to fully transparent.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// End finishes the current frame.
func (r *Renderer) End() {
	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

// Draw issues one draw call per submesh of f.
func (r *Renderer) Draw(f *overlay.Frame) {
	if len(f.Draws) == 0 || f.VertexBuffer == 0 || f.IndexBuffer == 0 {
		return
	}
	indexType, ok := indexType(f.IndexWidth)
	if !ok {
		return
	}

	p := r.program
	gl.UseProgram(p.ID)
	r.bindBuffers(uint32(f.VertexBuffer), uint32(f.IndexBuffer), f.Allocation)

	vp := f.Camera.ViewProjection
	view := f.Camera.View
	gl.UniformMatrix4fv(p.ViewProjection, 1, false, &vp[0])
	gl.UniformMatrix4fv(p.View, 1, false, &view[0])
	gl.Uniform3f(p.LightDir, -0.5, -1.0, 0.5)

	for _, d := range f.Draws {
		m := d.Material
		info := m.Info
		gl.Uniform4f(p.Diffuse, info.Diffuse[0], info.Diffuse[1], info.Diffuse[2], info.Diffuse[3])
		gl.Uniform3f(p.Ambient, info.Ambient[0], info.Ambient[1], info.Ambient[2])
		gl.Uniform1i(p.UseMain, boolInt(m.TextureEnabled(evaluator.TextureMain)))
		gl.Uniform1i(p.UseToon, boolInt(m.TextureEnabled(evaluator.TextureToon)))
		gl.Uniform1i(p.SphereMode, int32(m.SphereMode))

		bindTexture(shader.UnitMain, uint32(m.Texture(evaluator.TextureMain)))
		bindTexture(shader.UnitToon, uint32(m.Texture(evaluator.TextureToon)))
		bindTexture(shader.UnitSphere, uint32(m.Texture(evaluator.TextureSphere)))

		if info.TwoSided {
			gl.Disable(gl.CULL_FACE)
		} else {
			gl.Enable(gl.CULL_FACE)
		}
		gl.DrawElements(gl.TRIANGLES, int32(d.Range.Count), indexType, gl.PtrOffset(d.Range.ByteOffset))
	}
}

// bindBuffers reattaches the vertex layout when the stream reallocated.
func (r *Renderer) bindBuffers(vb, ib uint32, alloc int) {
	gl.BindVertexArray(r.vao)
	if vb == r.boundVB && ib == r.boundIB && alloc == r.boundAlloc {
		return
	}

	stride := int32(mesh.VertexSize)
	gl.BindBuffer(gl.ARRAY_BUFFER, vb)
	gl.VertexAttribPointerWithOffset(shader.AttribPosition, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(shader.AttribPosition)
	gl.VertexAttribPointerWithOffset(shader.AttribNormal, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(shader.AttribNormal)
	gl.VertexAttribPointerWithOffset(shader.AttribTexCoord, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(shader.AttribTexCoord)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ib)

	r.boundVB, r.boundIB, r.boundAlloc = vb, ib, alloc
	logger.Debug("vertex layout bound",
		zap.Uint32("vbo", vb),
		zap.Uint32("ebo", ib),
		zap.Int("allocation", alloc),
	)
}

func bindTexture(unit int, tex uint32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
}

func indexType(width int) (uint32, bool) {
	switch width {
	case 1:
		return gl.UNSIGNED_BYTE, true
	case 2:
		return gl.UNSIGNED_SHORT, true
	case 4:
		return gl.UNSIGNED_INT, true
	}
	return 0, false
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
