// Package material turns evaluator material records into draw-ready
// materials with GPU textures. Textures that fail to load are replaced by a
// white fallback and their slot is disabled.
package material

import (
	"image"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/mmd-overlay/internal/engine/gpu"
	"github.com/Faultbox/mmd-overlay/internal/engine/texture"
	"github.com/Faultbox/mmd-overlay/internal/evaluator"
	"github.com/Faultbox/mmd-overlay/internal/logger"
	"github.com/Faultbox/mmd-overlay/pkg/encoding"
)

// Source supplies material records. *evaluator.Model implements it.
type Source interface {
	Material(id int) (evaluator.MaterialInfo, bool)
}

// TextureLoader reads and decodes a texture file.
type TextureLoader interface {
	Load(path string) (*image.RGBA, error)
}

// LoaderFunc adapts a function to TextureLoader.
type LoaderFunc func(path string) (*image.RGBA, error)

func (f LoaderFunc) Load(path string) (*image.RGBA, error) { return f(path) }

// FileLoader loads textures from disk.
var FileLoader TextureLoader = LoaderFunc(texture.LoadFile)

// Material is a resolved material. Textures always hold a usable texture;
// Enabled tells whether it is the real one or the fallback.
type Material struct {
	ID         int
	Info       evaluator.MaterialInfo
	Textures   [3]gpu.TextureID
	Enabled    [3]bool
	SphereMode evaluator.SphereMode
	Found      bool // false when the evaluator had no record for ID
}

// Texture returns the texture bound to slot.
func (m *Material) Texture(slot int) gpu.TextureID { return m.Textures[slot] }

// TextureEnabled reports whether slot has a real texture.
func (m *Material) TextureEnabled(slot int) bool { return m.Enabled[slot] }

type cachedTexture struct {
	id gpu.TextureID
	ok bool
}

// Options configures a Resolver.
type Options struct {
	// SharedToonDir holds the shared toon textures (toon01.bmp ... toon10.bmp)
	// models reference without shipping them.
	SharedToonDir string
}

// Resolver caches materials per model version. Not safe for concurrent use.
type Resolver struct {
	dev    gpu.Device
	loader TextureLoader
	opts   Options

	version uint64
	baseDir string
	src     Source

	materials map[int]*Material
	textures  map[string]cachedTexture
	reported  map[string]struct{}
	fallback  gpu.TextureID
}

// NewResolver creates a resolver uploading through dev. A nil loader reads files from disk.
func NewResolver(dev gpu.Device, loader TextureLoader, opts Options) *Resolver {
	if loader == nil {
		loader = FileLoader
	}
	return &Resolver{
		dev:       dev,
		loader:    loader,
		opts:      opts,
		materials: make(map[int]*Material),
		textures:  make(map[string]cachedTexture),
		reported:  make(map[string]struct{}),
	}
}

// Bind points the resolver at a model. A version change drops every cached
// material and texture.
func (r *Resolver) Bind(version uint64, baseDir string, src Source) {
	if version != r.version {
		r.invalidate()
		r.version = version
	}
	r.baseDir = baseDir
	r.src = src
}

// Version returns the bound model version.
func (r *Resolver) Version() uint64 { return r.version }

// Resolve returns the material for id, loading its textures on first use.
func (r *Resolver) Resolve(id int) *Material {
	if m, ok := r.materials[id]; ok {
		return m
	}

	m := &Material{ID: id}
	if r.src != nil {
		m.Info, m.Found = r.src.Material(id)
	}
	if !m.Found {
		m.Info = defaultInfo()
	}

	for slot := evaluator.TextureMain; slot <= evaluator.TextureSphere; slot++ {
		m.Textures[slot], m.Enabled[slot] = r.texture(slot, m.Info.TexturePath(slot))
	}
	m.SphereMode = m.Info.SphereMode
	if !m.Enabled[evaluator.TextureSphere] {
		m.SphereMode = evaluator.SphereNone
	}

	r.materials[id] = m
	return m
}

// ResolvePath maps a model-embedded texture path to a file path.
func (r *Resolver) ResolvePath(path string) string {
	return resolvePath(r.baseDir, path)
}

func resolvePath(baseDir, path string) string {
	path = encoding.NormalizeTexturePath(path)
	if path == "" {
		return ""
	}
	path = filepath.FromSlash(path)
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Clean(path)
}

func (r *Resolver) texture(slot int, raw string) (gpu.TextureID, bool) {
	key := r.ResolvePath(raw)
	if key == "" {
		return r.fallbackTexture(), false
	}
	if slot == evaluator.TextureToon && r.opts.SharedToonDir != "" {
		if _, err := os.Stat(key); err != nil {
			shared := resolvePath(r.opts.SharedToonDir, filepath.Base(key))
			if _, err := os.Stat(shared); err == nil {
				key = shared
			}
		}
	}

	if c, ok := r.textures[key]; ok {
		if !c.ok {
			return r.fallbackTexture(), false
		}
		return c.id, true
	}

	img, err := r.loader.Load(key)
	if err == nil {
		var id gpu.TextureID
		id, err = r.dev.CreateTexture(img)
		if err == nil {
			r.textures[key] = cachedTexture{id: id, ok: true}
			return id, true
		}
	}

	r.textures[key] = cachedTexture{}
	r.report(key, err)
	return r.fallbackTexture(), false
}

func (r *Resolver) report(key string, err error) {
	if _, seen := r.reported[key]; seen {
		return
	}
	r.reported[key] = struct{}{}
	logger.Warn("texture unavailable, using fallback",
		zap.String("path", key),
		zap.Error(err),
	)
}

func (r *Resolver) fallbackTexture() gpu.TextureID {
	if r.fallback != 0 {
		return r.fallback
	}
	id, err := r.dev.CreateTexture(texture.White())
	if err != nil {
		logger.Error("failed to create fallback texture", zap.Error(err))
		return 0
	}
	r.fallback = id
	return id
}

// Fallback returns the fallback texture, creating it if needed.
func (r *Resolver) Fallback() gpu.TextureID { return r.fallbackTexture() }

// CachedMaterials returns the number of resolved materials.
func (r *Resolver) CachedMaterials() int { return len(r.materials) }

func (r *Resolver) invalidate() {
	for _, c := range r.textures {
		if c.ok {
			r.dev.DeleteTexture(c.id)
		}
	}
	clear(r.textures)
	clear(r.materials)
}

// Release frees every texture, including the fallback.
func (r *Resolver) Release() {
	r.invalidate()
	if r.fallback != 0 {
		r.dev.DeleteTexture(r.fallback)
		r.fallback = 0
	}
	r.src = nil
}

func defaultInfo() evaluator.MaterialInfo {
	return evaluator.MaterialInfo{
		Diffuse:       [4]float32{1, 1, 1, 1},
		Ambient:       [3]float32{0.5, 0.5, 0.5},
		SpecularPower: 5,
	}
}
