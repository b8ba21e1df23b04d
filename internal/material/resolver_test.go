package material

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/mmd-overlay/internal/engine/gpu"
	"github.com/Faultbox/mmd-overlay/internal/evaluator"
)

type fakeSource map[int]evaluator.MaterialInfo

func (s fakeSource) Material(id int) (evaluator.MaterialInfo, bool) {
	m, ok := s[id]
	return m, ok
}

type fakeLoader struct {
	available map[string]bool
	calls     map[string]int
}

func newFakeLoader(paths ...string) *fakeLoader {
	l := &fakeLoader{available: map[string]bool{}, calls: map[string]int{}}
	for _, p := range paths {
		l.available[filepath.Clean(p)] = true
	}
	return l
}

func (l *fakeLoader) Load(path string) (*image.RGBA, error) {
	l.calls[path]++
	if !l.available[path] {
		return nil, os.ErrNotExist
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func info(main, toon, sphere string, mode evaluator.SphereMode) evaluator.MaterialInfo {
	return evaluator.MaterialInfo{
		Diffuse:    [4]float32{1, 0.5, 0.5, 1},
		Textures:   [3]string{main, toon, sphere},
		SphereMode: mode,
	}
}

func TestResolveLoadsAndCaches(t *testing.T) {
	base := filepath.FromSlash("/models/miku")
	loader := newFakeLoader(
		filepath.Join(base, "tex", "body.png"),
		filepath.Join(base, "toon01.bmp"),
	)
	dev := gpu.NewMemory()
	r := NewResolver(dev, loader, Options{})
	r.Bind(1, base, fakeSource{
		0: info(`tex\body.png`, "toon01.bmp", "", evaluator.SphereMultiply),
		1: info("tex/body.png", "", "", evaluator.SphereNone),
	})

	m := r.Resolve(0)
	if !m.Found {
		t.Fatal("material 0 should be found")
	}
	if !m.TextureEnabled(evaluator.TextureMain) || !m.TextureEnabled(evaluator.TextureToon) {
		t.Errorf("main/toon should be enabled: %+v", m.Enabled)
	}
	if m.TextureEnabled(evaluator.TextureSphere) || m.SphereMode != evaluator.SphereNone {
		t.Errorf("empty sphere slot should be disabled, mode %v", m.SphereMode)
	}
	if m.Texture(evaluator.TextureSphere) != r.Fallback() {
		t.Error("disabled slot should hold the fallback")
	}

	if r.Resolve(0) != m {
		t.Error("second Resolve should hit the material cache")
	}
	m1 := r.Resolve(1)
	if m1.Texture(evaluator.TextureMain) != m.Texture(evaluator.TextureMain) {
		t.Error("shared texture path should share the GPU texture")
	}
	if n := loader.calls[filepath.Join(base, "tex", "body.png")]; n != 1 {
		t.Errorf("body.png loaded %d times, want 1", n)
	}
}

func TestResolveFailureUsesFallbackOnce(t *testing.T) {
	base := filepath.FromSlash("/models/miku")
	loader := newFakeLoader()
	dev := gpu.NewMemory()
	r := NewResolver(dev, loader, Options{})
	r.Bind(1, base, fakeSource{
		0: info("missing.png", "", "missing.png", evaluator.SphereAdd),
		1: info("missing.png", "", "", evaluator.SphereNone),
	})

	m := r.Resolve(0)
	if m.TextureEnabled(evaluator.TextureMain) {
		t.Error("missing texture should be disabled")
	}
	if m.SphereMode != evaluator.SphereNone {
		t.Errorf("sphere mode = %v, want none after failure", m.SphereMode)
	}
	if m.Texture(evaluator.TextureMain) == 0 || m.Texture(evaluator.TextureMain) != r.Fallback() {
		t.Error("failed slot should use the fallback texture")
	}
	r.Resolve(1)

	if n := loader.calls[filepath.Join(base, "missing.png")]; n != 1 {
		t.Errorf("missing.png attempted %d times, want 1", n)
	}
	if len(r.reported) != 1 {
		t.Errorf("reported %d failures, want 1", len(r.reported))
	}
	if dev.Stats().TexturesCreated != 1 {
		t.Errorf("textures created = %d, want only the fallback", dev.Stats().TexturesCreated)
	}
}

func TestResolveUnknownMaterial(t *testing.T) {
	r := NewResolver(gpu.NewMemory(), newFakeLoader(), Options{})
	r.Bind(1, "/models", fakeSource{})

	m := r.Resolve(42)
	if m.Found {
		t.Error("unknown material should not be found")
	}
	if m.Info.Diffuse != [4]float32{1, 1, 1, 1} {
		t.Errorf("default diffuse = %v", m.Info.Diffuse)
	}
}

func TestBindNewVersionInvalidates(t *testing.T) {
	base := filepath.FromSlash("/models/miku")
	loader := newFakeLoader(filepath.Join(base, "a.png"))
	dev := gpu.NewMemory()
	r := NewResolver(dev, loader, Options{})
	src := fakeSource{0: info("a.png", "", "", evaluator.SphereNone)}

	r.Bind(1, base, src)
	first := r.Resolve(0).Texture(evaluator.TextureMain)

	r.Bind(1, base, src)
	if r.CachedMaterials() != 1 {
		t.Error("same version must keep the cache")
	}

	r.Bind(2, base, src)
	if r.CachedMaterials() != 0 {
		t.Error("new version must drop cached materials")
	}
	if _, ok := dev.Texture(first); ok {
		t.Error("old texture should be deleted")
	}
	r.Resolve(0)
	if n := loader.calls[filepath.Join(base, "a.png")]; n != 2 {
		t.Errorf("a.png loaded %d times, want 2", n)
	}
}

func TestResolvePath(t *testing.T) {
	base := filepath.FromSlash("/models/miku")
	abs := filepath.FromSlash("/shared/tex/eye.png")
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"body.png", filepath.Join(base, "body.png")},
		{`tex\face.png`, filepath.Join(base, "tex", "face.png")},
		{"../common/skin.png", filepath.FromSlash("/models/common/skin.png")},
		{filepath.ToSlash(abs), abs},
	}
	for _, tt := range tests {
		if got := resolvePath(base, tt.in); got != tt.want {
			t.Errorf("resolvePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSharedToonDir(t *testing.T) {
	modelDir := t.TempDir()
	toonDir := t.TempDir()
	shared := filepath.Join(toonDir, "toon03.bmp")
	if err := os.WriteFile(shared, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := newFakeLoader(shared)
	r := NewResolver(gpu.NewMemory(), loader, Options{SharedToonDir: toonDir})
	r.Bind(1, modelDir, fakeSource{0: info("", "toon03.bmp", "", evaluator.SphereNone)})

	m := r.Resolve(0)
	if !m.TextureEnabled(evaluator.TextureToon) {
		t.Error("toon should resolve from the shared directory")
	}
	if loader.calls[shared] != 1 {
		t.Errorf("shared toon loaded %d times", loader.calls[shared])
	}
}

func TestReleaseFreesTextures(t *testing.T) {
	base := filepath.FromSlash("/m")
	dev := gpu.NewMemory()
	r := NewResolver(dev, newFakeLoader(filepath.Join(base, "a.png")), Options{})
	r.Bind(1, base, fakeSource{0: info("a.png", "missing.bmp", "", evaluator.SphereNone)})
	r.Resolve(0)

	if dev.LiveTextures() != 2 {
		t.Fatalf("live textures = %d, want 2", dev.LiveTextures())
	}
	r.Release()
	if dev.LiveTextures() != 0 {
		t.Errorf("live textures = %d after Release", dev.LiveTextures())
	}
}

func TestLoaderFunc(t *testing.T) {
	want := errors.New("boom")
	l := LoaderFunc(func(string) (*image.RGBA, error) { return nil, want })
	if _, err := l.Load("x"); !errors.Is(err, want) {
		t.Errorf("got %v", err)
	}
}
