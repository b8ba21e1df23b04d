package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// Decode decodes a texture by file extension. Sphere maps (.sph, .spa) and
// unknown extensions are sniffed, with TGA as the last resort since it has no
// magic number.
func Decode(path string, data []byte) (*image.RGBA, error) {
	var (
		img image.Image
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tga":
		return DecodeTGA(data)
	case ".bmp":
		img, err = bmp.Decode(bytes.NewReader(data))
	case ".webp":
		img, err = webp.Decode(bytes.NewReader(data))
	default:
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			if tga, tgaErr := DecodeTGA(data); tgaErr == nil {
				return tga, nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return ToRGBA(img), nil
}

// LoadFile reads and decodes a texture file.
func LoadFile(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(path, data)
}

// ToRGBA converts img to *image.RGBA with its origin at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// White returns a 1x1 opaque white image, the fallback for missing textures.
func White() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []byte{255, 255, 255, 255})
	return img
}
