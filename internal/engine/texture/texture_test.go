package texture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func tgaHeaderBytes(imageType byte, w, h int, bpp, descriptor byte) []byte {
	hdr := make([]byte, 18)
	hdr[2] = imageType
	hdr[12] = byte(w)
	hdr[13] = byte(w >> 8)
	hdr[14] = byte(h)
	hdr[15] = byte(h >> 8)
	hdr[16] = bpp
	hdr[17] = descriptor
	return hdr
}

func TestDecodeTGAUncompressedBottomUp(t *testing.T) {
	// 2x2, 24bpp, rows stored bottom row first.
	data := tgaHeaderBytes(TGATypeTrueColor, 2, 2, 24, 0)
	data = append(data,
		0, 0, 255, 0, 255, 0, // bottom: red, green
		255, 0, 0, 255, 255, 255, // top: blue, white
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{0, 1, color.RGBA{255, 0, 0, 255}},
		{1, 1, color.RGBA{0, 255, 0, 255}},
		{0, 0, color.RGBA{0, 0, 255, 255}},
		{1, 0, color.RGBA{255, 255, 255, 255}},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// 3x1, 32bpp, top-to-bottom: one RLE packet of 2 pixels then one raw pixel.
	data := tgaHeaderBytes(TGATypeTrueColorRLE, 3, 1, 32, 0x20)
	data = append(data,
		0x81, 10, 20, 30, 128,
		0x00, 1, 2, 3, 4,
	)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	if got := img.RGBAAt(1, 0); got != (color.RGBA{30, 20, 10, 128}) {
		t.Errorf("run pixel = %v", got)
	}
	if got := img.RGBAAt(2, 0); got != (color.RGBA{3, 2, 1, 4}) {
		t.Errorf("raw pixel = %v", got)
	}
}

func TestDecodeTGAGray(t *testing.T) {
	data := tgaHeaderBytes(TGATypeGray, 1, 1, 8, 0)
	data = append(data, 77)

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{77, 77, 77, 255}) {
		t.Errorf("gray pixel = %v", got)
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{0, 0, 2}},
		{"color mapped", func() []byte { d := tgaHeaderBytes(TGATypeTrueColor, 1, 1, 24, 0); d[1] = 1; return d }()},
		{"bad type", tgaHeaderBytes(1, 1, 1, 24, 0)},
		{"bad depth", tgaHeaderBytes(TGATypeTrueColor, 1, 1, 16, 0)},
		{"truncated raw", append(tgaHeaderBytes(TGATypeTrueColor, 2, 2, 24, 0), 1, 2, 3)},
		{"truncated rle", append(tgaHeaderBytes(TGATypeTrueColorRLE, 2, 2, 24, 0), 0x83, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeTGA(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := DecodeTGA(append(tgaHeaderBytes(TGATypeTrueColor, 2, 2, 24, 0), 1, 2, 3))
	if !errors.Is(err, ErrTGATruncated) {
		t.Errorf("got %v, want ErrTGATruncated", err)
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{200, 100, 50, 255})
	img.Set(1, 0, color.NRGBA{0, 0, 0, 255})
	return img
}

func TestDecodeByExtension(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, testImage()); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, testImage()); err != nil {
		t.Fatal(err)
	}
	tga := append(tgaHeaderBytes(TGATypeTrueColor, 2, 1, 24, 0x20), 50, 100, 200, 0, 0, 0)

	tests := []struct {
		path string
		data []byte
	}{
		{"tex/body.png", pngBuf.Bytes()},
		{"tex/body.BMP", bmpBuf.Bytes()},
		{"tex/body.tga", tga},
		{"sphere/metal.sph", bmpBuf.Bytes()},
		{"sphere/metal.spa", pngBuf.Bytes()},
		{"tex/noext", tga},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			img, err := Decode(tt.path, tt.data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 1 {
				t.Fatalf("bounds = %v", img.Bounds())
			}
			if got := img.RGBAAt(0, 0); got != (color.RGBA{200, 100, 50, 255}) {
				t.Errorf("pixel = %v", got)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode("tex/broken.png", []byte("not an image")); err == nil {
		t.Error("expected error")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "face.png")
	var buf bytes.Buffer
	png.Encode(&buf, testImage())
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err != nil {
		t.Errorf("LoadFile: %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}
}

func TestToRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if ToRGBA(src) != src {
		t.Error("RGBA at origin should be returned as-is")
	}

	offset := image.NewNRGBA(image.Rect(5, 5, 7, 6))
	offset.Set(5, 5, color.NRGBA{1, 2, 3, 255})
	got := ToRGBA(offset)
	if got.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("bounds = %v", got.Bounds())
	}
	if c := got.RGBAAt(0, 0); c != (color.RGBA{1, 2, 3, 255}) {
		t.Errorf("pixel = %v", c)
	}
}

func TestWhite(t *testing.T) {
	img := White()
	if img.Bounds().Dx() != 1 || img.RGBAAt(0, 0) != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("White() = %v", img.RGBAAt(0, 0))
	}
}
