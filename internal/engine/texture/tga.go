// Package texture decodes model texture files into RGBA images ready for upload.
package texture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2
	TGATypeGray         = 3
	TGATypeTrueColorRLE = 10
	TGATypeGrayRLE      = 11
)

// ErrTGATruncated is returned when pixel data ends early.
var ErrTGATruncated = errors.New("TGA data truncated")

type tgaHeader struct {
	idLength     int
	colorMapType byte
	imageType    byte
	width        int
	height       int
	bpp          int
	descriptor   byte
}

func parseTGAHeader(data []byte) (tgaHeader, error) {
	if len(data) < 18 {
		return tgaHeader{}, fmt.Errorf("TGA data too short")
	}
	h := tgaHeader{
		idLength:     int(data[0]),
		colorMapType: data[1],
		imageType:    data[2],
		width:        int(data[12]) | int(data[13])<<8,
		height:       int(data[14]) | int(data[15])<<8,
		bpp:          int(data[16]),
		descriptor:   data[17],
	}
	if h.colorMapType != 0 {
		return h, fmt.Errorf("color-mapped TGA not supported")
	}
	switch h.imageType {
	case TGATypeTrueColor, TGATypeTrueColorRLE:
		if h.bpp != 24 && h.bpp != 32 {
			return h, fmt.Errorf("unsupported TGA bit depth %d for true-color", h.bpp)
		}
	case TGATypeGray, TGATypeGrayRLE:
		if h.bpp != 8 {
			return h, fmt.Errorf("unsupported TGA bit depth %d for grayscale", h.bpp)
		}
	default:
		return h, fmt.Errorf("unsupported TGA type %d", h.imageType)
	}
	if h.width == 0 || h.height == 0 {
		return h, fmt.Errorf("empty TGA image")
	}
	return h, nil
}

func (h tgaHeader) rle() bool {
	return h.imageType == TGATypeTrueColorRLE || h.imageType == TGATypeGrayRLE
}

// Bit 5 of the descriptor selects top-to-bottom rows, bit 4 right-to-left columns.
func (h tgaHeader) topToBottom() bool { return h.descriptor&0x20 != 0 }
func (h tgaHeader) rightToLeft() bool { return h.descriptor&0x10 != 0 }

// DecodeTGA decodes uncompressed and RLE true-color or grayscale TGA files.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	h, err := parseTGAHeader(data)
	if err != nil {
		return nil, err
	}
	offset := 18 + h.idLength
	if offset > len(data) {
		return nil, ErrTGATruncated
	}

	r := &tgaReader{data: data[offset:], bytesPerPixel: h.bpp / 8}
	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))

	put := func(i int, c color.RGBA) {
		x, y := i%h.width, i/h.width
		if !h.topToBottom() {
			y = h.height - 1 - y
		}
		if h.rightToLeft() {
			x = h.width - 1 - x
		}
		img.SetRGBA(x, y, c)
	}

	total := h.width * h.height
	if !h.rle() {
		if len(r.data) < total*r.bytesPerPixel {
			return nil, ErrTGATruncated
		}
		for i := 0; i < total; i++ {
			c, _ := r.pixel()
			put(i, c)
		}
		return img, nil
	}

	for i := 0; i < total; {
		packet, ok := r.byte()
		if !ok {
			return nil, ErrTGATruncated
		}
		count := int(packet&0x7F) + 1
		if packet&0x80 != 0 {
			c, ok := r.pixel()
			if !ok {
				return nil, ErrTGATruncated
			}
			for ; count > 0 && i < total; count-- {
				put(i, c)
				i++
			}
			continue
		}
		for ; count > 0 && i < total; count-- {
			c, ok := r.pixel()
			if !ok {
				return nil, ErrTGATruncated
			}
			put(i, c)
			i++
		}
	}
	return img, nil
}

type tgaReader struct {
	data          []byte
	pos           int
	bytesPerPixel int
}

func (r *tgaReader) byte() (byte, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

// pixel reads one BGR(A) or gray pixel.
func (r *tgaReader) pixel() (color.RGBA, bool) {
	if r.pos+r.bytesPerPixel > len(r.data) {
		return color.RGBA{}, false
	}
	p := r.data[r.pos : r.pos+r.bytesPerPixel]
	r.pos += r.bytesPerPixel

	switch r.bytesPerPixel {
	case 1:
		return color.RGBA{R: p[0], G: p[0], B: p[0], A: 255}, true
	case 3:
		return color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}, true
	default:
		return color.RGBA{R: p[2], G: p[1], B: p[0], A: p[3]}, true
	}
}
