package qrcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const (
	// Size is the edge of the rendered PNG in pixels.
	Size = 512
	// Margin is the quiet zone in modules.
	Margin = 2

	ContentType = "image/png"
)

// Encoder renders payloads to PNG QR images with medium error correction.
type Encoder struct {
	fg color.RGBA
	bg color.RGBA
}

func NewEncoder(foreground, background string) (*Encoder, error) {
	fg, err := ParseHexColor(foreground)
	if err != nil {
		return nil, fmt.Errorf("foreground: %w", err)
	}
	bg, err := ParseHexColor(background)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}
	return &Encoder{fg: fg, bg: bg}, nil
}

// Matrix encodes content into a QR symbol with one pixel per module.
func Matrix(content string) (barcode.Barcode, error) {
	return qr.Encode(content, qr.M, qr.Auto)
}

// Render draws the QR symbol for content centred on a Size x Size canvas.
func (e *Encoder) Render(content string) ([]byte, error) {
	code, err := Matrix(content)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	modules := code.Bounds().Dx()
	scale, offset := Geometry(modules)
	if scale < 1 {
		return nil, fmt.Errorf("payload too large: %d modules do not fit %dpx", modules, Size)
	}

	img := image.NewPaletted(image.Rect(0, 0, Size, Size), color.Palette{e.bg, e.fg})
	for y := 0; y < modules; y++ {
		for x := 0; x < modules; x++ {
			if !isDark(code.At(x, y)) {
				continue
			}
			x0, y0 := offset+x*scale, offset+y*scale
			for py := y0; py < y0+scale; py++ {
				row := img.Pix[py*img.Stride:]
				for px := x0; px < x0+scale; px++ {
					row[px] = 1
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Geometry returns the pixel size of one module and the pixel offset of the first module.
func Geometry(modules int) (scale, offset int) {
	total := modules + 2*Margin
	scale = Size / total
	offset = (Size-scale*total)/2 + Margin*scale
	return scale, offset
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r+g+b < 3*0x8000
}

// ParseHexColor accepts #RGB or #RRGGBB.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
