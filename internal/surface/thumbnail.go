package surface

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Thumbnail encodes the canvas as PNG scaled down to width pixels, preserving
// the aspect ratio. Widths that are not smaller than the canvas return PNG().
func (c *Canvas) Thumbnail(width int) ([]byte, error) {
	src := c.Image()
	if src == nil {
		return nil, errors.New("canvas not painted")
	}
	b := src.Bounds()
	if width <= 0 || width >= b.Dx() {
		return c.PNG()
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
