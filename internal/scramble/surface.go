package scramble

import (
	"image"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Surface is a drawable target. Resize receives the natural image size and the
// surface applies its own pixel ratio; CopyTile copies from (source image
// space) into to (logical surface space).
type Surface interface {
	Resize(width, height int)
	CopyTile(src image.Image, from, to image.Rectangle)
}

// Canvas is a raster Surface scaled by a device pixel ratio. Tile edges are
// scaled individually, so scaled tiles still partition the backing image.
type Canvas struct {
	mu     sync.Mutex
	img    *image.RGBA
	ratio  float64
	interp xdraw.Interpolator
	closed bool
}

func NewCanvas(pixelRatio float64) *Canvas {
	if math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) || pixelRatio <= 0 {
		pixelRatio = 1
	}
	return &Canvas{ratio: pixelRatio, interp: xdraw.CatmullRom}
}

func (c *Canvas) PixelRatio() float64 {
	return c.ratio
}

func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, c.scale(width), c.scale(height)))
}

func (c *Canvas) CopyTile(src image.Image, from, to image.Rectangle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.img == nil {
		return
	}
	dr := image.Rect(c.scale(to.Min.X), c.scale(to.Min.Y), c.scale(to.Max.X), c.scale(to.Max.Y))
	if dr.Empty() || from.Empty() {
		return
	}
	if dr.Size() == from.Size() {
		xdraw.Draw(c.img, dr, src, from.Min, xdraw.Src)
		return
	}
	c.interp.Scale(c.img, dr, src, from, xdraw.Src, nil)
}

// Image returns the backing raster, or nil before the first Resize.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img
}

// Close disposes the canvas. Later Resize and CopyTile calls are ignored.
func (c *Canvas) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Canvas) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Canvas) scale(n int) int {
	if c.ratio == 1 {
		return n
	}
	return int(float64(n) * c.ratio)
}
