// Package scene is a deterministic test-pattern renderer. It stands in for
// a real scene graph: every rank draws one horizontal band of the viewport
// over a gradient background, so composites and relayed frames can be
// checked by eye and by test.
package scene

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/relay"
	"github.com/pithecene-io/mural/types"
)

// Depth values written by the renderer. Smaller is nearer.
const (
	BackgroundDepth = float32(1)
	bandDepthBase   = float32(0.1)
	bandDepthStep   = float32(0.05)
)

// ErrSize is returned for a viewport the renderer cannot draw.
var ErrSize = errors.New("scene: invalid viewport")

// palette colours bands by rank.
var palette = []color.RGBA{
	{R: 0xE6, G: 0x39, B: 0x46, A: 0xFF},
	{R: 0x2A, G: 0x9D, B: 0x8F, A: 0xFF},
	{R: 0xE9, G: 0xC4, B: 0x6A, A: 0xFF},
	{R: 0x45, G: 0x7B, B: 0x9D, A: 0xFF},
	{R: 0xF4, G: 0xA2, B: 0x61, A: 0xFF},
	{R: 0x6D, G: 0x59, B: 0x7A, A: 0xFF},
}

// Config is the viewport and group placement of a Renderer.
type Config struct {
	Width      int `json:"width" yaml:"width"`
	Height     int `json:"height" yaml:"height"`
	Components int `json:"components" yaml:"components"`
	Rank       int `json:"-" yaml:"-"`
	// Ranks is the number of processes sharing the scene.
	Ranks int `json:"-" yaml:"-"`
}

// Renderer draws the test pattern. Not safe for concurrent use.
type Renderer struct {
	cfg   Config
	flat  bool
	frame int
}

// New validates cfg and creates a renderer.
func New(cfg Config) (*Renderer, error) {
	if cfg.Ranks < 1 {
		cfg.Ranks = 1
	}
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0:
		return nil, fmt.Errorf("%w: %dx%d", ErrSize, cfg.Width, cfg.Height)
	case cfg.Components != 3 && cfg.Components != 4:
		return nil, fmt.Errorf("%w: %d components, want 3 or 4", ErrSize, cfg.Components)
	case cfg.Rank < 0 || cfg.Rank >= cfg.Ranks:
		return nil, fmt.Errorf("%w: rank %d of %d", ErrSize, cfg.Rank, cfg.Ranks)
	}
	return &Renderer{cfg: cfg}, nil
}

// Advance moves the pattern to the next frame.
func (r *Renderer) Advance() { r.frame++ }

// Frame is the current frame number.
func (r *Renderer) Frame() int { return r.frame }

// FlatBackground reports whether the gradient is suppressed.
func (r *Renderer) FlatBackground() bool { return r.flat }

// SetFlatBackground suppresses the gradient, leaving background pixels
// zero.
func (r *Renderer) SetFlatBackground(flat bool) { r.flat = flat }

// Band is the row range [top, bottom) this rank draws.
func (r *Renderer) Band() (top, bottom int) {
	return bandRows(r.cfg.Height, r.cfg.Rank, r.cfg.Ranks)
}

func bandRows(height, rank, ranks int) (top, bottom int) {
	return height * rank / ranks, height * (rank + 1) / ranks
}

// BandColor is the colour rank draws its band in.
func BandColor(rank int) color.RGBA {
	return palette[rank%len(palette)]
}

// CapturePartial renders this rank's share of the viewport with depth.
func (r *Renderer) CapturePartial() (compositor.Partial, error) {
	canvas := r.draw()
	depth := make([]float32, r.cfg.Width*r.cfg.Height)
	for i := range depth {
		depth[i] = BackgroundDepth
	}
	top, bottom := r.Band()
	d := bandDepthBase + bandDepthStep*float32(r.cfg.Rank)
	for i := top * r.cfg.Width; i < bottom*r.cfg.Width; i++ {
		depth[i] = d
	}
	return compositor.Partial{Color: r.pack(canvas), Depth: depth}, nil
}

// Capture renders the colour image only.
func (r *Renderer) Capture() (types.RawImage, error) {
	return r.pack(r.draw()), nil
}

func (r *Renderer) draw() *image.RGBA {
	w, h := r.cfg.Width, r.cfg.Height
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	if !r.flat {
		shift := r.frame % 256
		for y := range h {
			shade := uint8((y*255/max(h-1, 1) + shift) % 256)
			row := image.Rect(0, y, w, y+1)
			draw.Draw(canvas, row, image.NewUniform(color.RGBA{R: shade / 4, G: shade / 4, B: shade / 2, A: 0xFF}), image.Point{}, draw.Src)
		}
	}
	top, bottom := r.Band()
	draw.Draw(canvas, image.Rect(0, top, w, bottom), image.NewUniform(BandColor(r.cfg.Rank)), image.Point{}, draw.Src)
	return canvas
}

// pack converts the canvas to the configured component count.
func (r *Renderer) pack(canvas *image.RGBA) types.RawImage {
	if r.cfg.Components == 4 {
		img, _ := types.WrapRawImage(r.cfg.Width, r.cfg.Height, 4, canvas.Pix)
		return img
	}
	img := types.NewRawImage(r.cfg.Width, r.cfg.Height, 3)
	for p := range r.cfg.Width * r.cfg.Height {
		copy(img.Pixels[p*3:p*3+3], canvas.Pix[p*4:p*4+3])
	}
	return img
}

var (
	_ compositor.Capturer    = (*Renderer)(nil)
	_ relay.Renderer         = (*Renderer)(nil)
	_ relay.BackgroundSetter = (*Renderer)(nil)
)
