package compositor

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/pithecene-io/mural/types"
)

// reducedSize is the size of one dimension after reduction by n.
func reducedSize(size, n int) int {
	return max(1, (size+n-1)/n)
}

// reduce downsamples a fragment by n: colour with nearest-neighbour, depth
// by nearest sampling.
func reduce(p Partial, n int) Partial {
	if n <= 1 {
		return p
	}
	w, h := reducedSize(p.Color.Width, n), reducedSize(p.Color.Height, n)
	out := Partial{Color: scale(p.Color, w, h, draw.NearestNeighbor)}
	if p.Depth != nil {
		out.Depth = make([]float32, w*h)
		for y := range h {
			sy := min(y*n, p.Color.Height-1)
			for x := range w {
				sx := min(x*n, p.Color.Width-1)
				out.Depth[y*w+x] = p.Depth[sy*p.Color.Width+sx]
			}
		}
	}
	return out
}

// expand brings a reduced tile back to full tile size.
func expand(img types.RawImage, w, h int) types.RawImage {
	if img.Width == w && img.Height == h {
		return img
	}
	return scale(img, w, h, draw.ApproxBiLinear)
}

// scale resamples src to w x h.
func scale(src types.RawImage, w, h int, scaler draw.Scaler) types.RawImage {
	rect := image.Rect(0, 0, w, h)
	switch src.Components {
	case 1:
		in := &image.Gray{Pix: src.Pixels, Stride: src.Width, Rect: image.Rect(0, 0, src.Width, src.Height)}
		dst := image.NewGray(rect)
		scaler.Scale(dst, rect, in, in.Bounds(), draw.Src, nil)
		return types.RawImage{Width: w, Height: h, Components: 1, Valid: true, Pixels: dst.Pix}
	case 4:
		in := &image.RGBA{Pix: src.Pixels, Stride: src.Width * 4, Rect: image.Rect(0, 0, src.Width, src.Height)}
		dst := image.NewRGBA(rect)
		scaler.Scale(dst, rect, in, in.Bounds(), draw.Src, nil)
		return types.RawImage{Width: w, Height: h, Components: 4, Valid: true, Pixels: dst.Pix}
	default:
		in := toRGBA(src)
		dst := image.NewRGBA(rect)
		scaler.Scale(dst, rect, in, in.Bounds(), draw.Src, nil)
		return fromRGBA(dst, src.Components)
	}
}

// toRGBA widens 2-component (luminance, alpha) and 3-component (RGB)
// pixels to RGBA.
func toRGBA(src types.RawImage) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, src.Width, src.Height))
	c := src.Components
	for i, p := 0, 0; i < len(src.Pixels); i, p = i+c, p+4 {
		px := src.Pixels[i : i+c]
		if c == 2 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = px[0], px[0], px[0], px[1]
			continue
		}
		img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = px[0], px[1], px[2], 0xFF
	}
	return img
}

func fromRGBA(img *image.RGBA, components int) types.RawImage {
	b := img.Bounds()
	out := types.NewRawImage(b.Dx(), b.Dy(), components)
	for i, p := 0, 0; p < len(img.Pix); i, p = i+components, p+4 {
		if components == 2 {
			out.Pixels[i], out.Pixels[i+1] = img.Pix[p], img.Pix[p+3]
			continue
		}
		out.Pixels[i], out.Pixels[i+1], out.Pixels[i+2] = img.Pix[p], img.Pix[p+1], img.Pix[p+2]
	}
	return out
}
