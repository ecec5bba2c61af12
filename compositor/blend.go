package compositor

import (
	"fmt"

	"github.com/pithecene-io/mural/types"
)

// merge combines the fragments of one tile, indexed by rank. With an order
// it blends back to front; otherwise with depth on every fragment the
// nearest sample wins, ties going to the lower rank; otherwise fragments
// are painted in rank order, each covered pixel overwriting.
func merge(frags []Partial, order []int) (types.RawImage, error) {
	first := frags[0].Color
	for r, f := range frags {
		if f.Color.Width != first.Width || f.Color.Height != first.Height || f.Color.Components != first.Components {
			return types.RawImage{}, fmt.Errorf("%w: rank %d sent %dx%dx%d, want %dx%dx%d", ErrFragment, r,
				f.Color.Width, f.Color.Height, f.Color.Components, first.Width, first.Height, first.Components)
		}
	}

	if order != nil {
		return blendOrdered(frags, order), nil
	}
	if allHaveDepth(frags) {
		return depthTest(frags), nil
	}
	return paintRankOrder(frags), nil
}

func allHaveDepth(frags []Partial) bool {
	for _, f := range frags {
		if f.Depth == nil {
			return false
		}
	}
	return true
}

func depthTest(frags []Partial) types.RawImage {
	out := frags[0].Color.Clone()
	depth := append([]float32(nil), frags[0].Depth...)
	c := out.Components
	for _, f := range frags[1:] {
		for p, d := range f.Depth {
			if d < depth[p] {
				depth[p] = d
				copy(out.Pixels[p*c:(p+1)*c], f.Color.Pixels[p*c:(p+1)*c])
			}
		}
	}
	return out
}

// covered reports whether a pixel carries content: non-zero alpha, or any
// non-zero channel for images without alpha.
func covered(px []byte) bool {
	if len(px) == 4 {
		return px[3] != 0
	}
	for _, b := range px {
		if b != 0 {
			return true
		}
	}
	return false
}

func paintRankOrder(frags []Partial) types.RawImage {
	out := frags[0].Color.Clone()
	c := out.Components
	for _, f := range frags[1:] {
		for i := 0; i < len(out.Pixels); i += c {
			if px := f.Color.Pixels[i : i+c]; covered(px) {
				copy(out.Pixels[i:i+c], px)
			}
		}
	}
	return out
}

// blendOrdered composites premultiplied RGBA back to front with "over".
// Images without alpha are painted in the given order.
func blendOrdered(frags []Partial, order []int) types.RawImage {
	order = validOrder(order, len(frags))
	out := types.NewRawImage(frags[0].Color.Width, frags[0].Color.Height, frags[0].Color.Components)
	c := out.Components
	for _, r := range order {
		src := frags[r].Color.Pixels
		if c != 4 {
			for i := 0; i < len(src); i += c {
				if covered(src[i : i+c]) {
					copy(out.Pixels[i:i+c], src[i:i+c])
				}
			}
			continue
		}
		dst := out.Pixels
		for i := 0; i < len(src); i += 4 {
			keep := 255 - uint32(src[i+3])
			for ch := range 4 {
				v := uint32(src[i+ch]) + (uint32(dst[i+ch])*keep+127)/255
				dst[i+ch] = byte(min(v, 255))
			}
		}
	}
	return out
}

// validOrder returns order when it is a permutation of [0, n), else rank
// order.
func validOrder(order []int, n int) []int {
	if len(order) == n {
		seen := make([]bool, n)
		ok := true
		for _, r := range order {
			if r < 0 || r >= n || seen[r] {
				ok = false
				break
			}
			seen[r] = true
		}
		if ok {
			return order
		}
	}
	ranks := make([]int, n)
	for i := range ranks {
		ranks[i] = i
	}
	return ranks
}
