package compositor

import (
	"fmt"

	"github.com/pithecene-io/mural/types"
)

// layout maps the logical viewport onto the tile grid. Tile t sits at
// column t % cols, row t / cols; row 0 is the top of the image. Mullion
// pixels and any remainder at the right and bottom edges belong to no tile.
type layout struct {
	width, height int
	components    int
	cols, rows    int
	mx, my        int
	tileW, tileH  int
}

func newLayout(width, height, components, cols, rows, mx, my int) (layout, error) {
	l := layout{
		width: width, height: height, components: components,
		cols: max(cols, 1), rows: max(rows, 1),
		mx: mx, my: my,
	}
	l.tileW = (width - (l.cols-1)*mx) / l.cols
	l.tileH = (height - (l.rows-1)*my) / l.rows
	if l.tileW <= 0 || l.tileH <= 0 {
		return layout{}, fmt.Errorf("%w: %dx%d cannot hold %dx%d tiles with %dx%d mullions",
			ErrGeometry, width, height, l.cols, l.rows, mx, my)
	}
	return l, nil
}

func (l layout) tiles() int { return l.cols * l.rows }

func (l layout) origin(t int) (x, y int) {
	return (t % l.cols) * (l.tileW + l.mx), (t / l.cols) * (l.tileH + l.my)
}

// extract copies tile t out of a full-viewport partial.
func (l layout) extract(p Partial, t int) Partial {
	x0, y0 := l.origin(t)
	c := l.components
	out := Partial{Color: types.NewRawImage(l.tileW, l.tileH, c)}
	rowBytes := l.tileW * c
	for y := range l.tileH {
		src := ((y0+y)*l.width + x0) * c
		copy(out.Color.Pixels[y*rowBytes:(y+1)*rowBytes], p.Color.Pixels[src:src+rowBytes])
	}
	if p.Depth != nil {
		out.Depth = make([]float32, l.tileW*l.tileH)
		for y := range l.tileH {
			src := (y0+y)*l.width + x0
			copy(out.Depth[y*l.tileW:(y+1)*l.tileW], p.Depth[src:src+l.tileW])
		}
	}
	return out
}

// assemble pastes tiles into a full viewport. Gaps stay zero; invalid tiles
// are skipped.
func (l layout) assemble(tiles []types.RawImage) types.RawImage {
	c := l.components
	out := types.NewRawImage(l.width, l.height, c)
	rowBytes := l.tileW * c
	for t, tile := range tiles {
		if !tile.Valid {
			continue
		}
		x0, y0 := l.origin(t)
		for y := range l.tileH {
			dst := ((y0+y)*l.width + x0) * c
			copy(out.Pixels[dst:dst+rowBytes], tile.Pixels[y*rowBytes:(y+1)*rowBytes])
		}
	}
	return out
}
