package relay

import "github.com/pithecene-io/mural/types"

// BackgroundFixUp forces a renderer's background flat around one capture,
// so the consumer can lay the image over its own background. It is inert
// in tile and CAVE modes, where the render side owns the final
// presentation.
//
// Every rank of a partitioned group needs one: the composited image takes
// background pixels from whichever rank holds them.
type BackgroundFixUp struct {
	bg       BackgroundSetter
	active   bool
	pending  bool
	previous bool
}

// NewBackgroundFixUp returns a fix-up for bg under cluster. bg may be nil.
func NewBackgroundFixUp(bg BackgroundSetter, cluster types.ClusterTopology) *BackgroundFixUp {
	return &BackgroundFixUp{
		bg:     bg,
		active: bg != nil && !cluster.InTileDisplayMode() && !cluster.InCaveMode(),
	}
}

// Begin switches the background flat. A second Begin before End is a
// no-op.
func (f *BackgroundFixUp) Begin() {
	if f == nil || !f.active || f.pending {
		return
	}
	f.previous = f.bg.FlatBackground()
	f.bg.SetFlatBackground(true)
	f.pending = true
}

// End restores the mode Begin replaced.
func (f *BackgroundFixUp) End() {
	if f == nil || !f.pending {
		return
	}
	f.bg.SetFlatBackground(f.previous)
	f.pending = false
}
