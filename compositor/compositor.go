// Package compositor merges the partial images rendered by a process group
// into one image (sort-last compositing).
//
// Each rank renders the whole logical viewport from its share of the data.
// Composite splits that viewport into display tiles, gathers every rank's
// fragment of a tile on the tile's owner, merges them and hands the result
// back according to the write-back and tile settings.
package compositor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pithecene-io/mural/types"
)

// Sentinel errors for compositing failures.
var (
	// ErrInconsistentTopology is returned on every rank when the first-frame
	// handshake finds ranks with different compositing parameters.
	ErrInconsistentTopology = errors.New("compositor: inconsistent topology across ranks")
	// ErrFragment is returned when a rank's fragment does not match the
	// owner's tile geometry.
	ErrFragment = errors.New("compositor: fragment does not match tile")
	// ErrGeometry is returned when the partial image cannot hold the tile
	// grid and its mullions.
	ErrGeometry = errors.New("compositor: image too small for tile grid")
	// ErrKind is returned when a Parallel is built with a kind it does not
	// implement.
	ErrKind = errors.New("compositor: unsupported kind")
)

// Message tags used within the compositing group.
const (
	TagTopologyCheck   = 20
	TagTopologyVerdict = 21
	TagFragment        = 22
	TagTile            = 23
)

// Kind discriminates render synchronizers.
type Kind int

const (
	// IceTStyle reduces tile t on rank t % size.
	IceTStyle Kind = iota
	// SimpleGather composites everything on rank 0.
	SimpleGather
	// CaveAdapterOnly never composites; each rank drives its own display.
	CaveAdapterOnly
)

var kindNames = [...]string{"icet", "gather", "cave"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind parses "icet", "gather" or "cave".
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrKind, s)
}

// Synchronizer is the per-frame render synchronization strategy. Callers
// branch on Kind.
type Synchronizer interface {
	Kind() Kind
	// LastRenderedTile is this process's share of the last composited
	// frame. Invalid when this process holds nothing.
	LastRenderedTile() types.RawImage
}

// State is the per-frame compositing state.
type State int

const (
	Idle State = iota
	Capturing
	Compositing
	Composited
)

var stateNames = [...]string{"idle", "capturing", "compositing", "composited"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Partial is one rank's render of the full logical viewport.
type Partial struct {
	Color types.RawImage
	// Depth is optional: one value per pixel, smaller is nearer.
	Depth []float32
}

// Validate checks that the colour image is valid and the depth buffer, when
// present, covers it.
func (p Partial) Validate() error {
	if !p.Color.Valid {
		return errors.New("partial colour image is invalid")
	}
	if err := p.Color.Validate(); err != nil {
		return err
	}
	if p.Depth != nil && len(p.Depth) != p.Color.Width*p.Color.Height {
		return fmt.Errorf("depth holds %d values, image has %d pixels", len(p.Depth), p.Color.Width*p.Color.Height)
	}
	return nil
}

// Capturer renders this rank's partial image for the current frame.
type Capturer interface {
	CapturePartial() (Partial, error)
}

// TileOrdering supplies a visibility order for translucent content.
type TileOrdering interface {
	// BackToFront returns the ranks of a size-member group, farthest first.
	BackToFront(size int) []int
}

// FixedOrdering is a TileOrdering that never changes.
type FixedOrdering []int

// BackToFront implements TileOrdering.
func (o FixedOrdering) BackToFront(int) []int { return o }
