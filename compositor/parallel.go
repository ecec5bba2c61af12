package compositor

import (
	"fmt"

	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/log"
	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/types"
)

// Config is the compositing configuration of a Parallel. Every rank of a
// group must use the same values; the first frame verifies it.
type Config struct {
	// ReductionFactor scales the working resolution down before merging.
	ReductionFactor int `json:"reduction_factor" yaml:"reduction_factor"`
	TileColumns     int `json:"tile_columns" yaml:"tile_columns"`
	TileRows        int `json:"tile_rows" yaml:"tile_rows"`
	MullionX        int `json:"mullion_x" yaml:"mullion_x"`
	MullionY        int `json:"mullion_y" yaml:"mullion_y"`
	// DataReplicated means every rank renders the complete scene, so no
	// fragments are exchanged.
	DataReplicated bool `json:"data_replicated" yaml:"data_replicated"`
	// WriteBack hands the full composited image to every rank.
	WriteBack bool `json:"write_back" yaml:"write_back"`
}

// Option configures a Parallel.
type Option func(*Parallel)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Parallel) { p.logger = l }
}

// WithCollector records composites and collective failures.
func WithCollector(c *metrics.Collector) Option {
	return func(p *Parallel) { p.collector = c }
}

// WithOrdering sets the back-to-front ordering for translucent content.
func WithOrdering(o TileOrdering) Option {
	return func(p *Parallel) { p.ordering = o }
}

// WithStateObserver is called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(p *Parallel) { p.observe = fn }
}

// Parallel is the sort-last compositor for IceTStyle and SimpleGather.
// Not safe for concurrent use; one frame at a time.
type Parallel struct {
	kind      Kind
	ctrl      comm.Controller
	logger    *log.Logger
	collector *metrics.Collector
	ordering  TileOrdering
	observe   func(State)

	reduction  int
	cols, rows int
	mx, my     int
	replicated bool
	writeBack  bool

	state   State
	checked bool
	tile    types.RawImage
}

// NewParallel creates a compositor of kind IceTStyle or SimpleGather over
// ctrl's group.
func NewParallel(kind Kind, ctrl comm.Controller, cfg Config, opts ...Option) (*Parallel, error) {
	if kind != IceTStyle && kind != SimpleGather {
		return nil, fmt.Errorf("%w: parallel compositor cannot be %s", ErrKind, kind)
	}
	p := &Parallel{kind: kind, ctrl: ctrl}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.OrNop(p.logger).Named("compositor")
	p.SetImageReductionFactor(cfg.ReductionFactor)
	p.SetTileDimensions(cfg.TileColumns, cfg.TileRows)
	p.SetTileMullions(cfg.MullionX, cfg.MullionY)
	p.SetDataReplicatedOnAllProcesses(cfg.DataReplicated)
	p.SetWriteBack(cfg.WriteBack)
	return p, nil
}

// Kind implements Synchronizer.
func (p *Parallel) Kind() Kind { return p.kind }

// LastRenderedTile implements Synchronizer.
func (p *Parallel) LastRenderedTile() types.RawImage { return p.tile }

// State returns the compositing state.
func (p *Parallel) State() State { return p.state }

// SetImageReductionFactor sets the reduction factor (minimum 1).
func (p *Parallel) SetImageReductionFactor(n int) {
	p.reduction = max(n, 1)
	p.checked = false
}

// SetTileDimensions sets the display tile grid. (1, 1) or less is a single
// image.
func (p *Parallel) SetTileDimensions(cols, rows int) {
	p.cols, p.rows = max(cols, 1), max(rows, 1)
	p.checked = false
}

// SetTileMullions sets the pixel gaps between tiles.
func (p *Parallel) SetTileMullions(mx, my int) {
	p.mx, p.my = max(mx, 0), max(my, 0)
	p.checked = false
}

// SetDataReplicatedOnAllProcesses marks every rank as holding the full data.
func (p *Parallel) SetDataReplicatedOnAllProcesses(replicated bool) {
	p.replicated = replicated
}

// SetWriteBack makes every rank receive the full composited image.
func (p *Parallel) SetWriteBack(writeBack bool) {
	p.writeBack = writeBack
}

// SetOrdering sets or clears the back-to-front ordering.
func (p *Parallel) SetOrdering(o TileOrdering) {
	p.ordering = o
}

func (p *Parallel) setState(s State) {
	p.state = s
	if p.observe != nil {
		p.observe(s)
	}
}

func (p *Parallel) owner(tile, size int) int {
	if p.kind == SimpleGather {
		return 0
	}
	return tile % size
}

// Composite runs one frame: capture the local partial, merge across the
// group and keep this rank's share for LastRenderedTile. It blocks until
// every rank has contributed. On error the frame is lost and the state
// returns to Idle.
func (p *Parallel) Composite(capture Capturer) error {
	if p.state == Composited {
		p.setState(Idle)
	}
	p.tile = types.InvalidImage()

	if !p.checked {
		err := checkTopology(p.ctrl, topologyCheck{
			Reduction: p.reduction,
			Cols:      p.cols,
			Rows:      p.rows,
			MullionX:  p.mx,
			MullionY:  p.my,
			Kind:      p.kind,
		})
		if err != nil {
			p.collector.IncCollectiveFailure()
			p.logger.Error("topology check failed", map[string]any{"error": err.Error()})
			return err
		}
		p.checked = true
	}

	p.setState(Capturing)
	partial, err := capture.CapturePartial()
	if err == nil {
		err = partial.Validate()
	}
	if err != nil {
		p.setState(Idle)
		return fmt.Errorf("capture partial: %w", err)
	}

	p.setState(Compositing)
	tile, err := p.composite(partial)
	if err != nil {
		p.collector.IncCollectiveFailure()
		p.setState(Idle)
		return err
	}

	p.tile = tile
	p.collector.IncComposite()
	p.setState(Composited)
	p.logger.Debug("frame composited", map[string]any{
		"kind":  p.kind.String(),
		"valid": tile.Valid,
		"width": tile.Width,
	})
	return nil
}

func (p *Parallel) composite(partial Partial) (types.RawImage, error) {
	c := partial.Color
	l, err := newLayout(c.Width, c.Height, c.Components, p.cols, p.rows, p.mx, p.my)
	if err != nil {
		return types.RawImage{}, err
	}
	size, me := p.ctrl.NumberOfProcesses(), p.ctrl.LocalProcessID()

	var order []int
	if p.ordering != nil {
		order = p.ordering.BackToFront(size)
	}

	owned := make([]types.RawImage, l.tiles())
	for t := range owned {
		owner := p.owner(t, size)
		if p.replicated && me != owner {
			continue
		}
		frag := reduce(l.extract(partial, t), p.reduction)

		switch {
		case p.replicated:
			owned[t] = expand(frag.Color, l.tileW, l.tileH)
		case me != owner:
			data, err := encodeFragment(frag)
			if err != nil {
				return types.RawImage{}, err
			}
			if err := p.ctrl.Send(data, owner, TagFragment); err != nil {
				return types.RawImage{}, fmt.Errorf("send tile %d fragment to rank %d: %w", t, owner, err)
			}
		default:
			frags := make([]Partial, size)
			for r := range size {
				if r == me {
					frags[r] = frag
					continue
				}
				payload, err := p.ctrl.Receive(r, TagFragment)
				if err != nil {
					return types.RawImage{}, fmt.Errorf("receive tile %d fragment from rank %d: %w", t, r, err)
				}
				if frags[r], err = decodeFragment(payload); err != nil {
					return types.RawImage{}, fmt.Errorf("tile %d from rank %d: %w", t, r, err)
				}
			}
			merged, err := merge(frags, order)
			if err != nil {
				return types.RawImage{}, fmt.Errorf("tile %d: %w", t, err)
			}
			owned[t] = expand(merged, l.tileW, l.tileH)
		}
	}

	return p.distribute(l, owned, size, me)
}

// distribute moves finished tiles to the ranks that present them.
func (p *Parallel) distribute(l layout, owned []types.RawImage, size, me int) (types.RawImage, error) {
	switch {
	case p.writeBack:
		for t := range owned {
			owner := p.owner(t, size)
			if me == owner {
				if err := p.sendTile(owned[t], owner, size, -1); err != nil {
					return types.RawImage{}, fmt.Errorf("broadcast tile %d: %w", t, err)
				}
				continue
			}
			tile, err := p.receiveTile(owner)
			if err != nil {
				return types.RawImage{}, fmt.Errorf("receive tile %d: %w", t, err)
			}
			owned[t] = tile
		}
		return l.assemble(owned), nil

	case len(owned) > 1:
		for t := range min(len(owned), size) {
			owner := p.owner(t, size)
			switch {
			case owner == t:
			case me == owner:
				if err := p.sendTile(owned[t], owner, size, t); err != nil {
					return types.RawImage{}, fmt.Errorf("send tile %d: %w", t, err)
				}
			case me == t:
				tile, err := p.receiveTile(owner)
				if err != nil {
					return types.RawImage{}, fmt.Errorf("receive tile %d: %w", t, err)
				}
				owned[t] = tile
			}
		}
		if me < len(owned) {
			return owned[me], nil
		}
		return types.InvalidImage(), nil

	default:
		if me == p.owner(0, size) {
			return owned[0], nil
		}
		return types.InvalidImage(), nil
	}
}

// sendTile sends tile to rank to, or to every other rank when to < 0.
func (p *Parallel) sendTile(tile types.RawImage, me, size, to int) error {
	data, err := encodeFragment(Partial{Color: tile})
	if err != nil {
		return err
	}
	for r := range size {
		if r == me || (to >= 0 && r != to) {
			continue
		}
		if err := p.ctrl.Send(data, r, TagTile); err != nil {
			return fmt.Errorf("to rank %d: %w", r, err)
		}
	}
	return nil
}

func (p *Parallel) receiveTile(from int) (types.RawImage, error) {
	payload, err := p.ctrl.Receive(from, TagTile)
	if err != nil {
		return types.RawImage{}, err
	}
	frag, err := decodeFragment(payload)
	if err != nil {
		return types.RawImage{}, err
	}
	return frag.Color, nil
}

var _ Synchronizer = (*Parallel)(nil)
