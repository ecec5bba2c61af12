// Package topology decides, once per process, which synchronization and
// relay components the process needs, and builds them.
//
// Resolve is a pure function of Config. Build turns the resulting Plan
// into components without consulting anything but its arguments.
package topology

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/mural/cave"
	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/types"
)

// Config is the complete startup configuration of one process.
type Config struct {
	Role    types.ProcessRole
	Rank    int
	Cluster types.ClusterTopology

	// RenderPeer is the address of the render-side process a client
	// connects to. Empty means rendering happens in this process.
	RenderPeer string
	// ClientPeer is the address a render-side process serves its client on.
	// Empty means no client is attached.
	ClientPeer string
	// GroupRelays marks a render partition without a client of its own
	// whose group relays to one through another rank.
	GroupRelays bool

	CompositorKind compositor.Kind
	Compositor     compositor.Config

	Codec string
	// LossLessRelay forces loss-less delivery on a consumer that would
	// otherwise relay lossy frames.
	LossLessRelay bool

	Cave     cave.Config
	Displays []types.DisplayGeometry
}

// Plan lists the components a process builds. Zero value builds nothing.
type Plan struct {
	Role types.ProcessRole
	Rank int

	Compositor     bool
	CompositorKind compositor.Kind
	CompositorCfg  compositor.Config

	Cave     bool
	CaveCfg  cave.Config
	Displays []types.DisplayGeometry

	Producer bool
	// ProducerFromCompositor delegates the producer's capture to the
	// compositor's tile.
	ProducerFromCompositor bool

	Consumer bool
	// ConsumerLossLess is set in tile and CAVE modes, where the client's
	// image is a control view rather than the presentation.
	ConsumerLossLess bool
	// ConsumerWriteBack presents every received image locally.
	ConsumerWriteBack bool

	// FlatBackground renders a flat background so a relayed image can be
	// laid over the client's own. Set on every rank of a relaying group
	// outside tile and CAVE modes.
	FlatBackground bool

	Cluster types.ClusterTopology
	Codec   string
}

// Builtin reports whether the plan needs no synchronization or relay, so
// rendering and display happen in this process.
func (p Plan) Builtin() bool {
	return !p.Compositor && !p.Cave && !p.Producer && !p.Consumer
}

// Components names the planned components in build order.
func (p Plan) Components() []string {
	var out []string
	if p.Cave {
		out = append(out, "cave")
	}
	if p.Compositor {
		out = append(out, "compositor:"+p.CompositorKind.String())
	}
	if p.Producer {
		out = append(out, "producer")
	}
	if p.Consumer {
		out = append(out, "consumer")
	}
	return out
}

// String implements fmt.Stringer.
func (p Plan) String() string {
	if p.Builtin() {
		return fmt.Sprintf("%s: builtin", p.Role)
	}
	return fmt.Sprintf("%s: %s", p.Role, strings.Join(p.Components(), ", "))
}

// Resolve decides which components cfg requires.
//
// A client consumes from its render peer when it has one; the relay is
// loss-less in tile and CAVE modes and presents locally otherwise. A
// rendering role builds the CAVE adapter in CAVE mode, else a parallel
// compositor in tile mode or when rendering is split across local
// partitions, and produces for its client when it has one. Every rank of
// a relaying group renders a flat background outside tile and CAVE modes.
// A data-only process builds nothing.
func Resolve(cfg Config) Plan {
	plan := Plan{
		Role:    cfg.Role,
		Rank:    cfg.Rank,
		Cluster: cfg.Cluster,
		Codec:   cfg.Codec,
	}
	inTile := cfg.Cluster.InTileDisplayMode()
	inCave := cfg.Cluster.InCaveMode()

	switch {
	case cfg.Role == types.RoleClient:
		if cfg.RenderPeer == "" {
			return plan
		}
		plan.Consumer = true
		if inTile || inCave {
			plan.ConsumerLossLess = true
		} else {
			plan.ConsumerLossLess = cfg.LossLessRelay
			plan.ConsumerWriteBack = true
		}

	case cfg.Role.Renders():
		if inCave {
			plan.Cave = true
			plan.CaveCfg = cfg.Cave
			if plan.CaveCfg.NumberOfDisplays == 0 {
				plan.CaveCfg.NumberOfDisplays = cfg.Cluster.NumberOfDisplayNodes
			}
			plan.Displays = cfg.Displays
		} else if inTile || cfg.Cluster.NumberOfLocalPartitions > 1 {
			plan.Compositor = true
			plan.CompositorKind = cfg.CompositorKind
			plan.CompositorCfg = cfg.Compositor
			plan.CompositorCfg.TileColumns = cfg.Cluster.TileColumns
			plan.CompositorCfg.TileRows = cfg.Cluster.TileRows
			plan.CompositorCfg.MullionX = cfg.Cluster.MullionX
			plan.CompositorCfg.MullionY = cfg.Cluster.MullionY
		}
		if cfg.ClientPeer != "" {
			plan.Producer = true
			plan.ProducerFromCompositor = plan.Compositor
		}
		plan.FlatBackground = !inTile && !inCave && (cfg.ClientPeer != "" || cfg.GroupRelays)
	}
	return plan
}
