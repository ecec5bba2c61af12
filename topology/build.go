package topology

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/mural/cave"
	"github.com/pithecene-io/mural/codec"
	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/log"
	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/relay"
)

// ErrMissingDependency is returned by Build when the plan needs a
// collaborator Deps does not provide.
var ErrMissingDependency = errors.New("topology: missing dependency")

// Deps are the collaborators Build wires into components.
type Deps struct {
	// Group is the render process group. Required for a compositor.
	Group comm.Controller
	// Relay is the channel to the relay peer at rank Peer. Required for a
	// producer or consumer.
	Relay comm.Controller
	Peer  int

	Codecs     *codec.Manager
	Renderer   relay.Renderer
	Background relay.BackgroundSetter
	Presenter  relay.Presenter
	Ordering   compositor.TileOrdering

	Logger    *log.Logger
	Collector *metrics.Collector
}

// Components are the built components of one process. Sync is the
// compositor or the CAVE adapter, whichever was built.
type Components struct {
	Plan       Plan
	Compositor *compositor.Parallel
	Cave       *cave.Adapter
	Producer   *relay.Producer
	Consumer   *relay.Consumer
	// Background is the flat-background fix-up of a partition that relays
	// through another rank. A producer applies its own.
	Background *relay.BackgroundFixUp
}

// Sync returns the process's render synchronizer, or nil.
func (c *Components) Sync() compositor.Synchronizer {
	switch {
	case c.Compositor != nil:
		return c.Compositor
	case c.Cave != nil:
		return c.Cave
	default:
		return nil
	}
}

// Build constructs every component plan names, each exactly once.
func Build(plan Plan, deps Deps) (*Components, error) {
	logger := log.OrNop(deps.Logger)
	out := &Components{Plan: plan}

	if plan.Cave {
		out.Cave = cave.NewAdapter(plan.Rank, plan.CaveCfg, cave.WithLogger(logger))
		out.Cave.ConfigureDisplays(plan.Displays)
	}

	if plan.Compositor {
		if deps.Group == nil {
			return nil, fmt.Errorf("%w: compositor needs a process group", ErrMissingDependency)
		}
		opts := []compositor.Option{
			compositor.WithLogger(logger),
			compositor.WithCollector(deps.Collector),
		}
		if deps.Ordering != nil {
			opts = append(opts, compositor.WithOrdering(deps.Ordering))
		}
		p, err := compositor.NewParallel(plan.CompositorKind, deps.Group, plan.CompositorCfg, opts...)
		if err != nil {
			return nil, err
		}
		out.Compositor = p
	}

	if plan.Producer || plan.Consumer {
		if deps.Relay == nil {
			return nil, fmt.Errorf("%w: relay needs a peer channel", ErrMissingDependency)
		}
		if deps.Codecs == nil {
			deps.Codecs = codec.NewManager(codec.WithLogger(logger), codec.WithCollector(deps.Collector))
			deps.Codecs.Configure(plan.Codec)
		}
	}

	if plan.FlatBackground && !plan.Producer {
		out.Background = relay.NewBackgroundFixUp(deps.Background, plan.Cluster)
	}

	if plan.Producer {
		opts := []relay.Option{
			relay.WithLogger(logger),
			relay.WithCollector(deps.Collector),
			relay.WithCluster(plan.Cluster),
		}
		if deps.Background != nil {
			opts = append(opts, relay.WithBackground(deps.Background))
		}
		source := deps.Renderer
		if plan.ProducerFromCompositor {
			opts = append(opts, relay.WithSynchronizer(out.Compositor))
			source = nil
		} else if out.Cave != nil {
			opts = append(opts, relay.WithSynchronizer(out.Cave))
		}
		if source == nil && !plan.ProducerFromCompositor {
			return nil, fmt.Errorf("%w: producer needs a renderer", ErrMissingDependency)
		}
		out.Producer = relay.NewProducer(deps.Relay, deps.Peer, deps.Codecs, source, opts...)
	}

	if plan.Consumer {
		opts := []relay.Option{
			relay.WithLogger(logger),
			relay.WithCollector(deps.Collector),
			relay.WithLossLess(plan.ConsumerLossLess),
		}
		if plan.ConsumerWriteBack && deps.Presenter != nil {
			opts = append(opts, relay.WithPresenter(deps.Presenter))
		}
		out.Consumer = relay.NewConsumer(deps.Relay, deps.Peer, deps.Codecs, opts...)
	}

	logger.Info("topology resolved", map[string]any{
		"plan":       plan.String(),
		"components": plan.Components(),
	})
	return out, nil
}
