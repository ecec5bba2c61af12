package cmd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cave"
	"github.com/pithecene-io/mural/cli/config"
	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/iox"
	"github.com/pithecene-io/mural/relay"
	"github.com/pithecene-io/mural/scene"
	"github.com/pithecene-io/mural/topology"
	"github.com/pithecene-io/mural/types"
)

// sceneBounds is the bounding box of the test pattern, used to reset CAVE
// clipping ranges.
var sceneBounds = cave.Bounds{
	Min: mgl64.Vec3{-1, -1, -1},
	Max: mgl64.Vec3{1, 1, 1},
}

// ServeCommand returns the serve command.
// Serve runs the render side of a session: server, render_server, batch
// and data_only roles.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run a render process (server, render_server, batch, data_only)",
		Flags:  SessionFlags(),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runServe(ctx, cfg, nil)
}

// runServe runs a render session until frames are done, the client hangs
// up or ctx ends. ready, when set, receives the bound client address
// before the process blocks waiting for its client.
func runServe(ctx context.Context, cfg *config.Config, ready func(addr string)) error {
	base, plan, err := resolveTopology(cfg)
	if err != nil {
		return err
	}
	if base.Role == types.RoleClient {
		return cli.Exit("client role runs with the view command", exitConfigError)
	}

	s, err := newSession(ctx, cfg, plan, logOutput)
	if err != nil {
		return err
	}
	s.logger.Info("session starting", map[string]any{
		"plan":       plan.String(),
		"partitions": partitionCount(base),
	})

	if !base.Role.Renders() {
		return s.finish(idle(ctx, s))
	}
	return s.finish(serveSession(ctx, s, base, ready))
}

// idle holds a data-only process until it is interrupted.
func idle(ctx context.Context, s *session) error {
	s.logger.Info("data-only process waiting", nil)
	<-ctx.Done()
	return ctx.Err()
}

func partitionCount(cfg topology.Config) int {
	return max(1, cfg.Cluster.NumberOfLocalPartitions)
}

// serveSession accepts the client when one is configured, then runs one
// render loop per local partition.
func serveSession(ctx context.Context, s *session, base topology.Config, ready func(string)) error {
	var sock *comm.Socket
	if base.ClientPeer != "" {
		ln, err := comm.Listen(ctx, base.ClientPeer)
		if err != nil {
			return err
		}
		addr := ln.Addr().String()
		s.logger.Info("waiting for client", map[string]any{"addr": addr})
		if ready != nil {
			ready(addr)
		}
		sock, err = ln.Accept(ctx)
		_ = ln.Close()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		defer iox.DiscardClose(sock)
		s.logger.Info("client connected", map[string]any{"remote": sock.RemoteAddr().String()})
	}

	group := comm.NewLocalGroup(partitionCount(base))
	var stopping atomic.Bool
	stop := context.AfterFunc(ctx, func() {
		stopping.Store(true)
		if sock != nil {
			iox.DiscardClose(sock)
		}
		group.Close()
	})
	defer stop()

	err := group.Run(func(ctrl comm.Controller) error {
		p := &partition{
			session: s,
			ctrl:    ctrl,
			local:   ctrl.LocalProcessID(),
			sock:    sock,
		}
		err := p.run(ctx, base)
		switch {
		case err == nil:
			return nil
		case stopping.Load():
			// Peers wind down with ErrClosed after a hang-up or interrupt.
			return nil
		case p.local == 0 && sock != nil && peerClosed(err):
			s.logger.Info("client disconnected", nil)
			stopping.Store(true)
			group.Close()
			return nil
		default:
			return err
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// partition is one local rank of a render process.
type partition struct {
	session *session
	ctrl    comm.Controller
	local   int
	sock    *comm.Socket

	renderer *scene.Renderer
	comps    *topology.Components
	camera   *cave.Camera
}

// setup resolves this partition's plan and builds its components. Only
// local rank 0 talks to the client.
func (p *partition) setup(base topology.Config) error {
	cfg := base
	cfg.Rank = base.Rank + p.local
	if p.local != 0 {
		cfg.GroupRelays = cfg.ClientPeer != ""
		cfg.ClientPeer = ""
	}
	plan := topology.Resolve(cfg)

	sc := p.session.cfg.Scene
	sc.Rank = p.local
	sc.Ranks = p.ctrl.NumberOfProcesses()
	renderer, err := scene.New(sc)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid scene: %v", err), exitConfigError)
	}
	p.renderer = renderer

	deps := topology.Deps{
		Group:      p.ctrl,
		Peer:       comm.SocketPeerRank,
		Renderer:   renderer,
		Background: renderer,
		Logger:     p.session.logger.Named(fmt.Sprintf("rank%d", cfg.Rank)),
		Collector:  p.session.collector,
	}
	if plan.Producer {
		deps.Relay = p.sock
	}
	comps, err := topology.Build(plan, deps)
	if err != nil {
		return err
	}
	p.comps = comps
	if comps.Cave != nil {
		p.camera = cave.NewCamera()
	}
	return nil
}

// run renders frames until the configured count, the client hanging up or
// ctx ending.
func (p *partition) run(ctx context.Context, base topology.Config) error {
	if err := p.setup(base); err != nil {
		return err
	}
	if pr := p.comps.Producer; pr != nil {
		if err := pr.Handshake(); err != nil {
			return err
		}
	}

	frames := p.session.cfg.Frames
	interval := p.session.cfg.Interval.Duration
	for frame := 0; frames == 0 || frame < frames; frame++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		stats, err := p.renderFrame(frame, frames)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		p.session.recordFrame(ctx, p.ctrl.LocalProcessID()+base.Rank, stats, time.Since(start))
		if p.local == 0 && p.session.cfg.Storage.Snapshots > 0 && frame%p.session.cfg.Storage.Snapshots == 0 {
			p.snapshot(ctx, frame)
		}
		p.renderer.Advance()
		if err := sleepFrame(ctx, interval); err != nil {
			return err
		}
	}
	return nil
}

// renderFrame drives one frame through the built components and describes
// the result.
func (p *partition) renderFrame(frame, frames int) (relay.FrameStats, error) {
	if p.comps.Cave != nil {
		bounds := sceneBounds
		p.comps.Cave.HandleStartRender(p.camera, &bounds)
	}
	pr := p.comps.Producer
	if pr != nil {
		pr.BeginFrame()
	}
	p.comps.Background.Begin()
	defer p.comps.Background.End()
	if comp := p.comps.Compositor; comp != nil {
		if err := comp.Composite(p.renderer); err != nil {
			return relay.FrameStats{}, err
		}
	}
	if pr != nil {
		// The last frame of a bounded session is a still.
		interactive := frames == 0 || frame < frames-1
		if err := pr.EndFrame(interactive); err != nil {
			return relay.FrameStats{}, err
		}
		return pr.LastFrame(), nil
	}
	if comp := p.comps.Compositor; comp != nil {
		return frameStats(comp.LastRenderedTile()), nil
	}
	img, err := p.renderer.Capture()
	if err != nil {
		return relay.FrameStats{}, err
	}
	return frameStats(img), nil
}

// snapshot archives the frame this partition holds.
func (p *partition) snapshot(ctx context.Context, frame int) {
	img := types.InvalidImage()
	if comp := p.comps.Compositor; comp != nil {
		img = comp.LastRenderedTile()
	}
	if !img.Valid {
		captured, err := p.renderer.Capture()
		if err != nil {
			p.session.logger.Warn("snapshot capture failed", map[string]any{"error": err.Error()})
			return
		}
		img = captured
	}
	p.session.snapshot(ctx, frame, img)
}

func frameStats(img types.RawImage) relay.FrameStats {
	h := img.Header()
	return relay.FrameStats{Header: h, RawBytes: h.PayloadSize()}
}
