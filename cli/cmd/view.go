package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/cli/config"
	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/iox"
	"github.com/pithecene-io/mural/relay"
	"github.com/pithecene-io/mural/topology"
	"github.com/pithecene-io/mural/types"
)

var errNoRenderPeer = errors.New("view needs a render peer (--render-peer)")

// ViewCommand returns the view command.
// View runs the client side of a session: it connects to a render process
// and receives the frames it produces.
func ViewCommand() *cli.Command {
	return &cli.Command{
		Name:   "view",
		Usage:  "Connect to a render process and receive its frames",
		Flags:  SessionFlags(),
		Action: viewAction,
	}
}

func viewAction(c *cli.Context) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if cfg.Role == "" {
		cfg.Role = string(types.RoleClient)
	}
	ctx, cancel := signalContext()
	defer cancel()
	return runView(ctx, cfg)
}

// runView receives frames until the configured count, the render process
// hangs up or ctx ends.
func runView(ctx context.Context, cfg *config.Config) error {
	_, plan, err := resolveTopology(cfg)
	if err != nil {
		return err
	}
	if plan.Role != types.RoleClient {
		return cli.Exit(fmt.Sprintf("view runs the client role, got %s", plan.Role), exitConfigError)
	}
	if !plan.Consumer {
		return cli.Exit(errNoRenderPeer.Error(), exitConfigError)
	}

	s, err := newSession(ctx, cfg, plan, logOutput)
	if err != nil {
		return err
	}
	s.logger.Info("session starting", map[string]any{"plan": plan.String()})
	return s.finish(viewSession(ctx, s, cfg.Peers.Render))
}

func viewSession(ctx context.Context, s *session, addr string) error {
	sock, err := comm.Dial(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer iox.DiscardClose(sock)
	stop := iox.CloseOnDone(ctx, sock)
	defer stop()

	presenter := &snapshotPresenter{ctx: ctx, session: s, every: s.cfg.Storage.Snapshots}
	comps, err := topology.Build(s.plan, topology.Deps{
		Relay:     sock,
		Peer:      comm.SocketRootRank,
		Presenter: presenter,
		Logger:    s.logger.Named("relay"),
		Collector: s.collector,
	})
	if err != nil {
		return err
	}
	consumer := comps.Consumer
	if err := consumer.Handshake(); err != nil {
		return canceledOr(ctx, err)
	}

	frames := s.cfg.Frames
	for frame := 0; frames == 0 || frame < frames; frame++ {
		start := time.Now()
		if err := consumer.EndFrame(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if peerClosed(err) {
				s.logger.Info("render process closed the relay", map[string]any{"frames": frame})
				return nil
			}
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		s.recordFrame(ctx, s.plan.Rank, consumer.LastFrame(), time.Since(start))

		// Loss-less relays in tile and CAVE modes carry a control view that
		// is never presented, but it is still archived.
		if !s.plan.ConsumerWriteBack && consumer.Fresh() {
			if err := presenter.Present(consumer.Image()); err != nil {
				return err
			}
		}
	}
	return nil
}

// canceledOr reports ctx's error when ctx has ended, err otherwise.
func canceledOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// snapshotPresenter archives every Nth presented frame as a PNG. With no
// storage or N of zero it only counts frames.
type snapshotPresenter struct {
	ctx     context.Context
	session *session
	every   int
	count   int
}

// Present implements relay.Presenter.
func (p *snapshotPresenter) Present(img types.RawImage) error {
	n := p.count
	p.count++
	if p.every > 0 && n%p.every == 0 {
		p.session.snapshot(p.ctx, n, img)
	}
	return nil
}

var _ relay.Presenter = (*snapshotPresenter)(nil)
