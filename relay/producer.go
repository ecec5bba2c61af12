package relay

import (
	"fmt"

	"github.com/pithecene-io/mural/codec"
	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/ipc"
	"github.com/pithecene-io/mural/types"
)

// Producer sends each frame's final image to the consumer at rank peer.
type Producer struct {
	ctrl   comm.Controller
	peer   int
	codecs *codec.Manager
	source Renderer
	opts   options

	background *BackgroundFixUp
	last       FrameStats
}

// NewProducer creates a producer. source may be nil when a compositing
// synchronizer provides every image.
func NewProducer(ctrl comm.Controller, peer int, codecs *codec.Manager, source Renderer, opts ...Option) *Producer {
	o := buildOptions(opts)
	return &Producer{
		ctrl:       ctrl,
		peer:       peer,
		codecs:     codecs,
		source:     source,
		opts:       o,
		background: NewBackgroundFixUp(o.background, o.cluster),
	}
}

// Handshake waits for the consumer's Hello, applies its codec request and
// answers with the configuration actually in effect.
func (p *Producer) Handshake() error {
	payload, err := p.ctrl.Receive(p.peer, TagHello)
	if err != nil {
		return fmt.Errorf("receive hello: %w", err)
	}
	var hello Hello
	if err := ipc.DecodeMessage(payload, &hello); err != nil {
		return err
	}
	if err := checkVersion(hello.Version); err != nil {
		return err
	}

	p.codecs.Configure(hello.Codec)
	if hello.LossLess {
		p.codecs.SetLossLess(true)
	}
	effective := p.codecs.Configuration()
	p.opts.collector.SetCodec(effective)

	reply, err := ipc.EncodeMessage(Hello{Version: types.ContractVersion, Codec: effective, LossLess: hello.LossLess})
	if err != nil {
		return err
	}
	if err := p.ctrl.Send(reply, p.peer, TagHello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	p.opts.logger.Info("relay handshake complete", map[string]any{
		"requested": hello.Codec,
		"codec":     effective,
		"loss_less": hello.LossLess,
	})
	return nil
}

// BeginFrame forces a flat background for the coming capture, so the
// consumer can lay the image over its own background. Skipped in tile and
// CAVE modes, where this process owns the final presentation.
func (p *Producer) BeginFrame() { p.background.Begin() }

// EndFrame obtains the final image and sends it. Still frames
// (interactive false) are always compressed loss-less.
func (p *Producer) EndFrame(interactive bool) error {
	img, err := p.finalImage()
	p.background.End()
	if err != nil {
		return fmt.Errorf("obtain frame image: %w", err)
	}
	if err := img.Validate(); err != nil {
		return fmt.Errorf("frame image: %w", err)
	}

	header := img.Header()
	headerBytes, err := header.MarshalBinary()
	if err != nil {
		return err
	}
	if err := p.ctrl.Send(headerBytes, p.peer, TagImageHeader); err != nil {
		return fmt.Errorf("send image header: %w", err)
	}
	p.last = FrameStats{Header: header, Codec: p.codecs.Configuration()}
	if !header.HasImage {
		p.opts.collector.AddFrameSent(0, 0)
		return nil
	}

	payload := p.encode(img, interactive)
	if err := p.ctrl.Send(payload, p.peer, TagImagePayload); err != nil {
		return fmt.Errorf("send image payload: %w", err)
	}
	p.last.RawBytes, p.last.WireBytes = len(img.Pixels), len(payload)
	p.opts.collector.AddFrameSent(len(img.Pixels), len(payload))
	return nil
}

// LastFrame describes the frame the last EndFrame sent.
func (p *Producer) LastFrame() FrameStats { return p.last }

// finalImage takes the compositor's tile when one is present and never
// captures in that case.
func (p *Producer) finalImage() (types.RawImage, error) {
	if s := p.opts.sync; s != nil && s.Kind() != compositor.CaveAdapterOnly {
		return s.LastRenderedTile(), nil
	}
	if p.source == nil {
		return types.InvalidImage(), nil
	}
	return p.source.Capture()
}

// encode compresses img, falling back to the raw pixels when there is no
// codec, compression fails or the output does not shrink.
func (p *Producer) encode(img types.RawImage, interactive bool) []byte {
	c := p.codecs.Compressor()
	if c == nil {
		return img.Pixels
	}
	c.SetImageResolution(img.Width, img.Height)
	lossLess := c.LossLess() || !interactive
	out, err := c.Compress(img.Pixels, img.Components, lossLess)
	switch {
	case err != nil:
		p.opts.logger.Error("compression failed, sending raw pixels", map[string]any{
			"codec": c.Name(),
			"error": err.Error(),
		})
		p.opts.collector.IncCompressFailure()
		p.opts.collector.IncRawFallback(c.Name())
		return img.Pixels
	case len(out) >= len(img.Pixels):
		p.opts.collector.IncRawFallback(c.Name())
		return img.Pixels
	default:
		return out
	}
}
