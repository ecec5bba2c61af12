package relay

import (
	"fmt"

	"github.com/pithecene-io/mural/codec"
	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/ipc"
	"github.com/pithecene-io/mural/types"
)

// Consumer receives each frame's final image from the producer at rank
// peer and keeps the most recent one.
type Consumer struct {
	ctrl   comm.Controller
	peer   int
	codecs *codec.Manager
	opts   options

	image    types.RawImage
	fresh    bool
	degraded bool
	last     FrameStats
}

// NewConsumer creates a consumer. The codec manager should already hold
// the configuration to request from the producer.
func NewConsumer(ctrl comm.Controller, peer int, codecs *codec.Manager, opts ...Option) *Consumer {
	return &Consumer{
		ctrl:   ctrl,
		peer:   peer,
		codecs: codecs,
		opts:   buildOptions(opts),
		image:  types.InvalidImage(),
	}
}

// Handshake proposes the local codec configuration and adopts the one the
// producer answers with. It fails with ErrCodecMismatch when that codec
// cannot be applied here unchanged.
func (c *Consumer) Handshake() error {
	if c.opts.lossLess {
		c.codecs.SetLossLess(true)
	}
	hello, err := ipc.EncodeMessage(Hello{
		Version:  types.ContractVersion,
		Codec:    c.codecs.Configuration(),
		LossLess: c.opts.lossLess,
	})
	if err != nil {
		return err
	}
	if err := c.ctrl.Send(hello, c.peer, TagHello); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	payload, err := c.ctrl.Receive(c.peer, TagHello)
	if err != nil {
		return fmt.Errorf("receive hello: %w", err)
	}
	var reply Hello
	if err := ipc.DecodeMessage(payload, &reply); err != nil {
		return err
	}
	if err := checkVersion(reply.Version); err != nil {
		return err
	}
	effective := c.codecs.Configure(reply.Codec)
	if effective != reply.Codec {
		return fmt.Errorf("%w: producer uses %q, consumer applied %q", ErrCodecMismatch, reply.Codec, effective)
	}
	c.opts.collector.SetCodec(effective)
	c.opts.logger.Info("relay handshake complete", map[string]any{
		"codec":     effective,
		"loss_less": reply.LossLess,
	})
	return nil
}

// EndFrame receives one frame. A frame without an image leaves the
// previous image in place. A payload that cannot be decoded yields a
// zero-filled image flagged as degraded; only transport failures are
// returned as errors.
func (c *Consumer) EndFrame() error {
	headerBytes, err := c.ctrl.Receive(c.peer, TagImageHeader)
	if err != nil {
		return fmt.Errorf("receive image header: %w", err)
	}
	var header types.ImageHeader
	if err := header.UnmarshalBinary(headerBytes); err != nil {
		return err
	}
	c.last = FrameStats{Header: header, Codec: c.codecs.Configuration()}
	if !header.HasImage {
		c.fresh = false
		c.degraded = false
		c.opts.collector.AddFrameReceived(0, 0)
		return nil
	}

	// Each frame gets its own buffer; images handed out earlier stay intact.
	img := types.NewRawImage(int(header.Width), int(header.Height), int(header.Components))
	payload, err := c.ctrl.Receive(c.peer, TagImagePayload)
	if err != nil {
		return fmt.Errorf("receive image payload: %w", err)
	}
	c.image = img
	c.fresh = true
	c.degraded = false
	c.decode(payload)
	c.last.RawBytes, c.last.WireBytes, c.last.Degraded = len(c.image.Pixels), len(payload), c.degraded
	c.opts.collector.AddFrameReceived(len(c.image.Pixels), len(payload))

	if c.opts.presenter != nil {
		if err := c.opts.presenter.Present(c.image); err != nil {
			return fmt.Errorf("present frame: %w", err)
		}
	}
	return nil
}

func (c *Consumer) decode(payload []byte) {
	if len(payload) == len(c.image.Pixels) {
		copy(c.image.Pixels, payload)
		return
	}
	comp := c.codecs.Compressor()
	var err error
	if comp == nil {
		err = fmt.Errorf("compressed payload of %d bytes with no codec configured", len(payload))
	} else {
		comp.SetImageResolution(c.image.Width, c.image.Height)
		err = comp.Decompress(payload, c.image.Pixels)
	}
	if err == nil {
		return
	}
	clear(c.image.Pixels)
	c.degraded = true
	c.opts.collector.IncDecompressFailure()
	c.opts.collector.IncFrameDegraded()
	c.opts.logger.Error("decompression failed, presenting blank frame", map[string]any{
		"codec":   c.codecs.Configuration(),
		"payload": len(payload),
		"error":   err.Error(),
	})
}

// Image is the most recently received image. Invalid until the first
// image arrives.
func (c *Consumer) Image() types.RawImage { return c.image }

// Fresh reports whether the last frame carried a new image.
func (c *Consumer) Fresh() bool { return c.fresh }

// Degraded reports whether the current image replaced a payload that
// failed to decode.
func (c *Consumer) Degraded() bool { return c.degraded }

// LastFrame describes the frame the last EndFrame received.
func (c *Consumer) LastFrame() FrameStats { return c.last }
