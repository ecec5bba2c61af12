// Package relay delivers the final image of each frame from the process
// that holds it (the producer) to the process that displays it (the
// consumer).
//
// Every frame is exactly one header message followed, only when the header
// announces an image, by one payload message. A payload whose length equals
// the image size is raw pixels; anything shorter is the output of the codec
// both ends agreed on during the handshake.
package relay

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/log"
	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/types"
)

// Message tags on the relay channel.
const (
	TagHello        = 10
	TagImageHeader  = 11
	TagImagePayload = 12
)

// ErrVersion is returned by the handshake when the peers speak different
// contract versions.
var ErrVersion = errors.New("relay: incompatible peer contract version")

// ErrCodecMismatch is returned by the consumer handshake when it cannot
// apply the codec the producer settled on, e.g. a video codec without a
// local backend.
var ErrCodecMismatch = errors.New("relay: consumer cannot decode the producer's codec")

// Hello is exchanged once per connection. The consumer proposes a codec
// configuration and the producer answers with the one it applied.
type Hello struct {
	Version  string `msgpack:"version"`
	Codec    string `msgpack:"codec"`
	LossLess bool   `msgpack:"loss_less"`
}

// Renderer captures the current frame buffer.
type Renderer interface {
	Capture() (types.RawImage, error)
}

// BackgroundSetter is a renderer that can switch to a flat background.
type BackgroundSetter interface {
	FlatBackground() bool
	SetFlatBackground(flat bool)
}

// Presenter displays images the consumer received. It must copy an image
// it keeps beyond the call.
type Presenter interface {
	Present(img types.RawImage) error
}

// FrameStats describes the last frame a producer sent or a consumer
// received.
type FrameStats struct {
	Header types.ImageHeader
	// RawBytes is the uncompressed image size; WireBytes the payload sent.
	RawBytes  int
	WireBytes int
	Codec     string
	Degraded  bool
}

// options is shared by producers and consumers.
type options struct {
	logger     *log.Logger
	collector  *metrics.Collector
	sync       compositor.Synchronizer
	cluster    types.ClusterTopology
	background BackgroundSetter
	presenter  Presenter
	lossLess   bool
}

// Option configures a Producer or Consumer.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCollector records relayed frames and codec failures.
func WithCollector(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithSynchronizer makes a producer take its image from the synchronizer's
// last tile instead of capturing, unless the synchronizer is a CAVE adapter.
func WithSynchronizer(s compositor.Synchronizer) Option {
	return func(o *options) { o.sync = s }
}

// WithCluster tells a producer the display topology, which decides the
// background fix-up.
func WithCluster(c types.ClusterTopology) Option {
	return func(o *options) { o.cluster = c }
}

// WithBackground lets a producer force a flat background while capturing.
func WithBackground(b BackgroundSetter) Option {
	return func(o *options) { o.background = b }
}

// WithPresenter enables write-back on a consumer: every received image is
// handed to p.
func WithPresenter(p Presenter) Option {
	return func(o *options) { o.presenter = p }
}

// WithLossLess makes a consumer request loss-less delivery for every frame.
func WithLossLess(lossLess bool) Option {
	return func(o *options) { o.lossLess = lossLess }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = log.OrNop(o.logger).Named("relay")
	return o
}

// checkVersion accepts a peer whose contract version matches ours in major
// version, and in minor version while the major is 0.
func checkVersion(peer string) error {
	theirs, err := semver.NewVersion(peer)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrVersion, peer, err)
	}
	ours := semver.MustParse(types.ContractVersion)
	if theirs.Major() != ours.Major() || (ours.Major() == 0 && theirs.Minor() != ours.Minor()) {
		return fmt.Errorf("%w: peer %s, local %s", ErrVersion, theirs, ours)
	}
	return nil
}
