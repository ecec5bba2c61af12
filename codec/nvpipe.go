package codec

import (
	"fmt"
)

// NameNvPipe is the hardware video codec.
const NameNvPipe = "nvpipe"

// DefaultBitrateMbps is the nvpipe target bitrate when none is configured.
const DefaultBitrateMbps = 16

// VideoBackend is a hardware video encoder. The process has at most one; the
// codec Manager is told about it with WithVideoBackend.
type VideoBackend interface {
	// Encode compresses one frame at the given resolution.
	Encode(frame []byte, width, height, components, bitrateMbps int) ([]byte, error)
	// Decode decompresses one frame into out.
	Decode(in, out []byte, width, height, components int) error
}

// NvPipe delegates to a VideoBackend. It needs the frame resolution up front.
type NvPipe struct {
	base
	backend       VideoBackend
	bitrateMbps   int
	width, height int
}

// NewNvPipe creates an nvpipe codec over backend, which may be nil; every
// call then fails with ErrUnavailable.
func NewNvPipe(backend VideoBackend) *NvPipe {
	return &NvPipe{base: base{name: NameNvPipe}, backend: backend, bitrateMbps: DefaultBitrateMbps}
}

// BitrateMbps returns the target bitrate.
func (c *NvPipe) BitrateMbps() int { return c.bitrateMbps }

// SetImageResolution implements Compressor.
func (c *NvPipe) SetImageResolution(width, height int) {
	c.width, c.height = width, height
}

func (c *NvPipe) ready() error {
	if c.backend == nil {
		return ErrUnavailable
	}
	if c.width <= 0 || c.height <= 0 {
		return ErrResolutionRequired
	}
	return nil
}

// Compress implements Compressor.
func (c *NvPipe) Compress(in []byte, components int, _ bool) ([]byte, error) {
	if err := checkCompressArgs(in, components); err != nil {
		return nil, err
	}
	if err := c.ready(); err != nil {
		return nil, err
	}
	if len(in) != c.width*c.height*components {
		return nil, fmt.Errorf("nvpipe: %d bytes do not match %dx%dx%d", len(in), c.width, c.height, components)
	}
	out, err := c.backend.Encode(in, c.width, c.height, components, c.bitrateMbps)
	if err != nil {
		return nil, fmt.Errorf("nvpipe: encode: %w", err)
	}
	return out, nil
}

// Decompress implements Compressor.
func (c *NvPipe) Decompress(in, out []byte) error {
	if err := checkDecompressArgs(in, out); err != nil {
		return err
	}
	if err := c.ready(); err != nil {
		return err
	}
	pixels := c.width * c.height
	if len(out)%pixels != 0 {
		return fmt.Errorf("%w: %d-byte target does not match %dx%d", ErrCorrupt, len(out), c.width, c.height)
	}
	if err := c.backend.Decode(in, out, c.width, c.height, len(out)/pixels); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// SaveConfiguration implements Compressor.
func (c *NvPipe) SaveConfiguration() string {
	return fmt.Sprintf("%s %d", c.saveBase(), c.bitrateMbps)
}

// RestoreConfiguration implements Compressor.
func (c *NvPipe) RestoreConfiguration(config string) (string, bool) {
	lossLess, rest, ok := c.parseBase(config)
	if !ok {
		return "", false
	}
	rate, rest, ok := nextInt(rest, 1, 1000)
	if !ok {
		return "", false
	}
	c.lossLess = lossLess
	c.bitrateMbps = rate
	return rest, true
}

var _ Compressor = (*NvPipe)(nil)
