package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// NameLZ4 is the fast general-purpose loss-less codec and the fallback for
// unavailable codecs.
const NameLZ4 = "lz4"

const (
	lz4ModeStored byte = 0
	lz4ModeBlock  byte = 1
	lz4HeaderSize      = 5

	// Inputs shorter than this are always stored.
	lz4MinBlock = 64
)

// LZ4 compresses with LZ4 blocks. Always loss-less; the loss-less flag is
// carried for configuration symmetry only.
//
// Stream layout: mode byte, big-endian uint32 original length, data.
type LZ4 struct {
	base
	compressor lz4.Compressor
}

// NewLZ4 creates an LZ4 codec.
func NewLZ4() *LZ4 {
	return &LZ4{base: base{name: NameLZ4}}
}

// Compress implements Compressor.
func (c *LZ4) Compress(in []byte, components int, _ bool) ([]byte, error) {
	if err := checkCompressArgs(in, components); err != nil {
		return nil, err
	}

	out := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(in)))
	binary.BigEndian.PutUint32(out[1:lz4HeaderSize], uint32(len(in)))

	var n int
	if len(in) >= lz4MinBlock {
		var err error
		n, err = c.compressor.CompressBlock(in, out[lz4HeaderSize:])
		if err != nil {
			return nil, fmt.Errorf("lz4: compress block: %w", err)
		}
	}
	if n == 0 || n >= len(in) {
		// Short or incompressible input is stored.
		out = out[:lz4HeaderSize+len(in)]
		out[0] = lz4ModeStored
		copy(out[lz4HeaderSize:], in)
		return out, nil
	}
	out[0] = lz4ModeBlock
	return out[:lz4HeaderSize+n], nil
}

// Decompress implements Compressor.
func (c *LZ4) Decompress(in, out []byte) error {
	if err := checkDecompressArgs(in, out); err != nil {
		return err
	}
	if len(in) < lz4HeaderSize {
		return fmt.Errorf("%w: lz4 stream shorter than header", ErrCorrupt)
	}
	size := int(binary.BigEndian.Uint32(in[1:lz4HeaderSize]))
	if size != len(out) {
		return fmt.Errorf("%w: lz4 stream holds %d bytes, target is %d", ErrCorrupt, size, len(out))
	}
	data := in[lz4HeaderSize:]

	switch in[0] {
	case lz4ModeStored:
		if len(data) != size {
			return fmt.Errorf("%w: stored lz4 payload is %d bytes, want %d", ErrCorrupt, len(data), size)
		}
		copy(out, data)
		return nil
	case lz4ModeBlock:
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != size {
			return fmt.Errorf("%w: lz4 block decoded %d bytes, want %d", ErrCorrupt, n, size)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown lz4 mode %d", ErrCorrupt, in[0])
	}
}

// SaveConfiguration implements Compressor.
func (c *LZ4) SaveConfiguration() string {
	return c.saveBase()
}

// RestoreConfiguration implements Compressor.
func (c *LZ4) RestoreConfiguration(config string) (string, bool) {
	lossLess, rest, ok := c.parseBase(config)
	if !ok {
		return "", false
	}
	c.lossLess = lossLess
	return rest, true
}

var _ Compressor = (*LZ4)(nil)
