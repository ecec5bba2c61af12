package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// NameZstd is the Zstandard codec.
const NameZstd = "zstd"

// Zstd compresses with Zstandard. Always loss-less.
type Zstd struct {
	base
	level zstd.EncoderLevel

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstd creates a zstd codec at level 1 (fastest) to 4 (best).
func NewZstd(level int) *Zstd {
	return &Zstd{base: base{name: NameZstd}, level: zstd.EncoderLevel(min(max(level, 1), 4))}
}

// Compress implements Compressor.
func (c *Zstd) Compress(in []byte, components int, _ bool) ([]byte, error) {
	if err := checkCompressArgs(in, components); err != nil {
		return nil, err
	}
	if c.encoder == nil {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(c.level),
			zstd.WithEncoderConcurrency(1),
			zstd.WithZeroFrames(true),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd: new encoder: %w", err)
		}
		c.encoder = enc
	}
	return c.encoder.EncodeAll(in, nil), nil
}

// Decompress implements Compressor.
func (c *Zstd) Decompress(in, out []byte) error {
	if err := checkDecompressArgs(in, out); err != nil {
		return err
	}
	if c.decoder == nil {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("zstd: new decoder: %w", err)
		}
		c.decoder = dec
	}
	decoded, err := c.decoder.DecodeAll(in, make([]byte, 0, len(out)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(decoded) != len(out) {
		return fmt.Errorf("%w: zstd decoded %d bytes, target is %d", ErrCorrupt, len(decoded), len(out))
	}
	copy(out, decoded)
	return nil
}

// SaveConfiguration implements Compressor.
func (c *Zstd) SaveConfiguration() string {
	return fmt.Sprintf("%s %d", c.saveBase(), int(c.level))
}

// RestoreConfiguration implements Compressor.
func (c *Zstd) RestoreConfiguration(config string) (string, bool) {
	lossLess, rest, ok := c.parseBase(config)
	if !ok {
		return "", false
	}
	level, rest, ok := nextInt(rest, 1, 4)
	if !ok {
		return "", false
	}
	c.lossLess = lossLess
	if zstd.EncoderLevel(level) != c.level && c.encoder != nil {
		_ = c.encoder.Close()
		c.encoder = nil
	}
	c.level = zstd.EncoderLevel(level)
	return rest, true
}

var _ Compressor = (*Zstd)(nil)
